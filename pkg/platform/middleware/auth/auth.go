// Package auth reads the caller identity asserted by the upstream gateway.
// Authentication itself happens before requests reach this service.
package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"mgcore/pkg/requestcontext"
)

const (
	HeaderCallerRole = "X-Caller-Role"
	HeaderCallerID   = "X-Caller-Id"
)

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireCaller rejects requests without both caller headers and stores them
// in the request context.
func RequireCaller(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderCallerRole)))
			id := strings.TrimSpace(r.Header.Get(HeaderCallerID))
			if role == "" || id == "" {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - missing caller",
					"request_id", middleware.GetReqID(ctx),
					"has_role", role != "",
					"has_id", id != "",
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Caller role and id are required")
				return
			}
			ctx := requestcontext.WithCaller(r.Context(), role, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
