// Package requesttime captures one "now" per HTTP request so every decision
// evaluated for that request carries the same caller-supplied timestamp.
package requesttime

import (
	"net/http"
	"time"

	"mgcore/pkg/requestcontext"
)

// Middleware stores the request start time (UTC, second precision) in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Truncate(time.Second)
		ctx := requestcontext.WithTime(r.Context(), now)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
