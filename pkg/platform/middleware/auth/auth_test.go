package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"mgcore/pkg/requestcontext"
)

func TestRequireCaller(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var gotRole, gotID string
	h := RequireCaller(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, gotID = requestcontext.Caller(r.Context())
	}))

	t.Run("missing headers", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized","error_description":"Caller role and id are required"}`, w.Body.String())
	})

	t.Run("caller stored in context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderCallerRole, " Manager ")
		req.Header.Set(HeaderCallerID, "mgr-1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "manager", gotRole)
		assert.Equal(t, "mgr-1", gotID)
	})
}
