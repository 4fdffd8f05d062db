package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDCtxKey struct{}

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's header when
// it carries one of plausible length. The id is echoed in the response so
// clients can quote it in bug reports.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if rid == "" || len(rid) > 64 {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		ctx := context.WithValue(r.Context(), requestIDCtxKey{}, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the id set by RequestID, or "" outside it.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(requestIDCtxKey{}).(string)
	return v
}
