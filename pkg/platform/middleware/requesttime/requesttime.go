// Package requesttime pins one "now" per HTTP request so that every timestamp a
// request writes (enrolled_at, verified_at, audit events) agrees.
package requesttime

import (
	"net/http"
	"time"

	"zkworkspace/pkg/requestcontext"
)

// Middleware stores the arrival time, in UTC, in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
