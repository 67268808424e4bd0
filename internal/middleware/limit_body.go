package middleware

import (
	"net/http"
)

// MaxBodySize is the largest JSON document the API accepts
const MaxBodySize int64 = 64 << 10

// LimitBody caps request bodies at limit bytes. Reads past the cap fail with
// *http.MaxBytesError. GET, HEAD and OPTIONS requests pass through untouched.
func LimitBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
