package middleware

import (
	"net/http"
)

// DefaultMaxBodyBytes caps JSON bodies at 1 MiB.
const DefaultMaxBodyBytes int64 = 1 << 20

// MaxBody enforces a maximum request body size. Non-positive limits fall back
// to DefaultMaxBodyBytes.
func MaxBody(max int64) func(http.Handler) http.Handler {
	if max <= 0 {
		max = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
