// Package middleware provides reusable HTTP middleware for the API server.
package middleware

import "net/http"

// SizeLimit caps request bodies at maxBytes. Reading past the cap fails with
// *http.MaxBytesError, which handlers answer with 413. A non-positive maxBytes
// disables the limit.
func SizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Connection", "close")
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
