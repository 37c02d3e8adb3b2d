package middleware

import "net/http"

// LimitBody caps the request body at maxBytes. Reads past the cap fail with *http.MaxBytesError.
func LimitBody(maxBytes int64) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if maxBytes <= 0 {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next(w, r)
		}
	}
}
