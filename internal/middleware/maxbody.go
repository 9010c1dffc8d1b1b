package middleware

import "net/http"

// MaxBodySize caps the request body at n bytes. Proxy request bodies are a
// small JSON descriptor; anything larger is noise or abuse.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
