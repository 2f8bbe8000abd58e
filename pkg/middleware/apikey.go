package middleware

import (
	"crypto/subtle"
	"net/http"
)

// apiKeyHeader carries the merchant API key on admin requests.
const apiKeyHeader = "X-Api-Key"

// APIKeyAuth guards the merchant-facing operations behind a static API key.
// An empty configured key disables the surface entirely rather than leaving
// it open.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				http.Error(w, "API access is not configured", http.StatusForbidden)
				return
			}

			provided := r.Header.Get(apiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
