/**
 * @description
 * This file contains custom middleware for the HTTP router. The administrative
 * surface is internal operator tooling reached over the private network, so it
 * is guarded by a shared API key header rather than end-user authentication.
 *
 * @dependencies
 * - crypto/subtle, net/http: Standard Go libraries.
 */

package api

import (
	"crypto/subtle"
	"net/http"
)

const internalAPIKeyHeader = "X-Internal-Api-Key"

// InternalAPIKeyMiddleware creates a middleware that validates the internal
// API key header. When no key is configured the admin surface is disabled
// outright rather than left open.
func InternalAPIKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				http.Error(w, "Admin API is not configured", http.StatusServiceUnavailable)
				return
			}

			provided := r.Header.Get(internalAPIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				http.Error(w, "Invalid or missing API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
