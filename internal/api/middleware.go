/**
 * @description
 * This file contains custom middleware for the HTTP router. The zakat-service
 * is an internal service fronted by the platform gateway, so request
 * authentication is a shared-secret check rather than end-user auth.
 *
 * @dependencies
 * - crypto/subtle, net/http: Standard Go libraries.
 */

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const internalAPIKeyHeader = "X-Internal-API-Key"

// RequireInternalAPIKey creates a middleware that rejects requests lacking the
// shared internal API key. When no key is configured the check is disabled,
// which keeps local development friction-free.
func RequireInternalAPIKey(key string) func(http.Handler) http.Handler {
	key = strings.TrimSpace(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			provided := r.Header.Get(internalAPIKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
