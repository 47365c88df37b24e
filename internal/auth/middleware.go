// Package auth guards mutating control-API endpoints with a static bearer
// token. An empty token disables the guard, which is the default for
// single-operator local deployments.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RequireToken wraps next with a bearer-token check. When token is empty the
// handler is returned unchanged.
func RequireToken(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	}
}
