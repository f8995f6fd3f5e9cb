package web

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"shiftcal/internal/config"
)

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func basicAuthEnabled(auth *config.BasicAuthConfig) bool {
	return auth != nil && auth.Username != "" && auth.PasswordHash != ""
}

// basicAuth wraps handlers with HTTP Basic Auth checked against a bcrypt
// password hash.
func basicAuth(auth *config.BasicAuthConfig) func(http.Handler) http.Handler {
	username := auth.Username
	hash := []byte(auth.PasswordHash)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || !secureCompare(u, username) || bcrypt.CompareHashAndPassword(hash, []byte(p)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="shiftcal", charset="UTF-8"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
