// Package middleware holds the HTTP middleware for the CRM API.
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sersweai/leadcrm/internal/api/ctxkeys"
	pkgauth "github.com/sersweai/leadcrm/pkg/auth"
)

// Authenticator is the subset of pkgauth.Verifier the middleware needs.
type Authenticator interface {
	Enabled() bool
	CheckPassword(password string) bool
	ParseSession(token string) (*pkgauth.Claims, error)
}

// Auth guards operator routes. With no password configured every request passes. Otherwise
// "Authorization: Bearer <token>" must carry the password or a valid session token.
func Auth(v Authenticator) func(http.Handler) http.Handler {
	return authenticate(v, false)
}

// AuthQuery is Auth that also accepts ?token= for clients that cannot set headers, such as
// browser websockets.
func AuthQuery(v Authenticator) func(http.Handler) http.Handler {
	return authenticate(v, true)
}

func authenticate(v Authenticator, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil || !v.Enabled() {
				next.ServeHTTP(w, r.WithContext(ctxkeys.WithValue(r.Context(), ctxkeys.AuthMethod, "open")))
				return
			}

			token := extractBearerToken(r)
			if token == "" && allowQuery {
				token = strings.TrimSpace(r.URL.Query().Get("token"))
			}
			if token == "" {
				writeUnauthorized(w)
				return
			}

			// Session tokens verify with an HMAC; the password may need a bcrypt compare.
			method := ""
			if _, err := v.ParseSession(token); err == nil {
				method = "session"
			} else if v.CheckPassword(token) {
				method = "password"
			}
			if method == "" {
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctxkeys.WithValue(r.Context(), ctxkeys.AuthMethod, method)))
		})
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>", or "".
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"}) //nolint:errcheck
}
