// Package authmw guards control endpoints, such as switching the simulated
// patient, behind a shared bearer token.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

const bearerPrefix = "Bearer "

// ControlToken returns middleware that requires "Authorization: Bearer <token>".
// An empty token disables the check so a local demo needs no setup.
func ControlToken(token string, logger log.Logger) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = log.Nop()
	}
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, bearerPrefix) {
				deny(w, `{"error":"missing or malformed authorization header"}`)
				return
			}

			// constant time to avoid leaking the token through timing
			if subtle.ConstantTimeCompare([]byte(auth[len(bearerPrefix):]), expected) != 1 {
				logger.Warn(r.Context(), "control token rejected", "path", r.URL.Path)
				deny(w, `{"error":"invalid token"}`)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, body string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="triageq"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(body))
}
