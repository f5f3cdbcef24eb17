package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/gophernotes/internal/handlers/render"
	"github.com/nkiryanov/gophernotes/internal/handlers/userctx"
)

// Verifies request credentials without touching storage
type authenticator interface {
	Authenticate(r *http.Request) (uuid.UUID, error)
}

// Called when request is not authenticated
type DenyFunc func(w http.ResponseWriter, r *http.Request)

// DenyUnauthorized answers API requests with 401 JSON
func DenyUnauthorized(w http.ResponseWriter, _ *http.Request) {
	render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
}

// RedirectTo sends browsers to login page
func RedirectTo(url string) DenyFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
	}
}

// Gate lets request through only with valid access token and puts user id to request context
// Missing and invalid tokens are denied the same way
func Gate(a authenticator, deny DenyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := a.Authenticate(r)
			if err != nil {
				deny(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), userID)))
		})
	}
}

// PageGate gates only paths under protected prefixes, the rest passes through untouched
func PageGate(a authenticator, loginURL string, prefixes ...string) func(http.Handler) http.Handler {
	gate := Gate(a, RedirectTo(loginURL))

	return func(next http.Handler) http.Handler {
		gated := gate(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range prefixes {
				if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
					gated.ServeHTTP(w, r)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
