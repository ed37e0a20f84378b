package middleware

import (
	"net/http"
	"strings"

	"taskvault/backend/internal/apperr"
	"taskvault/backend/internal/security"
	"taskvault/backend/internal/server/respond"
)

// RequireAuth guards protected routes with a Bearer access token. The token
// must carry the access type tag; a correctly-signed refresh token is
// rejected here. On success the subject id is placed in the request context.
func RequireAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				respond.Error(w, apperr.Authentication("No token provided"))
				return
			}
			payload, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "), "")
			if err != nil || payload.Type != security.TokenTypeAccess {
				respond.Error(w, apperr.Authentication("Invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), payload.Subject)))
		})
	}
}
