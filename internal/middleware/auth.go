package middleware

import (
	"context"
	"net/http"

	"social-login/internal/auth/credential"
	"social-login/internal/session"
)

// unexported, collision-proof context key
type userIDContextKeyType struct{}

var userIDKey = userIDContextKeyType{}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

// AuthMiddleware accepts a bearer token or the credential cookie and
// checks it with the configured Verifier.
type AuthMiddleware struct {
	Verifier credential.Verifier
	Cookie   session.CookieOptions
}

func NewAuthMiddleware(v credential.Verifier, cookie session.CookieOptions) *AuthMiddleware {
	return &AuthMiddleware{Verifier: v, Cookie: cookie}
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := session.FromRequest(r, a.Cookie)
		if value == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		userID, err := a.Verifier.Verify(r.Context(), value)
		if err != nil || userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
