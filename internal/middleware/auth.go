// Package middleware provides HTTP middlewares for authentication,
// request logging, and metrics.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ykarpov/ListKeeper/internal/auth"
)

type ctxKey string

const userKey ctxKey = "user"

// RequireAuth enforces a valid Bearer credential from the identity
// provider. The principal id from the verified claims is stored in the
// request context for downstream handlers.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := principalFromHeader(jwtManager, r)
			if !ok {
				http.Error(w, "authorization required", http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth resolves a Bearer credential when one is present but lets
// anonymous requests through. Used on share-token routes, where the only
// effect of a valid credential is the is_owner marker in the response.
func OptionalAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, ok := principalFromHeader(jwtManager, r); ok {
				r = r.WithContext(context.WithValue(r.Context(), userKey, userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalFromHeader(jwtManager *auth.JWTManager, r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	claims, err := jwtManager.Validate(parts[1])
	if err != nil {
		return "", false
	}
	return claims.UserID, true
}

// GetUserIDFromContext extracts the authenticated principal id from the
// request context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
