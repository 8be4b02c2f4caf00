package api

import (
	"context"
	"net/http"
	"strings"

	"filehost-backend/internal/auth"
	"filehost-backend/internal/repository"
)

type contextKey string

const userContextKey = contextKey("user")

// AuthMiddleware verifies the bearer token and re-verifies its credential
// fingerprint against the live user, so tokens issued before a password
// change (or for a deleted user) stop working immediately.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		user, err := s.authenticateToken(r.Context(), headerParts[1])
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) authenticateToken(ctx context.Context, tokenString string) (*repository.User, error) {
	claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUser(ctx, claims.UID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, repository.ErrUserNotFound
	}
	if auth.CredentialFingerprint(user.PasswordHash()) != claims.PwdFingerprint {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *Server) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil || !user.IsAdmin() {
			http.Error(w, "Admin privileges required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserFromContext(ctx context.Context) *repository.User {
	if user, ok := ctx.Value(userContextKey).(*repository.User); ok {
		return user
	}
	return nil
}
