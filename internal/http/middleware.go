package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/auth"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
)

// UserLoader resolves an authenticated principal from a token subject.
type UserLoader interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// AuthMiddleware validates the Bearer token and loads the acting user into
// the request context. Everything behind it can trust the identity and
// never re-authenticates.
func AuthMiddleware(tokens *auth.TokenManager, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenString == "" {
				respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			username, err := tokens.Parse(tokenString)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "could not validate credentials")
				return
			}

			user, err := users.GetByUsername(r.Context(), username)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthorized", "could not validate credentials")
				return
			}
			if !user.IsActive {
				respondError(w, http.StatusBadRequest, "inactive_user", "inactive user")
				return
			}

			ctx := context.WithValue(r.Context(), "user", user)
			ctx = context.WithValue(ctx, "user_id", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), "request_id", requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getUserFromContext(ctx context.Context) *domain.User {
	if user, ok := ctx.Value("user").(*domain.User); ok {
		return user
	}
	return nil
}

func getUserIDFromContext(ctx context.Context) int64 {
	if userID, ok := ctx.Value("user_id").(int64); ok {
		return userID
	}
	return 0
}
