package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/followread/backend/internal/errors"
)

type contextKey string

const UserContextKey contextKey = "user"

type UserContext struct {
	UserID uuid.UUID
	Email  string
}

// Middleware rejects requests without a valid bearer token and puts the
// authenticated user on the request context.
func Middleware(authService *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := apperrors.GetRequestID(r.Context())

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apperrors.WriteError(w, requestID, apperrors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				apperrors.WriteError(w, requestID, apperrors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := authService.ValidateAccessToken(parts[1])
			if err != nil {
				if err == ErrTokenExpired {
					apperrors.WriteError(w, requestID, apperrors.TokenExpired())
					return
				}
				apperrors.WriteError(w, requestID, apperrors.Unauthorized("invalid access token"))
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				apperrors.WriteError(w, requestID, apperrors.Unauthorized("invalid user id in token"))
				return
			}

			userCtx := &UserContext{
				UserID: userID,
				Email:  claims.Email,
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), UserContextKey, userCtx)))
		})
	}
}

// GetUserFromContext returns the authenticated user, or nil on routes
// that skipped the middleware.
func GetUserFromContext(ctx context.Context) *UserContext {
	user, ok := ctx.Value(UserContextKey).(*UserContext)
	if !ok {
		return nil
	}
	return user
}
