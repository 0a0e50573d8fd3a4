package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"go.uber.org/zap"
)

type contextKey string

const (
	userContextKey contextKey = "user"
)

// Authenticator resolves an access token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

// HTTPMiddleware authenticates every request for which isProtected returns
// true and stores the user on the request context.
func HTTPMiddleware(next http.Handler, guard Authenticator, isProtected func(*http.Request) bool, logger *zap.Logger) http.Handler {
	logger = logger.Named("auth_middleware")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip authentication for non-protected endpoints
		if !isProtected(r) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := BearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		user, err := guard.Authenticate(r.Context(), tokenString)
		if err != nil {
			switch {
			case errors.Is(err, e.ErrTokenExpired):
				http.Error(w, e.ErrTokenExpired.Error(), http.StatusUnauthorized)
			case errors.Is(err, e.ErrSessionRevoked), errors.Is(err, e.ErrUnauthenticated):
				http.Error(w, e.ErrUnauthenticated.Error(), http.StatusUnauthorized)
			default:
				logger.Error("failed to authenticate request", zap.Error(err))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header required")
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid authorization format: missing Bearer prefix")
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenString == "" {
		return "", fmt.Errorf("invalid authorization format: empty token")
	}

	return tokenString, nil
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// CurrentUser returns the authenticated user of a request context.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok && user != nil
}

// CurrentRole returns the role of the authenticated user, or "".
func CurrentRole(ctx context.Context) models.UserRole {
	if user, ok := CurrentUser(ctx); ok {
		return user.Role
	}
	return ""
}

// RequireRole returns the current user when its role is one of allowed.
func RequireRole(ctx context.Context, allowed ...models.UserRole) (*models.User, error) {
	user, ok := CurrentUser(ctx)
	if !ok {
		return nil, e.ErrUnauthenticated
	}
	for _, role := range allowed {
		if user.Role == role {
			return user, nil
		}
	}
	return nil, fmt.Errorf("%w: role %s may not do this", e.ErrPermissionDenied, user.Role)
}
