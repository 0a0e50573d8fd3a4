package auth

import (
	"context"
	"errors"
	"fmt"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserStore looks up identities backing sessions.
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Guard resolves tokens to users that still exist.
type Guard struct {
	issuer *Issuer
	users  UserStore
	logger *zap.Logger
}

func NewGuard(issuer *Issuer, users UserStore, logger *zap.Logger) *Guard {
	return &Guard{
		issuer: issuer,
		users:  users,
		logger: logger.Named("session_guard"),
	}
}

// Authenticate validates an access token and re-reads its user. A user
// deleted out of band yields errors.ErrSessionRevoked.
func (g *Guard) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := g.issuer.Parse(accessToken, AccessToken)
	if err != nil {
		return nil, err
	}
	return g.lookup(ctx, claims.UserID)
}

// Refresh trades a refresh token for a new token pair. An expired refresh
// token ends the session.
func (g *Guard) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	claims, err := g.issuer.Parse(refreshToken, RefreshToken)
	if err != nil {
		if errors.Is(err, e.ErrTokenExpired) {
			return Tokens{}, e.ErrUnauthenticated
		}
		return Tokens{}, err
	}
	user, err := g.lookup(ctx, claims.UserID)
	if err != nil {
		return Tokens{}, err
	}
	return g.issuer.Issue(user.ID, user.Role)
}

func (g *Guard) lookup(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := g.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			g.logger.Info("session user no longer exists", zap.String("user_id", id.String()))
			return nil, e.ErrSessionRevoked
		}
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}
	return user, nil
}
