// Package auth issues and validates session tokens, re-checks that the
// session user still exists, and gates HTTP routes by role.
package auth

import (
	"errors"
	"fmt"
	"time"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// Tokens is an access/refresh pair handed to a client.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Claims are the parsed claims of a valid token.
type Claims struct {
	UserID uuid.UUID
	Role   models.UserRole
	Type   TokenType
}

// Issuer signs and parses HS256 tokens.
type Issuer struct {
	secret     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue returns a fresh token pair for a user.
func (i *Issuer) Issue(userID uuid.UUID, role models.UserRole) (Tokens, error) {
	now := i.now()
	access, err := i.sign(userID, role, AccessToken, now, i.accessTTL)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := i.sign(userID, role, RefreshToken, now, i.refreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{AccessToken: access, RefreshToken: refresh, ExpiresAt: now.Add(i.accessTTL)}, nil
}

func (i *Issuer) sign(userID uuid.UUID, role models.UserRole, typ TokenType, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": string(role),
		"typ":  string(typ),
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(i.secret))
}

// Parse validates a token of the wanted type. An expired token yields
// errors.ErrTokenExpired; any other defect yields errors.ErrUnauthenticated.
func (i *Issuer) Parse(tokenString string, want TokenType) (*Claims, error) {
	mc, err := validateToken(tokenString, i.secret, i.now)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, e.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", e.ErrUnauthenticated, err)
	}

	typ, _ := mc["typ"].(string)
	if TokenType(typ) != want {
		return nil, fmt.Errorf("%w: expected %s token", e.ErrUnauthenticated, want)
	}
	sub, _ := mc["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid subject", e.ErrUnauthenticated)
	}
	role, _ := mc["role"].(string)
	return &Claims{UserID: userID, Role: models.UserRole(role), Type: want}, nil
}

// validateToken checks the token signature and returns parsed claims if valid.
func validateToken(tokenString, secret string, now func() time.Time) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithTimeFunc(now), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token claims")
}
