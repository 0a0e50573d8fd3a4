// This is a **development login service**: it hands out access/refresh
// token pairs for any email and role, creating the user on first use, so
// the founderhub API can be exercised without a real identity provider.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gartstein/founderhub/internal/company/auth"
	"github.com/gartstein/founderhub/internal/company/config"
	gorm "github.com/gartstein/founderhub/internal/company/db"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/gartstein/founderhub/internal/pkg/logging"
	"go.uber.org/zap"
)

const defaultPort = "8081" // Default port for the authentication service

// UserStore finds and creates users.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// TokenRequest is the login body.
type TokenRequest struct {
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

// TokenResponse represents the response structure
type TokenResponse struct {
	UserID string `json:"user_id"`
	auth.Tokens
}

type tokenService struct {
	users  UserStore
	issuer *auth.Issuer
	logger *zap.Logger
}

// tokenHandler finds or creates the user and returns a fresh token pair.
func (s *tokenService) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	switch req.Role {
	case models.UserRoleStartup, models.UserRoleInvestor, models.UserRoleAdmin:
	default:
		http.Error(w, "role must be startup, investor or admin", http.StatusBadRequest)
		return
	}

	user, err := s.findOrCreate(r.Context(), req)
	if err != nil {
		s.logger.Error("Failed to resolve user", zap.Error(err))
		http.Error(w, "Failed to resolve user", http.StatusInternalServerError)
		return
	}

	tokens, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(TokenResponse{UserID: user.ID.String(), Tokens: tokens}); err != nil {
		s.logger.Error("Failed to encode token", zap.Error(err))
	}
}

// findOrCreate keeps the stored role of an existing user.
func (s *tokenService) findOrCreate(ctx context.Context, req TokenRequest) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, e.ErrNotFound) {
		return nil, err
	}
	user = &models.User{Email: req.Email, Role: req.Role}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, e.ErrDuplicate) {
			return s.users.GetUserByEmail(ctx, req.Email)
		}
		return nil, err
	}
	return user, nil
}

func main() {
	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel}).Named("authentication")
	defer func() { _ = logger.Sync() }()

	repo, err := gorm.NewRepository(&gorm.Config{
		Driver:   cfg.DBDriver,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		Path:     cfg.DBPath,
	})
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	svc := &tokenService{
		users:  repo,
		issuer: auth.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		logger: logger,
	}

	port := os.Getenv("AUTH_PORT")
	if port == "" {
		port = defaultPort
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", svc.tokenHandler)

	logger.Info("Authentication service running", zap.String("port", port))
	server := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("authentication service stopped", zap.Error(err))
	}
}
