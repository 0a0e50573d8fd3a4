// Package oauthstate carries a founder across the provider OAuth redirect.
// The state parameter is a signed, base64-encoded blob; the data it refers
// to lives in Redis under its nonce and can be consumed only once.
package oauthstate

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/ingest"
	"github.com/gartstein/founderhub/internal/pkg/cache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keyPrefix = "oauth:state:"

// DefaultTTL is how long a state stays valid.
const DefaultTTL = 10 * time.Minute

// KV is the subset of the Redis client the store uses.
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Take(ctx context.Context, key string) ([]byte, error)
}

type ProviderLookup interface {
	Provider(name string) (ingest.Provider, error)
}

// payload is what travels in the state parameter.
type payload struct {
	Provider   string `json:"provider"`
	ReturnPath string `json:"returnPath"`
	Nonce      string `json:"nonce"`
	Timestamp  int64  `json:"timestamp"`
}

// Record is the server-side half of a state.
type Record struct {
	Provider   string     `json:"provider"`
	ReturnPath string     `json:"return_path"`
	UserID     uuid.UUID  `json:"user_id"`
	CompanyID  *uuid.UUID `json:"company_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Store struct {
	kv          KV
	providers   ProviderLookup
	secret      []byte
	redirectURI string
	ttl         time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

func NewStore(kv KV, providers ProviderLookup, secret, redirectURI string, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		kv:          kv,
		providers:   providers,
		secret:      []byte(secret),
		redirectURI: redirectURI,
		ttl:         ttl,
		logger:      logger.Named("oauthstate"),
		now:         time.Now,
	}
}

// Begin records a pending authorization and returns the state and the URL
// to send the founder to.
func (s *Store) Begin(ctx context.Context, provider, returnPath string, userID uuid.UUID, companyID *uuid.UUID) (state, authorizeURL string, err error) {
	p, err := s.providers.Provider(provider)
	if err != nil {
		return "", "", err
	}
	if returnPath == "" || !strings.HasPrefix(returnPath, "/") || strings.HasPrefix(returnPath, "//") {
		returnPath = "/"
	}

	nonce, err := newNonce()
	if err != nil {
		return "", "", err
	}
	now := s.now().UTC()
	rec, err := json.Marshal(Record{
		Provider:   provider,
		ReturnPath: returnPath,
		UserID:     userID,
		CompanyID:  companyID,
		CreatedAt:  now,
	})
	if err != nil {
		return "", "", err
	}
	if err := s.kv.Set(ctx, keyPrefix+nonce, rec, s.ttl); err != nil {
		return "", "", fmt.Errorf("store oauth state: %w", err)
	}

	state, err = s.encode(payload{Provider: provider, ReturnPath: returnPath, Nonce: nonce, Timestamp: now.UnixMilli()})
	if err != nil {
		return "", "", err
	}
	return state, p.AuthorizeURL(s.redirectURI, state), nil
}

// Verify checks a returned state and consumes its record.
func (s *Store) Verify(ctx context.Context, state string) (*Record, error) {
	p, err := s.decode(state)
	if err != nil {
		return nil, err
	}
	if s.now().Sub(time.UnixMilli(p.Timestamp)) > s.ttl {
		return nil, e.ErrStateExpired
	}

	raw, err := s.kv.Take(ctx, keyPrefix+p.Nonce)
	if errors.Is(err, cache.ErrMiss) {
		return nil, fmt.Errorf("%w: unknown or used nonce", e.ErrStateMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("load oauth state: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt record", e.ErrStateMismatch)
	}
	if rec.Provider != p.Provider {
		return nil, fmt.Errorf("%w: provider", e.ErrStateMismatch)
	}
	return &rec, nil
}

// RedirectURI is the callback URL registered with the providers.
func (s *Store) RedirectURI() string { return s.redirectURI }

func (s *Store) encode(p payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding.EncodeToString(body)
	return enc + "." + s.sign(enc), nil
}

func (s *Store) decode(state string) (payload, error) {
	var p payload
	enc, sig, ok := strings.Cut(state, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(s.sign(enc))) {
		return p, fmt.Errorf("%w: bad signature", e.ErrStateMismatch)
	}
	body, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return p, fmt.Errorf("%w: bad encoding", e.ErrStateMismatch)
	}
	if err := json.Unmarshal(body, &p); err != nil || p.Nonce == "" {
		return p, fmt.Errorf("%w: bad payload", e.ErrStateMismatch)
	}
	return p, nil
}

func (s *Store) sign(enc string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(enc))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
