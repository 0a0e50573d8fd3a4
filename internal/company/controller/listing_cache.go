package controller

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/gartstein/founderhub/internal/company/events"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/gartstein/founderhub/internal/pkg/cache"
	"go.uber.org/zap"
)

const listingKeyPrefix = "listing:"

// ListingCache keeps investor listing pages keyed by filter.
type ListingCache interface {
	Get(ctx context.Context, f models.CompanyFilter) (*Page, bool)
	Set(ctx context.Context, f models.CompanyFilter, page *Page)
	Invalidate(ctx context.Context) error
}

type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
}

// RedisListingCache stores pages as JSON. Cache failures are logged and
// treated as misses.
type RedisListingCache struct {
	kv     KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisListingCache(kv KV, ttl time.Duration, logger *zap.Logger) *RedisListingCache {
	return &RedisListingCache{kv: kv, ttl: ttl, logger: logger.Named("listing_cache")}
}

func listingKey(f models.CompanyFilter) string {
	b, _ := json.Marshal(f)
	sum := sha256.Sum256(b)
	return listingKeyPrefix + hex.EncodeToString(sum[:12])
}

func (c *RedisListingCache) Get(ctx context.Context, f models.CompanyFilter) (*Page, bool) {
	raw, err := c.kv.Get(ctx, listingKey(f))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("listing cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		c.logger.Warn("corrupt listing cache entry", zap.Error(err))
		return nil, false
	}
	return &page, true
}

func (c *RedisListingCache) Set(ctx context.Context, f models.CompanyFilter, page *Page) {
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, listingKey(f), raw, c.ttl); err != nil {
		c.logger.Warn("listing cache write failed", zap.Error(err))
	}
}

func (c *RedisListingCache) Invalidate(ctx context.Context) error {
	n, err := c.kv.DeletePattern(ctx, listingKeyPrefix+"*")
	if err != nil {
		return err
	}
	c.logger.Debug("listing cache invalidated", zap.Int("keys", n))
	return nil
}

type noCache struct{}

func (noCache) Get(context.Context, models.CompanyFilter) (*Page, bool) { return nil, false }
func (noCache) Set(context.Context, models.CompanyFilter, *Page)        {}
func (noCache) Invalidate(context.Context) error                        { return nil }

// invalidateListings drops this replica's cached listings right after a
// write. Other replicas follow through HandleEvent.
func (s *CompanyService) invalidateListings(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Error("failed to invalidate listing cache", zap.Error(err))
	}
}

// HandleEvent drops cached listings whenever a company changes. It is the
// handler of the company event consumer.
func (s *CompanyService) HandleEvent(ctx context.Context, event events.Event) error {
	s.logger.Debug("company event received",
		zap.String("event_type", string(event.Type)),
		zap.String("company_id", event.CompanyID.String()),
	)
	return s.cache.Invalidate(ctx)
}
