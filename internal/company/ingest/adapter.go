package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gartstein/founderhub/internal/company/approval"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/events"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/gartstein/founderhub/internal/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the adapter needs.
type Store interface {
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	UpsertMetrics(ctx context.Context, metrics []models.Metric) error
	UpdateIntegration(ctx context.Context, c *models.Company) error
}

type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
}

type EventProducer interface {
	Produce(eventType events.EventType, company *models.Company)
}

// Request is one sync run.
type Request struct {
	Provider    string
	Code        string
	RedirectURI string
	// CompanyID is nil before the company is registered; the run is then
	// a preview and nothing is persisted.
	CompanyID *uuid.UUID
	// AccessToken is the caller's session, when one was presented.
	AccessToken string
	// Identity is the user id the client claims when its session is stale.
	Identity uuid.UUID
}

type Options struct {
	// SyncTimeout bounds the code exchange and the metrics fetch, retries
	// included.
	SyncTimeout time.Duration
	// InitialInterval is the first retry delay.
	InitialInterval time.Duration
	MaxRetries      uint64
}

func (o *Options) setDefaults() {
	if o.SyncTimeout <= 0 {
		o.SyncTimeout = 15 * time.Second
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 500 * time.Millisecond
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
}

// Adapter runs provider syncs and records their outcome.
type Adapter struct {
	store     Store
	guard     Authenticator
	producer  EventProducer
	providers map[string]Provider
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

func NewAdapter(store Store, guard Authenticator, producer EventProducer, opts Options, logger *zap.Logger, providers ...Provider) *Adapter {
	opts.setDefaults()
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[string(p.Source())] = p
	}
	return &Adapter{
		store:     store,
		guard:     guard,
		producer:  producer,
		providers: byName,
		opts:      opts,
		logger:    logger.Named("ingest"),
		now:       time.Now,
	}
}

// Provider returns the provider registered under name.
func (a *Adapter) Provider(name string) (Provider, error) {
	p, ok := a.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", e.ErrUnsupportedProvider, name)
	}
	return p, nil
}

// Sync exchanges the code, fetches the trailing months and, for an existing
// company, saves them. Fetch failures after a successful exchange are
// reported in the result, not as an error.
func (a *Adapter) Sync(ctx context.Context, req Request) (Result, error) {
	provider, err := a.Provider(req.Provider)
	if err != nil {
		return nil, err
	}
	if req.Code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", e.ErrInvalidInput)
	}

	var company *models.Company
	if req.CompanyID != nil {
		company, err = a.authorize(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	// The exchange and the fetch share one deadline; saving does not.
	syncCtx, cancel := context.WithTimeout(ctx, a.opts.SyncTimeout)
	defer cancel()

	conn, err := provider.Exchange(syncCtx, req.Code, req.RedirectURI)
	if err != nil {
		a.logger.Warn("code exchange failed", zap.String("provider", req.Provider), zap.Error(err))
		if errors.Is(syncCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w: token exchange", e.ErrProviderAPI, e.ErrTimeout)
		}
		return nil, err
	}

	months := monthKeys(a.now().UTC(), TrailingMonths)
	rows, fetchErr := a.fetch(syncCtx, provider, conn, months)
	syncErr := ""
	if fetchErr != nil {
		syncErr = fetchErr.Error()
		a.logger.Warn("metrics fetch failed", zap.String("provider", req.Provider), zap.Error(fetchErr))
	}

	if company == nil {
		return Preview{Rows: rows, Err: syncErr}, nil
	}
	if err := a.save(ctx, company, provider.Source(), rows); err != nil {
		return nil, err
	}
	return Saved{CompanyID: company.ID, Rows: rows, Err: syncErr}, nil
}

// authorize resolves the caller and checks it owns the company. A stale
// session falls back to the client-supplied identity; a revoked one does
// not.
func (a *Adapter) authorize(ctx context.Context, req Request) (*models.Company, error) {
	userID := req.Identity
	if req.AccessToken != "" {
		user, err := a.guard.Authenticate(ctx, req.AccessToken)
		switch {
		case err == nil:
			userID = user.ID
		case errors.Is(err, e.ErrSessionRevoked):
			return nil, err
		case errors.Is(err, e.ErrTokenExpired), errors.Is(err, e.ErrUnauthenticated):
			a.logger.Warn("stale session on metrics sync, using client identity",
				zap.String("identity", req.Identity.String()), zap.Error(err))
		default:
			return nil, err
		}
	}
	if userID == uuid.Nil {
		return nil, e.ErrUnauthenticated
	}

	company, err := a.store.GetCompany(ctx, *req.CompanyID)
	if err != nil {
		return nil, err
	}
	if company.OwnerID != userID {
		return nil, e.ErrPermissionDenied
	}
	return company, nil
}

func (a *Adapter) fetch(fetchCtx context.Context, p Provider, conn *Connection, months []string) ([]models.Metric, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.opts.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, a.opts.MaxRetries), fetchCtx)

	var rows []models.Metric
	err := backoff.Retry(func() error {
		var err error
		rows, err = p.FetchMonthly(fetchCtx, conn, months)
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: metrics sync", e.ErrTimeout)
		}
		return nil, err
	}
	return rows, nil
}

func (a *Adapter) save(ctx context.Context, c *models.Company, source models.MetricSource, rows []models.Metric) error {
	for i := range rows {
		rows[i].CompanyID = c.ID
	}
	if err := a.store.UpsertMetrics(ctx, rows); err != nil {
		return err
	}

	switch source {
	case models.SourceStripe:
		c.StripeConnected = true
	case models.SourceGA4:
		c.GA4Connected = true
	}
	if len(rows) > 0 {
		c.MetricsUpdatedAt = utils.Ptr(a.now().UTC())
	}
	if approval.SyncPayment(c) {
		a.logger.Info("payment status changed", zap.String("company_id", c.ID.String()), zap.String("status", string(c.Status)))
	}
	if err := approval.Check(c); err != nil {
		return fmt.Errorf("inconsistent company %s after sync: %w", c.ID, err)
	}
	if err := a.store.UpdateIntegration(ctx, c); err != nil {
		return err
	}
	a.producer.Produce(events.MetricsSynced, c)
	return nil
}
