// Package controller implements the core business logic (service layer)
// for founder profiles, investor listings and admin review, orchestrating
// repository operations and sending relevant events.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gartstein/founderhub/internal/company/approval"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/events"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/gartstein/founderhub/internal/company/reconcile"
	"github.com/gartstein/founderhub/internal/company/storage"
	"github.com/gartstein/founderhub/internal/pkg/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRejectionReason matches the size of the rejection_reason column.
const maxRejectionReason = 1000

type EventProducer interface {
	Produce(eventType events.EventType, company *models.Company)
}

// Repository defines the storage the service reads and writes outside of
// profile reconciliation.
type Repository interface {
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetCompanyByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Company, error)
	GetSnapshot(ctx context.Context, id uuid.UUID) (*models.ProfileSnapshot, error)
	ListCompanies(ctx context.Context, f models.CompanyFilter) ([]models.Company, int64, error)
	UpdateReview(ctx context.Context, c *models.Company) error
	UpdateLogo(ctx context.Context, id uuid.UUID, url string) error
	UpdatePitchDeck(ctx context.Context, id uuid.UUID, url string) error
	DeleteCompany(ctx context.Context, id uuid.UUID) error

	CreateNews(ctx context.Context, n *models.News) error
	ListNews(ctx context.Context, companyID uuid.UUID) ([]models.News, error)
	GetNews(ctx context.Context, companyID, newsID uuid.UUID) (*models.News, error)
	DeleteNews(ctx context.Context, companyID, newsID uuid.UUID) error
	ClearNewsThumbnail(ctx context.Context, companyID, newsID uuid.UUID) error
}

// Reconciler applies founder submissions.
type Reconciler interface {
	Register(ctx context.Context, sess reconcile.Session, p *models.Profile) (*reconcile.Result, error)
	Submit(ctx context.Context, sess reconcile.Session, companyID uuid.UUID, p *models.Profile) (*reconcile.Result, error)
}

type FileStore interface {
	Upload(ctx context.Context, companyID uuid.UUID, kind storage.Kind, filename string, r io.Reader) (*storage.Object, error)
	DeleteURL(ctx context.Context, url string) error
}

// StructValidator validates tagged input structs.
type StructValidator interface {
	Struct(s interface{}) error
}

// Page is one page of a company listing.
type Page struct {
	Companies []models.Company
	Total     int64
}

// CompanyService provides the operations behind the HTTP API.
type CompanyService struct {
	repo      Repository
	engine    Reconciler
	files     FileStore
	cache     ListingCache
	validator StructValidator
	producer  EventProducer
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewCompanyService wires the service. A nil cache disables listing
// caching.
func NewCompanyService(
	repo Repository,
	engine Reconciler,
	files FileStore,
	cache ListingCache,
	validator StructValidator,
	producer EventProducer,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *CompanyService {
	if cache == nil {
		cache = noCache{}
	}
	return &CompanyService{
		repo:      repo,
		engine:    engine,
		files:     files,
		cache:     cache,
		validator: validator,
		producer:  producer,
		metrics:   metrics,
		logger:    logger.Named("company_service"),
		now:       time.Now,
	}
}

func (s *CompanyService) emit(eventType events.EventType, company *models.Company) {
	go func() {
		s.producer.Produce(eventType, company)
	}()
}

// Register creates the caller's company from a complete profile.
func (s *CompanyService) Register(ctx context.Context, sess reconcile.Session, p *models.Profile) (*reconcile.Result, error) {
	res, err := s.engine.Register(ctx, sess, p)
	s.metrics.Submissions.WithLabelValues("register", telemetry.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.logger.Info("company registered",
		zap.String("company_id", res.Snapshot.Company.ID.String()),
		zap.String("owner_id", res.Snapshot.Company.OwnerID.String()),
	)
	s.emit(events.CompanyRegistered, res.Snapshot.Company)
	return res, nil
}

// SubmitProfile replaces the caller's company profile.
func (s *CompanyService) SubmitProfile(ctx context.Context, sess reconcile.Session, id uuid.UUID, p *models.Profile) (*reconcile.Result, error) {
	res, err := s.engine.Submit(ctx, sess, id, p)
	s.metrics.Submissions.WithLabelValues("edit", telemetry.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.invalidateListings(ctx)
	s.emit(events.CompanyUpdated, res.Snapshot.Company)
	return res, nil
}

// GetProfile returns a company with its collections. Hidden companies are
// reported as not found to everyone except their owner and admins.
func (s *CompanyService) GetProfile(ctx context.Context, user *models.User, id uuid.UUID) (*models.ProfileSnapshot, error) {
	snap, err := s.repo.GetSnapshot(ctx, id)
	if err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	if !canSee(user, snap.Company) {
		return nil, e.ErrNotFound
	}
	return snap, nil
}

// GetMyProfile returns the caller's own company.
func (s *CompanyService) GetMyProfile(ctx context.Context, user *models.User) (*models.ProfileSnapshot, error) {
	company, err := s.repo.GetCompanyByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.repo.GetSnapshot(ctx, company.ID)
}

// ListCompanies returns the investor listing: visible companies only,
// regardless of the requested status.
func (s *CompanyService) ListCompanies(ctx context.Context, f models.CompanyFilter) (*Page, error) {
	f.VisibleOnly = true
	f.Status = ""

	if page, ok := s.cache.Get(ctx, f); ok {
		s.metrics.CacheHits.Inc()
		return page, nil
	}
	s.metrics.CacheMisses.Inc()

	companies, total, err := s.repo.ListCompanies(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	page := &Page{Companies: companies, Total: total}
	s.cache.Set(ctx, f, page)
	return page, nil
}

// AdminListCompanies lists companies in any status.
func (s *CompanyService) AdminListCompanies(ctx context.Context, f models.CompanyFilter) (*Page, error) {
	f.VisibleOnly = false
	companies, total, err := s.repo.ListCompanies(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return &Page{Companies: companies, Total: total}, nil
}

// Accept makes a company visible to investors.
func (s *CompanyService) Accept(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return s.review(ctx, id, "accept", func(c *models.Company) error {
		return approval.Accept(c, s.now().UTC())
	}, events.CompanyAccepted)
}

// Reject hides a company and records the reason shown to its founder.
func (s *CompanyService) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.Company, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) > maxRejectionReason {
		return nil, fmt.Errorf("%w: rejection reason too long", e.ErrInvalidInput)
	}
	return s.review(ctx, id, "reject", func(c *models.Company) error {
		return approval.Reject(c, reason, s.now().UTC())
	}, events.CompanyRejected)
}

func (s *CompanyService) review(ctx context.Context, id uuid.UUID, decision string, apply func(*models.Company) error, eventType events.EventType) (*models.Company, error) {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(company); err != nil {
		return nil, err
	}
	if err := approval.Check(company); err != nil {
		return nil, fmt.Errorf("inconsistent review of %s: %w", id, err)
	}
	if err := s.repo.UpdateReview(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to save review: %w", err)
	}
	s.invalidateListings(ctx)
	s.metrics.Reviews.WithLabelValues(decision).Inc()
	s.logger.Info("company reviewed",
		zap.String("company_id", id.String()),
		zap.String("decision", decision),
		zap.String("status", string(company.Status)),
	)
	s.emit(eventType, company)
	return company, nil
}

// DeleteCompany removes a company with all of its collections. Only the
// owner and admins may do so.
func (s *CompanyService) DeleteCompany(ctx context.Context, user *models.User, id uuid.UUID) error {
	company, err := s.owned(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteCompany(ctx, id); err != nil {
		if errors.Is(err, e.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete company: %w", err)
	}
	s.invalidateListings(ctx)
	s.emit(events.CompanyDeleted, company)
	return nil
}

// AttachUpload stores a file for a company. Logos and pitch decks are
// recorded on the company right away; photos and thumbnails are returned
// for the client to reference in its next submission.
func (s *CompanyService) AttachUpload(ctx context.Context, user *models.User, id uuid.UUID, kind storage.Kind, filename string, r io.Reader) (*storage.Object, error) {
	company, err := s.owned(ctx, user, id)
	if err != nil {
		return nil, err
	}

	obj, err := s.files.Upload(ctx, id, kind, filename, r)
	s.metrics.Uploads.WithLabelValues(string(kind), telemetry.Outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	switch kind {
	case storage.KindLogo:
		err = s.repo.UpdateLogo(ctx, id, obj.URL)
		company.LogoURL = obj.URL
	case storage.KindPitchDeck:
		err = s.repo.UpdatePitchDeck(ctx, id, obj.URL)
		company.PitchDeckURL = obj.URL
	default:
		return obj, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}
	s.invalidateListings(ctx)
	s.emit(events.CompanyUpdated, company)
	return obj, nil
}

// owned loads a company the user may modify.
func (s *CompanyService) owned(ctx context.Context, user *models.User, id uuid.UUID) (*models.Company, error) {
	company, err := s.repo.GetCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role != models.UserRoleAdmin && company.OwnerID != user.ID {
		return nil, e.ErrPermissionDenied
	}
	return company, nil
}

func canSee(user *models.User, c *models.Company) bool {
	if approval.Visible(c.Status) {
		return true
	}
	return user != nil && (user.Role == models.UserRoleAdmin || user.ID == c.OwnerID)
}
