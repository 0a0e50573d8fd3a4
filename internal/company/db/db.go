package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbmodels "github.com/gartstein/founderhub/internal/company/db/models"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Repository struct {
	db *gorm.DB
}

type Config struct {
	// Driver is "postgres" (default) or "sqlite".
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the sqlite database file, or ":memory:".
	Path         string
	MaxOpenConns int
	MaxIdleConns int
}

func NewRepository(cfg *Config) (*Repository, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// every sqlite connection to ":memory:" is a distinct database
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{db: db}, nil
}

// AutoMigrate creates or updates every table of the profile store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&dbmodels.User{},
		&dbmodels.Company{},
		&dbmodels.Executive{},
		&dbmodels.QnA{},
		&dbmodels.Video{},
		&dbmodels.Metric{},
		&dbmodels.News{},
	)
}

func (r *Repository) CreateCompany(ctx context.Context, company *models.Company) error {
	rec := toCompanyRecord(company)
	result := r.db.WithContext(ctx).Omit("Executives", "QnA", "Videos", "Metrics", "News").Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicate
		}
		return result.Error
	}
	company.ID = rec.ID
	company.CreatedAt = rec.CreatedAt
	company.UpdatedAt = rec.UpdatedAt
	return nil
}

func (r *Repository) GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	var rec dbmodels.Company
	result := r.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return fromCompanyRecord(&rec), nil
}

// GetCompanyByOwner returns the most recent company of an owner.
func (r *Repository) GetCompanyByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Company, error) {
	var rec dbmodels.Company
	result := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		First(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return fromCompanyRecord(&rec), nil
}

// UpdateCompanyFields replaces every founder-editable scalar in one update.
func (r *Repository) UpdateCompanyFields(ctx context.Context, id uuid.UUID, f models.CompanyFields) error {
	result := r.db.WithContext(ctx).Model(&dbmodels.Company{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"name":           f.Name,
			"tagline":        f.Tagline,
			"description":    f.Description,
			"logo_url":       f.LogoURL,
			"pitch_deck_url": f.PitchDeckURL,
			"category":       string(f.Category),
			"stage":          string(f.Stage),
			"employees":      string(f.Employees),
			"founded_at":     f.FoundedAt,
			"location":       f.Location,
			"website":        f.Links.Website,
			"github":         f.Links.GitHub,
			"linkedin":       f.Links.LinkedIn,
			"twitter":        f.Links.Twitter,
			"youtube":        f.Links.YouTube,
			"updated_at":     time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// UpdateReview persists the approval state of a company.
func (r *Repository) UpdateReview(ctx context.Context, c *models.Company) error {
	return r.updateColumns(ctx, c.ID, map[string]interface{}{
		"status":           string(c.Status),
		"is_visible":       c.IsVisible,
		"rejection_reason": c.RejectionReason,
		"reviewed_at":      c.ReviewedAt,
	})
}

// UpdateIntegration persists connected flags, the sync timestamp and the
// approval state they may have changed.
func (r *Repository) UpdateIntegration(ctx context.Context, c *models.Company) error {
	return r.updateColumns(ctx, c.ID, map[string]interface{}{
		"stripe_connected":   c.StripeConnected,
		"ga4_connected":      c.GA4Connected,
		"metrics_updated_at": c.MetricsUpdatedAt,
		"status":             string(c.Status),
		"is_visible":         c.IsVisible,
	})
}

func (r *Repository) UpdateLogo(ctx context.Context, id uuid.UUID, url string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"logo_url": url})
}

func (r *Repository) UpdatePitchDeck(ctx context.Context, id uuid.UUID, url string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"pitch_deck_url": url})
}

func (r *Repository) updateColumns(ctx context.Context, id uuid.UUID, cols map[string]interface{}) error {
	cols["updated_at"] = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&dbmodels.Company{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}

// DeleteCompany removes a company and every row it owns.
func (r *Repository) DeleteCompany(ctx context.Context, id uuid.UUID) error {
	return r.WithTransaction(ctx, func(repo *Repository) error {
		tx := repo.db.WithContext(ctx)
		for _, child := range []interface{}{
			&dbmodels.Executive{}, &dbmodels.QnA{}, &dbmodels.Video{}, &dbmodels.Metric{}, &dbmodels.News{},
		} {
			if err := tx.Where("company_id = ?", id).Delete(child).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(&dbmodels.Company{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return e.ErrNotFound
		}
		return nil
	})
}

// ListCompanies returns a page of companies matching the filter and the
// total number of matches.
func (r *Repository) ListCompanies(ctx context.Context, f models.CompanyFilter) ([]models.Company, int64, error) {
	q := r.db.WithContext(ctx).Model(&dbmodels.Company{})
	if f.VisibleOnly {
		q = q.Where("is_visible = ?", true)
	}
	if f.Category != "" {
		q = q.Where("category = ?", string(f.Category))
	}
	if f.Stage != "" {
		q = q.Where("stage = ?", string(f.Stage))
	}
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(tagline) LIKE ?", like, like)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var recs []dbmodels.Company
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	out := make([]models.Company, 0, len(recs))
	for i := range recs {
		out = append(out, *fromCompanyRecord(&recs[i]))
	}
	return out, total, nil
}

// GetSnapshot loads a company with all of its child collections.
func (r *Repository) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.ProfileSnapshot, error) {
	var rec dbmodels.Company
	result := r.db.WithContext(ctx).
		Preload("Executives", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("QnA", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Videos", func(db *gorm.DB) *gorm.DB { return db.Order("is_main DESC, created_at ASC") }).
		Preload("Metrics", func(db *gorm.DB) *gorm.DB { return db.Order("month ASC, source ASC") }).
		Preload("News", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return fromSnapshotRecord(&rec), nil
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	rec := &dbmodels.User{ID: user.ID, Email: strings.ToLower(user.Email), Role: string(user.Role)}
	result := r.db.WithContext(ctx).Create(rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return e.ErrDuplicate
		}
		return result.Error
	}
	user.ID = rec.ID
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.findUser(ctx, "id = ?", id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findUser(ctx, "email = ?", strings.ToLower(email))
}

func (r *Repository) findUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var rec dbmodels.User
	result := r.db.WithContext(ctx).First(&rec, query, arg)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	return &models.User{ID: rec.ID, Email: rec.Email, Role: models.UserRole(rec.Role)}, nil
}

func (r *Repository) WithTransaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

func (r *Repository) Exec(ctx context.Context, query string, params ...interface{}) error {
	result := r.db.WithContext(ctx).Exec(query, params...)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

func (r *Repository) Close() error {
	db, err := r.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
