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
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// childQuery scopes a query to one child collection of a company.
func (r *Repository) childQuery(ctx context.Context, c models.Collection, companyID uuid.UUID) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx)
	switch c {
	case models.CollectionExecutives:
		return tx.Model(&dbmodels.Executive{}).Where("company_id = ?", companyID), nil
	case models.CollectionQnA:
		return tx.Model(&dbmodels.QnA{}).Where("company_id = ?", companyID), nil
	case models.CollectionMainVideo:
		return tx.Model(&dbmodels.Video{}).Where("company_id = ? AND is_main = ?", companyID, true), nil
	case models.CollectionMetrics:
		return tx.Model(&dbmodels.Metric{}).Where("company_id = ?", companyID), nil
	case models.CollectionNews:
		return tx.Model(&dbmodels.News{}).Where("company_id = ?", companyID), nil
	default:
		return nil, fmt.Errorf("%w: unknown collection %q", e.ErrInvalidInput, c)
	}
}

// DeleteChildren deletes every row of a collection for a company and
// returns the number of rows the database reported as deleted.
func (r *Repository) DeleteChildren(ctx context.Context, c models.Collection, companyID uuid.UUID) (int64, error) {
	q, err := r.childQuery(ctx, c, companyID)
	if err != nil {
		return 0, err
	}
	result := q.Delete(q.Statement.Model)
	return result.RowsAffected, result.Error
}

func (r *Repository) CountChildren(ctx context.Context, c models.Collection, companyID uuid.UUID) (int64, error) {
	q, err := r.childQuery(ctx, c, companyID)
	if err != nil {
		return 0, err
	}
	var n int64
	err = q.Count(&n).Error
	return n, err
}

func (r *Repository) ListChildIDs(ctx context.Context, c models.Collection, companyID uuid.UUID) ([]uuid.UUID, error) {
	q, err := r.childQuery(ctx, c, companyID)
	if err != nil {
		return nil, err
	}
	var ids []uuid.UUID
	err = q.Pluck("id", &ids).Error
	return ids, err
}

func (r *Repository) DeleteChild(ctx context.Context, c models.Collection, companyID, id uuid.UUID) (int64, error) {
	q, err := r.childQuery(ctx, c, companyID)
	if err != nil {
		return 0, err
	}
	result := q.Where("id = ?", id).Delete(q.Statement.Model)
	return result.RowsAffected, result.Error
}

func (r *Repository) InsertExecutives(ctx context.Context, companyID uuid.UUID, execs []models.Executive) error {
	if len(execs) == 0 {
		return nil
	}
	recs := make([]dbmodels.Executive, 0, len(execs))
	for i, ex := range execs {
		recs = append(recs, dbmodels.Executive{
			CompanyID: companyID,
			Name:      strings.TrimSpace(ex.Name),
			Role:      string(ex.Role),
			PhotoURL:  ex.PhotoURL,
			Bio:       ex.Bio,
			Education: ex.Education,
			LinkedIn:  ex.LinkedIn,
			Twitter:   ex.Twitter,
			Position:  i,
		})
	}
	return r.db.WithContext(ctx).Create(&recs).Error
}

func (r *Repository) InsertQnA(ctx context.Context, companyID uuid.UUID, items []models.QnA) error {
	if len(items) == 0 {
		return nil
	}
	recs := make([]dbmodels.QnA, 0, len(items))
	for i, q := range items {
		recs = append(recs, dbmodels.QnA{
			CompanyID: companyID,
			Category:  q.Category,
			Question:  q.Question,
			Answer:    q.Answer,
			Position:  i,
		})
	}
	return r.db.WithContext(ctx).Create(&recs).Error
}

func (r *Repository) InsertVideo(ctx context.Context, companyID uuid.UUID, v models.Video) error {
	return r.db.WithContext(ctx).Create(&dbmodels.Video{
		CompanyID:   companyID,
		URL:         v.URL,
		Description: v.Description,
		IsMain:      v.IsMain,
	}).Error
}

// UpsertMetrics writes metric rows keyed on (company_id, month, source);
// an existing row for the same key is overwritten, never duplicated.
func (r *Repository) UpsertMetrics(ctx context.Context, metrics []models.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	now := time.Now().UTC()
	recs := make([]dbmodels.Metric, 0, len(metrics))
	for _, m := range metrics {
		recs = append(recs, dbmodels.Metric{
			CompanyID: m.CompanyID,
			Month:     m.Month,
			Source:    string(m.Source),
			Revenue:   m.Revenue,
			MAU:       m.MAU,
			Retention: m.Retention,
			UpdatedAt: now,
		})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "company_id"}, {Name: "month"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"revenue", "mau", "retention", "updated_at"}),
	}).Create(&recs).Error
}

func (r *Repository) CreateNews(ctx context.Context, n *models.News) error {
	rec := &dbmodels.News{
		ID:           n.ID,
		CompanyID:    n.CompanyID,
		Title:        n.Title,
		URL:          n.URL,
		Summary:      n.Summary,
		ThumbnailURL: n.ThumbnailURL,
		PublishedAt:  n.PublishedAt,
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return err
	}
	n.ID = rec.ID
	n.CreatedAt = rec.CreatedAt
	return nil
}

func (r *Repository) ListNews(ctx context.Context, companyID uuid.UUID) ([]models.News, error) {
	var recs []dbmodels.News
	if err := r.db.WithContext(ctx).Where("company_id = ?", companyID).Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return fromNewsRecords(recs), nil
}

func (r *Repository) GetNews(ctx context.Context, companyID, newsID uuid.UUID) (*models.News, error) {
	var rec dbmodels.News
	result := r.db.WithContext(ctx).First(&rec, "company_id = ? AND id = ?", companyID, newsID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, e.ErrNotFound
		}
		return nil, result.Error
	}
	n := fromNewsRecords([]dbmodels.News{rec})[0]
	return &n, nil
}

func (r *Repository) DeleteNews(ctx context.Context, companyID, newsID uuid.UUID) error {
	n, err := r.DeleteChild(ctx, models.CollectionNews, companyID, newsID)
	if err != nil {
		return err
	}
	if n == 0 {
		return e.ErrNotFound
	}
	return nil
}

// ClearNewsThumbnail removes only the thumbnail of a news item.
func (r *Repository) ClearNewsThumbnail(ctx context.Context, companyID, newsID uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&dbmodels.News{}).
		Where("company_id = ? AND id = ?", companyID, newsID).
		Update("thumbnail_url", "")
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return e.ErrNotFound
	}
	return nil
}
