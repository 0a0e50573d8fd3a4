package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Executive struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;index;not null"`
	Name      string    `gorm:"size:100;not null"`
	Role      string    `gorm:"size:8;not null"`
	PhotoURL  string    `gorm:"size:2048"`
	Bio       string    `gorm:"size:2000"`
	Education string    `gorm:"size:500"`
	LinkedIn  string    `gorm:"column:linkedin;size:2048"`
	Twitter   string    `gorm:"size:2048"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (Executive) TableName() string {
	return "executives"
}

func (e *Executive) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type QnA struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;index;not null"`
	Category  string    `gorm:"size:32"`
	Question  string    `gorm:"size:500;not null"`
	Answer    string    `gorm:"size:2000;not null"`
	Position  int       `gorm:"not null;default:0"`
	CreatedAt time.Time
}

func (QnA) TableName() string {
	return "company_qna"
}

func (q *QnA) BeforeCreate(_ *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

type Video struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID   uuid.UUID `gorm:"type:uuid;index;not null"`
	URL         string    `gorm:"size:2048;not null"`
	Description string    `gorm:"size:500"`
	IsMain      bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time
}

func (Video) TableName() string {
	return "company_videos"
}

func (v *Video) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Metric is unique per (company_id, month, source); writes are upserts.
type Metric struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_metric_company_month_source,priority:1"`
	Month     string    `gorm:"size:7;not null;uniqueIndex:idx_metric_company_month_source,priority:2"`
	Source    string    `gorm:"size:16;not null;uniqueIndex:idx_metric_company_month_source,priority:3"`
	Revenue   *float64
	MAU       *int64 `gorm:"column:mau"`
	Retention *float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Metric) TableName() string {
	return "company_metrics"
}

func (m *Metric) BeforeCreate(_ *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type News struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	CompanyID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Title        string    `gorm:"size:200;not null"`
	URL          string    `gorm:"size:2048;not null"`
	Summary      string    `gorm:"size:1000"`
	ThumbnailURL string    `gorm:"size:2048"`
	PublishedAt  *time.Time
	CreatedAt    time.Time
}

func (News) TableName() string {
	return "company_news"
}

func (n *News) BeforeCreate(_ *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
