package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutiveRole is a C-level title.
type ExecutiveRole string

const (
	RoleCEO ExecutiveRole = "CEO"
	RoleCTO ExecutiveRole = "CTO"
	RoleCOO ExecutiveRole = "COO"
	RoleCFO ExecutiveRole = "CFO"
	RoleCMO ExecutiveRole = "CMO"
	RoleCPO ExecutiveRole = "CPO"
	RoleCRO ExecutiveRole = "CRO"
	RoleCSO ExecutiveRole = "CSO"
)

// MetricSource tags where a metric observation came from.
type MetricSource string

const (
	SourceStripe MetricSource = "stripe"
	SourceGA4    MetricSource = "ga4"
	SourceManual MetricSource = "manual"
)

// Collection names one of the child collections owned by a Company.
type Collection string

const (
	CollectionExecutives Collection = "executives"
	CollectionQnA        Collection = "company_qna"
	// CollectionMainVideo is the single is_main row of company_videos.
	CollectionMainVideo Collection = "main_video"
	CollectionMetrics   Collection = "company_metrics"
	CollectionNews      Collection = "company_news"
)

// Executive is a member of the leadership team. The first executive of a
// profile is always the CEO.
type Executive struct {
	ID        uuid.UUID     `json:"id,omitempty"`
	Name      string        `json:"name" validate:"required,max=100"`
	Role      ExecutiveRole `json:"role" validate:"required,oneof=CEO CTO COO CFO CMO CPO CRO CSO"`
	PhotoURL  string        `json:"photo_url,omitempty" validate:"omitempty,http_url"`
	Bio       string        `json:"bio,omitempty" validate:"max=2000"`
	Education string        `json:"education,omitempty" validate:"max=500"`
	LinkedIn  string        `json:"linkedin,omitempty" validate:"omitempty,http_url"`
	Twitter   string        `json:"twitter,omitempty" validate:"omitempty,http_url"`
	// Position keeps insertion order within an edit session.
	Position int `json:"position"`
}

// QnA is an answer to a catalog question.
type QnA struct {
	ID       uuid.UUID `json:"id,omitempty"`
	Category string    `json:"category,omitempty"`
	Question string    `json:"question" validate:"required"`
	Answer   string    `json:"answer" validate:"max=2000"`
}

// Video is a pitch video. The edit form only maintains the main one.
type Video struct {
	ID          uuid.UUID `json:"id,omitempty"`
	URL         string    `json:"url" validate:"omitempty,http_url"`
	Description string    `json:"description,omitempty" validate:"max=500"`
	IsMain      bool      `json:"is_main"`
}

// Metric is one (month, source) observation for a company.
type Metric struct {
	CompanyID uuid.UUID `json:"company_id"`
	// Month is a year-month key, e.g. "2024-01".
	Month     string       `json:"month"`
	Revenue   *float64     `json:"revenue,omitempty"`
	MAU       *int64       `json:"mau,omitempty"`
	Retention *float64     `json:"retention,omitempty"`
	Source    MetricSource `json:"source"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// News is an independently managed press item.
type News struct {
	ID           uuid.UUID  `json:"id"`
	CompanyID    uuid.UUID  `json:"company_id"`
	Title        string     `json:"title" validate:"required,max=200"`
	URL          string     `json:"url" validate:"required,http_url"`
	Summary      string     `json:"summary,omitempty" validate:"max=1000"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty" validate:"omitempty,http_url"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
