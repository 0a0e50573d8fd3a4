// Package models defines the core domain models for a founder's company
// profile: the Company record, its owned child collections and the enums
// that classify them.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Category classifies the market a company operates in.
type Category string

const (
	CategoryAI          Category = "AI"
	CategoryFintech     Category = "FINTECH"
	CategoryHealthtech  Category = "HEALTHTECH"
	CategoryEdtech      Category = "EDTECH"
	CategoryClimate     Category = "CLIMATE"
	CategoryEcommerce   Category = "ECOMMERCE"
	CategorySaaS        Category = "SAAS"
	CategoryMarketplace Category = "MARKETPLACE"
	CategoryHardware    Category = "HARDWARE"
	CategoryOther       Category = "OTHER"
)

// Stage is the funding stage of a company.
type Stage string

const (
	StageIdea    Stage = "IDEA"
	StagePreSeed Stage = "PRE_SEED"
	StageSeed    Stage = "SEED"
	StageSeriesA Stage = "SERIES_A"
	StageSeriesB Stage = "SERIES_B"
	StageGrowth  Stage = "GROWTH"
)

// EmployeeBucket is a coarse head-count range.
type EmployeeBucket string

const (
	Employees1To10    EmployeeBucket = "1-10"
	Employees11To50   EmployeeBucket = "11-50"
	Employees51To200  EmployeeBucket = "51-200"
	Employees201To500 EmployeeBucket = "201-500"
	Employees500Plus  EmployeeBucket = "500+"
)

// ApprovalStatus is the persisted review state of a company.
type ApprovalStatus string

const (
	// StatusPending is the state of every newly registered company.
	StatusPending  ApprovalStatus = "pending"
	StatusAccepted ApprovalStatus = "accepted"
	StatusRejected ApprovalStatus = "rejected"
	// StatusPaid is an accepted company that also connected Stripe.
	StatusPaid ApprovalStatus = "paid"
)

// Links holds the optional external profiles of a company or executive.
type Links struct {
	Website  string `json:"website,omitempty" validate:"omitempty,http_url"`
	GitHub   string `json:"github,omitempty" validate:"omitempty,http_url"`
	LinkedIn string `json:"linkedin,omitempty" validate:"omitempty,http_url"`
	Twitter  string `json:"twitter,omitempty" validate:"omitempty,http_url"`
	YouTube  string `json:"youtube,omitempty" validate:"omitempty,http_url"`
}

// CompanyFields are the founder-editable scalar fields of a Company.
// Every edit submit replaces all of them at once.
type CompanyFields struct {
	// Name is the display name of the company.
	Name string `json:"name" validate:"required,max=100"`
	// Tagline is a one-line pitch.
	Tagline string `json:"tagline" validate:"required,min=10,max=100"`
	// Description is the long-form pitch.
	Description string `json:"description" validate:"required,min=100,max=10000"`
	// LogoURL points at the uploaded logo in the file store.
	LogoURL string `json:"logo_url,omitempty" validate:"omitempty,http_url"`
	// PitchDeckURL points at the uploaded pitch deck in the file store.
	PitchDeckURL string `json:"pitch_deck_url,omitempty" validate:"omitempty,http_url"`
	// Category is the market classification.
	Category Category `json:"category" validate:"required,oneof=AI FINTECH HEALTHTECH EDTECH CLIMATE ECOMMERCE SAAS MARKETPLACE HARDWARE OTHER"`
	// Stage is the funding stage.
	Stage Stage `json:"stage" validate:"required,oneof=IDEA PRE_SEED SEED SERIES_A SERIES_B GROWTH"`
	// Employees is the head-count bucket.
	Employees EmployeeBucket `json:"employees" validate:"required,oneof=1-10 11-50 51-200 201-500 500+"`
	// FoundedAt is the founding date, if known.
	FoundedAt *time.Time `json:"founded_at,omitempty"`
	// Location is a free-form city/country string.
	Location string `json:"location,omitempty" validate:"max=200"`
	// Links are the optional external profiles.
	Links Links `json:"links"`
}

// Company defines the domain model for a founder-owned company profile.
type Company struct {
	// ID is the unique identifier for the company.
	ID uuid.UUID
	// OwnerID references the founder's user record.
	OwnerID uuid.UUID
	CompanyFields
	// IsVisible gates investor-facing queries. It is derived from Status.
	IsVisible bool
	// StripeConnected records a completed Stripe Connect OAuth flow.
	StripeConnected bool
	// GA4Connected records a completed Google Analytics OAuth flow.
	GA4Connected bool
	// MetricsUpdatedAt is the time of the last successful metrics sync.
	MetricsUpdatedAt *time.Time
	// Status is the persisted approval state.
	Status ApprovalStatus
	// RejectionReason is set when an admin rejects the company.
	RejectionReason string
	// ReviewedAt records the last admin decision.
	ReviewedAt *time.Time
	// CreatedAt records the timestamp when the company was created.
	CreatedAt time.Time
	// UpdatedAt records the timestamp when the company was last updated.
	UpdatedAt time.Time
}

// CompanyFilter narrows company listings.
type CompanyFilter struct {
	// VisibleOnly restricts results to investor-visible companies.
	VisibleOnly bool
	Category    Category
	Stage       Stage
	Status      ApprovalStatus
	// Search matches name or tagline, case-insensitively.
	Search string
	Limit  int
	Offset int
}
