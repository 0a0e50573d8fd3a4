// Package models contains the persistence records of the profile store,
// configured to work using GORM as the ORM.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is the companies row. Child collections cascade on delete.
type Company struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID          uuid.UUID `gorm:"type:uuid;index;not null"`
	Name             string    `gorm:"size:100;not null"`
	Tagline          string    `gorm:"size:100"`
	Description      string    `gorm:"size:10000"`
	LogoURL          string    `gorm:"size:2048"`
	PitchDeckURL     string    `gorm:"size:2048"`
	Category         string    `gorm:"size:32;index"`
	Stage            string    `gorm:"size:32;index"`
	Employees        string    `gorm:"size:16"`
	FoundedAt        *time.Time
	Location         string `gorm:"size:200"`
	Website          string `gorm:"size:2048"`
	GitHub           string `gorm:"column:github;size:2048"`
	LinkedIn         string `gorm:"column:linkedin;size:2048"`
	Twitter          string `gorm:"size:2048"`
	YouTube          string `gorm:"column:youtube;size:2048"`
	IsVisible        bool   `gorm:"index;not null;default:false"`
	StripeConnected  bool   `gorm:"not null;default:false"`
	GA4Connected     bool   `gorm:"column:ga4_connected;not null;default:false"`
	MetricsUpdatedAt *time.Time
	Status           string `gorm:"size:16;index;not null;default:pending"`
	RejectionReason  string `gorm:"size:1000"`
	ReviewedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Executives []Executive `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	QnA        []QnA       `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	Videos     []Video     `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	Metrics    []Metric    `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
	News       []News      `gorm:"foreignKey:CompanyID;constraint:OnDelete:CASCADE"`
}

func (Company) TableName() string {
	return "companies"
}

// BeforeCreate assigns a primary key when the caller did not.
func (c *Company) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// User is an identity known to the service.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"size:320;uniqueIndex;not null"`
	Role      string    `gorm:"size:16;not null"`
	CreatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
