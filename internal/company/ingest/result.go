package ingest

import (
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/google/uuid"
)

// Result is either a Preview or a Saved sync outcome.
type Result interface {
	// Metrics returns the normalized rows that were fetched.
	Metrics() []models.Metric
	// SyncError describes a non-fatal provider failure, or is empty.
	SyncError() string
	isResult()
}

// Preview is the outcome of a sync run before a company exists; nothing
// was persisted.
type Preview struct {
	Rows []models.Metric
	Err  string
}

func (p Preview) Metrics() []models.Metric { return p.Rows }
func (p Preview) SyncError() string        { return p.Err }
func (Preview) isResult()                  {}

// Saved is the outcome of a sync run for an existing company whose rows,
// connected flag and sync time were persisted.
type Saved struct {
	CompanyID uuid.UUID
	Rows      []models.Metric
	Err       string
}

func (s Saved) Metrics() []models.Metric { return s.Rows }
func (s Saved) SyncError() string        { return s.Err }
func (Saved) isResult()                  {}
