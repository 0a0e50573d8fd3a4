// Package ingest connects a company to Stripe or Google Analytics through
// an OAuth authorization code and turns the provider's reporting data into
// monthly metric rows.
package ingest

import (
	"context"
	"time"

	"github.com/gartstein/founderhub/internal/company/models"
)

// TrailingMonths is how many months, the current one included, a sync
// fetches.
const TrailingMonths = 6

// Connection is what a provider hands back for an authorization code.
type Connection struct {
	AccessToken string
	// AccountID is the connected Stripe account or the GA4 property.
	AccountID string
}

// Provider is one metrics source.
type Provider interface {
	Source() models.MetricSource
	// AuthorizeURL is where the founder is sent to grant access.
	AuthorizeURL(redirectURI, state string) string
	// Exchange trades an authorization code for a connection.
	Exchange(ctx context.Context, code, redirectURI string) (*Connection, error)
	// FetchMonthly returns one row per month key in months.
	FetchMonthly(ctx context.Context, conn *Connection, months []string) ([]models.Metric, error)
}

// monthKeys returns the n "YYYY-MM" keys ending with the month of now,
// oldest first.
func monthKeys(now time.Time, n int) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = first.AddDate(0, i-n+1, 0).Format("2006-01")
	}
	return keys
}

// monthStart parses a month key into the first instant of that month.
func monthStart(key string) (time.Time, error) {
	return time.Parse("2006-01", key)
}
