// Package approval implements the review state machine that gates investor
// visibility of a company.
//
// The status column is the source of truth; IsVisible is derived from it:
//
//	pending  -> accepted | paid   (Accept)
//	rejected -> accepted | paid   (Accept)
//	pending | accepted | paid -> rejected (Reject)
//	accepted <-> paid             (SyncPayment, follows StripeConnected)
package approval

import (
	"fmt"
	"time"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
)

// Visible reports whether investors may see a company in status s.
func Visible(s models.ApprovalStatus) bool {
	return s == models.StatusAccepted || s == models.StatusPaid
}

// Accept makes a pending or rejected company visible. It lands in paid
// directly when Stripe is already connected.
func Accept(c *models.Company, now time.Time) error {
	switch c.Status {
	case models.StatusPending, models.StatusRejected, "":
	default:
		return fmt.Errorf("%w: cannot accept a company that is %s", e.ErrInvalidTransition, c.Status)
	}
	c.Status = models.StatusAccepted
	if c.StripeConnected {
		c.Status = models.StatusPaid
	}
	c.IsVisible = true
	c.RejectionReason = ""
	c.ReviewedAt = &now
	return nil
}

// Reject hides a company and records why.
func Reject(c *models.Company, reason string, now time.Time) error {
	if c.Status == models.StatusRejected {
		return fmt.Errorf("%w: company is already rejected", e.ErrInvalidTransition)
	}
	c.Status = models.StatusRejected
	c.IsVisible = false
	c.RejectionReason = reason
	c.ReviewedAt = &now
	return nil
}

// SyncPayment moves a visible company between accepted and paid to follow
// its Stripe connection. It reports whether the status changed. Pending and
// rejected companies are never moved.
func SyncPayment(c *models.Company) bool {
	switch {
	case c.Status == models.StatusAccepted && c.StripeConnected:
		c.Status = models.StatusPaid
	case c.Status == models.StatusPaid && !c.StripeConnected:
		c.Status = models.StatusAccepted
	default:
		return false
	}
	c.IsVisible = true
	return true
}

// Derive computes the status of a row that predates the status column from
// its visibility flag, Stripe flag and an out-of-band rejected marker.
func Derive(isVisible, stripeConnected, rejected bool) models.ApprovalStatus {
	switch {
	case rejected:
		return models.StatusRejected
	case isVisible && stripeConnected:
		return models.StatusPaid
	case isVisible:
		return models.StatusAccepted
	default:
		return models.StatusPending
	}
}

// Check validates that the flags of c agree with its status.
func Check(c *models.Company) error {
	switch c.Status {
	case models.StatusPending, models.StatusAccepted, models.StatusRejected, models.StatusPaid:
	default:
		return fmt.Errorf("%w: unknown status %q", e.ErrInvalidInput, c.Status)
	}
	if c.IsVisible != Visible(c.Status) {
		return fmt.Errorf("%w: visibility %t disagrees with status %s", e.ErrInvalidInput, c.IsVisible, c.Status)
	}
	if c.Status == models.StatusPaid && !c.StripeConnected {
		return fmt.Errorf("%w: paid requires a Stripe connection", e.ErrInvalidInput)
	}
	return nil
}
