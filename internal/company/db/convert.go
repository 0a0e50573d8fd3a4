package db

import (
	"github.com/gartstein/founderhub/internal/company/approval"
	dbmodels "github.com/gartstein/founderhub/internal/company/db/models"
	"github.com/gartstein/founderhub/internal/company/models"
)

func toCompanyRecord(c *models.Company) *dbmodels.Company {
	status := c.Status
	if status == "" {
		status = models.StatusPending
	}
	return &dbmodels.Company{
		ID:               c.ID,
		OwnerID:          c.OwnerID,
		Name:             c.Name,
		Tagline:          c.Tagline,
		Description:      c.Description,
		LogoURL:          c.LogoURL,
		PitchDeckURL:     c.PitchDeckURL,
		Category:         string(c.Category),
		Stage:            string(c.Stage),
		Employees:        string(c.Employees),
		FoundedAt:        c.FoundedAt,
		Location:         c.Location,
		Website:          c.Links.Website,
		GitHub:           c.Links.GitHub,
		LinkedIn:         c.Links.LinkedIn,
		Twitter:          c.Links.Twitter,
		YouTube:          c.Links.YouTube,
		IsVisible:        c.IsVisible,
		StripeConnected:  c.StripeConnected,
		GA4Connected:     c.GA4Connected,
		MetricsUpdatedAt: c.MetricsUpdatedAt,
		Status:           string(status),
		RejectionReason:  c.RejectionReason,
		ReviewedAt:       c.ReviewedAt,
	}
}

func fromCompanyRecord(r *dbmodels.Company) *models.Company {
	status := models.ApprovalStatus(r.Status)
	if status == "" {
		// Rows written before the status column carry only the flags.
		status = approval.Derive(r.IsVisible, r.StripeConnected, r.RejectionReason != "")
	}
	return &models.Company{
		ID:      r.ID,
		OwnerID: r.OwnerID,
		CompanyFields: models.CompanyFields{
			Name:         r.Name,
			Tagline:      r.Tagline,
			Description:  r.Description,
			LogoURL:      r.LogoURL,
			PitchDeckURL: r.PitchDeckURL,
			Category:     models.Category(r.Category),
			Stage:        models.Stage(r.Stage),
			Employees:    models.EmployeeBucket(r.Employees),
			FoundedAt:    r.FoundedAt,
			Location:     r.Location,
			Links: models.Links{
				Website:  r.Website,
				GitHub:   r.GitHub,
				LinkedIn: r.LinkedIn,
				Twitter:  r.Twitter,
				YouTube:  r.YouTube,
			},
		},
		IsVisible:        r.IsVisible,
		StripeConnected:  r.StripeConnected,
		GA4Connected:     r.GA4Connected,
		MetricsUpdatedAt: r.MetricsUpdatedAt,
		Status:           status,
		RejectionReason:  r.RejectionReason,
		ReviewedAt:       r.ReviewedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func fromSnapshotRecord(r *dbmodels.Company) *models.ProfileSnapshot {
	return &models.ProfileSnapshot{
		Company:    fromCompanyRecord(r),
		Executives: fromExecutiveRecords(r.Executives),
		QnA:        fromQnARecords(r.QnA),
		Videos:     fromVideoRecords(r.Videos),
		Metrics:    fromMetricRecords(r.Metrics),
		News:       fromNewsRecords(r.News),
	}
}

func fromExecutiveRecords(recs []dbmodels.Executive) []models.Executive {
	out := make([]models.Executive, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.Executive{
			ID:        r.ID,
			Name:      r.Name,
			Role:      models.ExecutiveRole(r.Role),
			PhotoURL:  r.PhotoURL,
			Bio:       r.Bio,
			Education: r.Education,
			LinkedIn:  r.LinkedIn,
			Twitter:   r.Twitter,
			Position:  r.Position,
		})
	}
	return out
}

func fromQnARecords(recs []dbmodels.QnA) []models.QnA {
	out := make([]models.QnA, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.QnA{ID: r.ID, Category: r.Category, Question: r.Question, Answer: r.Answer})
	}
	return out
}

func fromVideoRecords(recs []dbmodels.Video) []models.Video {
	out := make([]models.Video, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.Video{ID: r.ID, URL: r.URL, Description: r.Description, IsMain: r.IsMain})
	}
	return out
}

func fromMetricRecords(recs []dbmodels.Metric) []models.Metric {
	out := make([]models.Metric, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.Metric{
			CompanyID: r.CompanyID,
			Month:     r.Month,
			Revenue:   r.Revenue,
			MAU:       r.MAU,
			Retention: r.Retention,
			Source:    models.MetricSource(r.Source),
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out
}

func fromNewsRecords(recs []dbmodels.News) []models.News {
	out := make([]models.News, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.News{
			ID:           r.ID,
			CompanyID:    r.CompanyID,
			Title:        r.Title,
			URL:          r.URL,
			Summary:      r.Summary,
			ThumbnailURL: r.ThumbnailURL,
			PublishedAt:  r.PublishedAt,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}
