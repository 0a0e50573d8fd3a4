package controller

import (
	"context"
	"fmt"
	"strings"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/events"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddNews attaches a press item to a company.
func (s *CompanyService) AddNews(ctx context.Context, user *models.User, companyID uuid.UUID, n *models.News) (*models.News, error) {
	company, err := s.owned(ctx, user, companyID)
	if err != nil {
		return nil, err
	}
	n.Title = strings.TrimSpace(n.Title)
	n.URL = strings.TrimSpace(n.URL)
	if err := s.validator.Struct(n); err != nil {
		return nil, err
	}

	n.ID = uuid.Nil
	n.CompanyID = companyID
	if err := s.repo.CreateNews(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create news: %w", err)
	}
	s.emit(events.CompanyUpdated, company)
	return n, nil
}

// ListNews returns a company's press items, newest first.
func (s *CompanyService) ListNews(ctx context.Context, user *models.User, companyID uuid.UUID) ([]models.News, error) {
	company, err := s.repo.GetCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !canSee(user, company) {
		return nil, e.ErrNotFound
	}
	return s.repo.ListNews(ctx, companyID)
}

func (s *CompanyService) DeleteNews(ctx context.Context, user *models.User, companyID, newsID uuid.UUID) error {
	company, err := s.owned(ctx, user, companyID)
	if err != nil {
		return err
	}
	item, err := s.repo.GetNews(ctx, companyID, newsID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteNews(ctx, companyID, newsID); err != nil {
		return err
	}
	s.deleteFile(ctx, item.ThumbnailURL)
	s.emit(events.CompanyUpdated, company)
	return nil
}

// RemoveNewsThumbnail clears only the thumbnail of a press item.
func (s *CompanyService) RemoveNewsThumbnail(ctx context.Context, user *models.User, companyID, newsID uuid.UUID) error {
	if _, err := s.owned(ctx, user, companyID); err != nil {
		return err
	}
	item, err := s.repo.GetNews(ctx, companyID, newsID)
	if err != nil {
		return err
	}
	if err := s.repo.ClearNewsThumbnail(ctx, companyID, newsID); err != nil {
		return err
	}
	s.deleteFile(ctx, item.ThumbnailURL)
	return nil
}

// deleteFile removes a stored object. Failures leave an orphan object and
// are only logged.
func (s *CompanyService) deleteFile(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.files.DeleteURL(ctx, url); err != nil {
		s.logger.Warn("failed to delete stored file", zap.String("url", url), zap.Error(err))
	}
}
