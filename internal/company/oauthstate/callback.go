package oauthstate

import (
	"context"
	"errors"

	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/ingest"
	"github.com/gartstein/founderhub/internal/company/models"
	"go.uber.org/zap"
)

// Syncer runs a metrics sync.
type Syncer interface {
	Sync(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// CallbackParams are the query parameters of the provider redirect.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult is what the founder's client is told after the redirect.
type CallbackResult struct {
	Success    bool            `json:"success"`
	Provider   string          `json:"provider,omitempty"`
	ReturnPath string          `json:"return_path,omitempty"`
	Metrics    []models.Metric `json:"metrics,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Callback completes an authorization. Provider errors and state problems
// are reported in the result and never reach the syncer.
func (s *Store) Callback(ctx context.Context, sync Syncer, params CallbackParams) (*CallbackResult, error) {
	if params.Error != "" {
		msg := params.Error
		if params.ErrorDescription != "" {
			msg = params.ErrorDescription
		}
		s.logger.Info("provider declined authorization", zap.String("error", params.Error))
		return &CallbackResult{Success: false, Error: msg}, nil
	}

	rec, err := s.Verify(ctx, params.State)
	switch {
	case errors.Is(err, e.ErrStateMismatch):
		s.logger.Warn("oauth state mismatch", zap.Error(err))
		return &CallbackResult{Success: false, Error: "state mismatch, please try connecting again"}, nil
	case errors.Is(err, e.ErrStateExpired):
		return &CallbackResult{Success: false, Error: "authorization expired, please try connecting again"}, nil
	case err != nil:
		return nil, err
	}

	out := &CallbackResult{Provider: rec.Provider, ReturnPath: rec.ReturnPath}
	if params.Code == "" {
		out.Error = "missing authorization code"
		return out, nil
	}

	res, err := sync.Sync(ctx, ingest.Request{
		Provider:    rec.Provider,
		Code:        params.Code,
		RedirectURI: s.redirectURI,
		CompanyID:   rec.CompanyID,
		Identity:    rec.UserID,
	})
	if errors.Is(err, e.ErrProviderAPI) {
		out.Error = "could not connect to " + rec.Provider + ", please try again"
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	out.Success = true
	out.Metrics = res.Metrics()
	out.Error = res.SyncError()
	return out, nil
}
