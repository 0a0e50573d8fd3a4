package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gartstein/founderhub/internal/company/auth"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/ingest"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/gartstein/founderhub/internal/company/oauthstate"
	"github.com/gartstein/founderhub/internal/pkg/telemetry"
	"go.uber.org/zap"
)

func (h *CompanyHandler) refresh(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		h.writeError(w, r, e.ErrUnauthenticated)
		return
	}
	tokens, err := h.refresher.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tokens)
}

func (h *CompanyHandler) authorize(w http.ResponseWriter, r *http.Request, params map[string]string) {
	user, err := auth.RequireRole(r.Context(), models.UserRoleStartup)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req authorizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	state, url, err := h.oauth.Begin(r.Context(), params["provider"], req.ReturnPath, user.ID, req.CompanyID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, authorizeResponse{State: state, AuthorizeURL: url})
}

// callback is where the provider redirects the founder's browser. Failures
// of the flow itself are reported in the body with success false.
func (h *CompanyHandler) callback(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	res, err := h.oauth.Callback(r.Context(), h.syncer, oauthstate.CallbackParams{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if res != nil && res.Provider != "" {
		h.metrics.MetricSyncs.WithLabelValues(providerLabel(res.Provider), callbackOutcome(res, err)).Inc()
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func callbackOutcome(res *oauthstate.CallbackResult, err error) string {
	if err == nil && !res.Success {
		return "error"
	}
	return telemetry.Outcome(err)
}

// providerLabel keeps client-supplied provider names out of metric labels.
func providerLabel(name string) string {
	switch models.MetricSource(name) {
	case models.SourceStripe, models.SourceGA4:
		return name
	}
	return "unknown"
}

// syncMetrics runs one ingestion for the client. The session is optional:
// before registration there is no company and the run is a preview.
func (h *CompanyHandler) syncMetrics(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req syncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	access, _ := auth.BearerToken(r)
	res, err := h.syncer.Sync(r.Context(), ingest.Request{
		Provider:    req.Provider,
		Code:        req.Code,
		RedirectURI: req.RedirectURI,
		CompanyID:   req.CompanyID,
		AccessToken: access,
		Identity:    req.UserID,
	})
	h.metrics.MetricSyncs.WithLabelValues(providerLabel(req.Provider), telemetry.Outcome(err)).Inc()
	if err != nil {
		if errors.Is(err, e.ErrProviderAPI) {
			h.logger.Warn("provider rejected authorization", zap.String("provider", req.Provider), zap.Error(err))
			h.writeJSON(w, http.StatusOK, syncResponse{
				Error: fmt.Sprintf("could not connect to %s, please try again", req.Provider),
			})
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, syncResponse{
		Success: true,
		Metrics: res.Metrics(),
		Error:   res.SyncError(),
	})
}
