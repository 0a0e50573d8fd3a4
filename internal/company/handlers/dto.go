package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gartstein/founderhub/internal/company/auth"
	"github.com/gartstein/founderhub/internal/company/controller"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

type companyResponse struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	models.CompanyFields
	IsVisible        bool                  `json:"is_visible"`
	Status           models.ApprovalStatus `json:"status"`
	StripeConnected  bool                  `json:"stripe_connected"`
	GA4Connected     bool                  `json:"ga4_connected"`
	MetricsUpdatedAt *time.Time            `json:"metrics_updated_at,omitempty"`
	RejectionReason  string                `json:"rejection_reason,omitempty"`
	ReviewedAt       *time.Time            `json:"reviewed_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

type profileResponse struct {
	Company    companyResponse    `json:"company"`
	Executives []models.Executive `json:"executives"`
	QnA        []models.QnA       `json:"qna"`
	MainVideo  *models.Video      `json:"main_video,omitempty"`
	Metrics    []models.Metric    `json:"metrics"`
	News       []models.News      `json:"news"`
}

type submitResponse struct {
	Profile profileResponse `json:"profile"`
	// Tokens replace the client's session when they are present.
	Tokens *auth.Tokens `json:"tokens,omitempty"`
}

type pageResponse struct {
	Companies []companyResponse `json:"companies"`
	Total     int64             `json:"total"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type authorizeRequest struct {
	ReturnPath string     `json:"return_path"`
	CompanyID  *uuid.UUID `json:"company_id,omitempty"`
}

type authorizeResponse struct {
	State        string `json:"state"`
	AuthorizeURL string `json:"authorize_url"`
}

type syncRequest struct {
	CompanyID   *uuid.UUID `json:"companyId,omitempty"`
	Provider    string     `json:"provider"`
	Code        string     `json:"code"`
	RedirectURI string     `json:"redirectUri"`
	// UserID is the identity claimed by a client whose session is stale.
	UserID uuid.UUID `json:"userId,omitempty"`
}

type syncResponse struct {
	Success bool            `json:"success"`
	Metrics []models.Metric `json:"metrics,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func toCompanyResponse(c *models.Company) companyResponse {
	return companyResponse{
		ID:               c.ID,
		OwnerID:          c.OwnerID,
		CompanyFields:    c.CompanyFields,
		IsVisible:        c.IsVisible,
		Status:           c.Status,
		StripeConnected:  c.StripeConnected,
		GA4Connected:     c.GA4Connected,
		MetricsUpdatedAt: c.MetricsUpdatedAt,
		RejectionReason:  c.RejectionReason,
		ReviewedAt:       c.ReviewedAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func toProfileResponse(s *models.ProfileSnapshot) profileResponse {
	return profileResponse{
		Company:    toCompanyResponse(s.Company),
		Executives: nonNil(s.Executives),
		QnA:        nonNil(s.QnA),
		MainVideo:  s.MainVideo(),
		Metrics:    nonNil(s.Metrics),
		News:       nonNil(s.News),
	}
}

func toPageResponse(p *controller.Page) pageResponse {
	out := pageResponse{Companies: make([]companyResponse, 0, len(p.Companies)), Total: p.Total}
	for i := range p.Companies {
		out.Companies = append(out.Companies, toCompanyResponse(&p.Companies[i]))
	}
	return out
}

// nonNil keeps empty collections as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body required", e.ErrInvalidInput)
		}
		return fmt.Errorf("%w: malformed JSON body: %v", e.ErrInvalidInput, err)
	}
	return nil
}

func (h *CompanyHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

func pathID(params map[string]string, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(params[name])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", e.ErrInvalidInput, name)
	}
	return id, nil
}

// maxListOffset bounds how deep a listing can page. Every distinct page is
// a listing cache entry.
const maxListOffset = 10000

// listFilter reads the listing query parameters.
func listFilter(r *http.Request) (models.CompanyFilter, error) {
	q := r.URL.Query()
	f := models.CompanyFilter{
		Category: models.Category(q.Get("category")),
		Stage:    models.Stage(q.Get("stage")),
		Status:   models.ApprovalStatus(q.Get("status")),
		Search:   q.Get("q"),
	}
	verr := &e.ValidationError{}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			verr.Add("limit", "Limit", "must be a non-negative number")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil || n < 0:
			verr.Add("offset", "Offset", "must be a non-negative number")
		case n > maxListOffset:
			verr.Add("offset", "Offset", fmt.Sprintf("must be at most %d", maxListOffset))
		}
		f.Offset = n
	}
	return f, verr.OrNil()
}
