package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gartstein/founderhub/internal/company/auth"
	"github.com/gartstein/founderhub/internal/company/controller"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/gartstein/founderhub/internal/company/oauthstate"
	"github.com/gartstein/founderhub/internal/company/reconcile"
	"github.com/gartstein/founderhub/internal/company/storage"
	"github.com/gartstein/founderhub/internal/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

// RefreshTokenHeader carries the refresh token of a profile submission so an
// expired access token can be renewed without failing the submission.
const RefreshTokenHeader = "X-Refresh-Token"

// multipartOverhead is the allowance for multipart framing on top of the
// largest accepted file.
const multipartOverhead = 1 << 20

// CompanyController defines the business logic interface
// that the HTTP handlers will invoke.
type CompanyController interface {
	Register(ctx context.Context, sess reconcile.Session, p *models.Profile) (*reconcile.Result, error)
	SubmitProfile(ctx context.Context, sess reconcile.Session, id uuid.UUID, p *models.Profile) (*reconcile.Result, error)
	GetProfile(ctx context.Context, user *models.User, id uuid.UUID) (*models.ProfileSnapshot, error)
	GetMyProfile(ctx context.Context, user *models.User) (*models.ProfileSnapshot, error)
	ListCompanies(ctx context.Context, f models.CompanyFilter) (*controller.Page, error)
	AdminListCompanies(ctx context.Context, f models.CompanyFilter) (*controller.Page, error)
	Accept(ctx context.Context, id uuid.UUID) (*models.Company, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*models.Company, error)
	DeleteCompany(ctx context.Context, user *models.User, id uuid.UUID) error
	AttachUpload(ctx context.Context, user *models.User, id uuid.UUID, kind storage.Kind, filename string, r io.Reader) (*storage.Object, error)
	AddNews(ctx context.Context, user *models.User, companyID uuid.UUID, n *models.News) (*models.News, error)
	ListNews(ctx context.Context, user *models.User, companyID uuid.UUID) ([]models.News, error)
	DeleteNews(ctx context.Context, user *models.User, companyID, newsID uuid.UUID) error
	RemoveNewsThumbnail(ctx context.Context, user *models.User, companyID, newsID uuid.UUID) error
}

// OAuthFlow starts and completes provider authorizations.
type OAuthFlow interface {
	Begin(ctx context.Context, provider, returnPath string, userID uuid.UUID, companyID *uuid.UUID) (state, authorizeURL string, err error)
	Callback(ctx context.Context, sync oauthstate.Syncer, params oauthstate.CallbackParams) (*oauthstate.CallbackResult, error)
}

// Refresher exchanges a refresh token for a new session.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
}

// CompanyHandler serves the JSON API over a gateway mux.
type CompanyHandler struct {
	service   CompanyController
	syncer    oauthstate.Syncer
	oauth     OAuthFlow
	refresher Refresher
	metrics   *telemetry.Metrics
	logger    *zap.Logger
	mux       *runtime.ServeMux
	patterns  []string
}

// NewCompanyHandler constructs a new CompanyHandler.
func NewCompanyHandler(
	service CompanyController,
	syncer oauthstate.Syncer,
	oauth OAuthFlow,
	refresher Refresher,
	metrics *telemetry.Metrics,
	logger *zap.Logger,
) *CompanyHandler {
	return &CompanyHandler{
		service:   service,
		syncer:    syncer,
		oauth:     oauth,
		refresher: refresher,
		metrics:   metrics,
		logger:    logger.Named("http_handler"),
	}
}

const healthzPath = "/healthz"

type route struct {
	method  string
	pattern string
	handler runtime.HandlerFunc
}

// Register adds every API route to mux.
func (h *CompanyHandler) Register(mux *runtime.ServeMux) error {
	h.mux = mux
	routes := []route{
		{http.MethodPost, "/v1/auth/refresh", h.refresh},

		{http.MethodPost, "/v1/companies", h.register},
		{http.MethodGet, "/v1/companies", h.listCompanies},
		{http.MethodGet, "/v1/me/company", h.myCompany},
		{http.MethodGet, "/v1/companies/{id}", h.getCompany},
		{http.MethodPut, "/v1/companies/{id}", h.submit},
		{http.MethodDelete, "/v1/companies/{id}", h.deleteCompany},
		{http.MethodPost, "/v1/companies/{id}/uploads/{kind}", h.upload},

		{http.MethodPost, "/v1/companies/{id}/news", h.addNews},
		{http.MethodGet, "/v1/companies/{id}/news", h.listNews},
		{http.MethodDelete, "/v1/companies/{id}/news/{newsId}", h.deleteNews},
		{http.MethodDelete, "/v1/companies/{id}/news/{newsId}/thumbnail", h.removeNewsThumbnail},

		{http.MethodGet, "/v1/admin/companies", h.adminList},
		{http.MethodPost, "/v1/admin/companies/{id}/accept", h.accept},
		{http.MethodPost, "/v1/admin/companies/{id}/reject", h.reject},

		{http.MethodPost, "/v1/integrations/{provider}/authorize", h.authorize},
		{http.MethodGet, "/v1/integrations/callback", h.callback},
		{http.MethodPost, "/v1/metrics/sync", h.syncMetrics},
	}
	seen := make(map[string]bool, len(routes))
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return fmt.Errorf("failed to register %s %s: %w", rt.method, rt.pattern, err)
		}
		if !seen[rt.pattern] {
			seen[rt.pattern] = true
			h.patterns = append(h.patterns, rt.pattern)
		}
	}
	return nil
}

// Routes returns the templates of the registered routes and of the
// gateway's health endpoint, for labelling request metrics.
func (h *CompanyHandler) Routes() *telemetry.Routes {
	return telemetry.NewRoutes(append([]string{healthzPath}, h.patterns...)...)
}

// session reads the token pair a submission is made with.
func session(r *http.Request) reconcile.Session {
	access, _ := auth.BearerToken(r)
	return reconcile.Session{
		AccessToken:  access,
		RefreshToken: strings.TrimSpace(r.Header.Get(RefreshTokenHeader)),
	}
}

func (h *CompanyHandler) register(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var p models.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.Register(r.Context(), session(r), &p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, submitResponse{Profile: toProfileResponse(res.Snapshot), Tokens: res.Tokens})
}

func (h *CompanyHandler) submit(w http.ResponseWriter, r *http.Request, params map[string]string) {
	id, err := pathID(params, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var p models.Profile
	if err := decodeJSON(w, r, &p); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.service.SubmitProfile(r.Context(), session(r), id, &p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, submitResponse{Profile: toProfileResponse(res.Snapshot), Tokens: res.Tokens})
}

func (h *CompanyHandler) myCompany(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	user, err := auth.RequireRole(r.Context(), models.UserRoleStartup)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := h.service.GetMyProfile(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toProfileResponse(snap))
}

func (h *CompanyHandler) getCompany(w http.ResponseWriter, r *http.Request, params map[string]string) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		h.writeError(w, r, e.ErrUnauthenticated)
		return
	}
	id, err := pathID(params, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	snap, err := h.service.GetProfile(r.Context(), user, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toProfileResponse(snap))
}

func (h *CompanyHandler) listCompanies(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if _, err := auth.RequireRole(r.Context(), models.UserRoleInvestor, models.UserRoleAdmin); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.list(w, r, h.service.ListCompanies)
}

func (h *CompanyHandler) adminList(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if _, err := auth.RequireRole(r.Context(), models.UserRoleAdmin); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.list(w, r, h.service.AdminListCompanies)
}

func (h *CompanyHandler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, models.CompanyFilter) (*controller.Page, error)) {
	f, err := listFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := fetch(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPageResponse(page))
}

func (h *CompanyHandler) deleteCompany(w http.ResponseWriter, r *http.Request, params map[string]string) {
	user, err := auth.RequireRole(r.Context(), models.UserRoleStartup, models.UserRoleAdmin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(params, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.DeleteCompany(r.Context(), user, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CompanyHandler) upload(w http.ResponseWriter, r *http.Request, params map[string]string) {
	user, err := auth.RequireRole(r.Context(), models.UserRoleStartup, models.UserRoleAdmin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(params, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	kind, err := storage.ParseKind(params["kind"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxDeckSize+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		verr := &e.ValidationError{}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			verr.Add("file", "File", "is too large")
		} else {
			verr.Add("file", "File", "is required")
		}
		h.writeError(w, r, verr)
		return
	}
	defer file.Close()

	obj, err := h.service.AttachUpload(r.Context(), user, id, kind, header.Filename, file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, obj)
}

func (h *CompanyHandler) accept(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if _, err := auth.RequireRole(r.Context(), models.UserRoleAdmin); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(params, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.service.Accept(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCompanyResponse(c))
}

func (h *CompanyHandler) reject(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if _, err := auth.RequireRole(r.Context(), models.UserRoleAdmin); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathID(params, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req rejectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.service.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCompanyResponse(c))
}
