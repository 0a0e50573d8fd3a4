package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gartstein/founderhub/internal/company/auth"
	"github.com/gartstein/founderhub/internal/company/controller"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/gartstein/founderhub/internal/company/reconcile"
	"github.com/gartstein/founderhub/internal/company/storage"
	"github.com/gartstein/founderhub/internal/pkg/telemetry"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var (
	startupUser  = &models.User{ID: uuid.New(), Email: "founder@example.com", Role: models.UserRoleStartup}
	investorUser = &models.User{ID: uuid.New(), Email: "investor@example.com", Role: models.UserRoleInvestor}
	adminUser    = &models.User{ID: uuid.New(), Email: "admin@example.com", Role: models.UserRoleAdmin}
)

// mockGuard resolves fixed tokens to the test users.
type mockGuard struct{}

func (mockGuard) Authenticate(_ context.Context, token string) (*models.User, error) {
	switch token {
	case "startup":
		return startupUser, nil
	case "investor":
		return investorUser, nil
	case "admin":
		return adminUser, nil
	case "expired":
		return nil, e.ErrTokenExpired
	default:
		return nil, e.ErrUnauthenticated
	}
}

// mockController is a func-field implementation of CompanyController.
type mockController struct {
	register            func(context.Context, reconcile.Session, *models.Profile) (*reconcile.Result, error)
	submitProfile       func(context.Context, reconcile.Session, uuid.UUID, *models.Profile) (*reconcile.Result, error)
	getProfile          func(context.Context, *models.User, uuid.UUID) (*models.ProfileSnapshot, error)
	getMyProfile        func(context.Context, *models.User) (*models.ProfileSnapshot, error)
	listCompanies       func(context.Context, models.CompanyFilter) (*controller.Page, error)
	adminListCompanies  func(context.Context, models.CompanyFilter) (*controller.Page, error)
	accept              func(context.Context, uuid.UUID) (*models.Company, error)
	reject              func(context.Context, uuid.UUID, string) (*models.Company, error)
	deleteCompany       func(context.Context, *models.User, uuid.UUID) error
	attachUpload        func(context.Context, *models.User, uuid.UUID, storage.Kind, string, io.Reader) (*storage.Object, error)
	addNews             func(context.Context, *models.User, uuid.UUID, *models.News) (*models.News, error)
	listNews            func(context.Context, *models.User, uuid.UUID) ([]models.News, error)
	deleteNews          func(context.Context, *models.User, uuid.UUID, uuid.UUID) error
	removeNewsThumbnail func(context.Context, *models.User, uuid.UUID, uuid.UUID) error
}

func (m *mockController) Register(ctx context.Context, sess reconcile.Session, p *models.Profile) (*reconcile.Result, error) {
	return m.register(ctx, sess, p)
}

func (m *mockController) SubmitProfile(ctx context.Context, sess reconcile.Session, id uuid.UUID, p *models.Profile) (*reconcile.Result, error) {
	return m.submitProfile(ctx, sess, id, p)
}

func (m *mockController) GetProfile(ctx context.Context, user *models.User, id uuid.UUID) (*models.ProfileSnapshot, error) {
	return m.getProfile(ctx, user, id)
}

func (m *mockController) GetMyProfile(ctx context.Context, user *models.User) (*models.ProfileSnapshot, error) {
	return m.getMyProfile(ctx, user)
}

func (m *mockController) ListCompanies(ctx context.Context, f models.CompanyFilter) (*controller.Page, error) {
	return m.listCompanies(ctx, f)
}

func (m *mockController) AdminListCompanies(ctx context.Context, f models.CompanyFilter) (*controller.Page, error) {
	return m.adminListCompanies(ctx, f)
}

func (m *mockController) Accept(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return m.accept(ctx, id)
}

func (m *mockController) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.Company, error) {
	return m.reject(ctx, id, reason)
}

func (m *mockController) DeleteCompany(ctx context.Context, user *models.User, id uuid.UUID) error {
	return m.deleteCompany(ctx, user, id)
}

func (m *mockController) AttachUpload(ctx context.Context, user *models.User, id uuid.UUID, kind storage.Kind, filename string, r io.Reader) (*storage.Object, error) {
	return m.attachUpload(ctx, user, id, kind, filename, r)
}

func (m *mockController) AddNews(ctx context.Context, user *models.User, companyID uuid.UUID, n *models.News) (*models.News, error) {
	return m.addNews(ctx, user, companyID, n)
}

func (m *mockController) ListNews(ctx context.Context, user *models.User, companyID uuid.UUID) ([]models.News, error) {
	return m.listNews(ctx, user, companyID)
}

func (m *mockController) DeleteNews(ctx context.Context, user *models.User, companyID, newsID uuid.UUID) error {
	return m.deleteNews(ctx, user, companyID, newsID)
}

func (m *mockController) RemoveNewsThumbnail(ctx context.Context, user *models.User, companyID, newsID uuid.UUID) error {
	return m.removeNewsThumbnail(ctx, user, companyID, newsID)
}

type testAPI struct {
	ctrl      *mockController
	syncer    *mockSyncer
	oauth     *mockOAuth
	refresher *mockRefresher
	metrics   *telemetry.Metrics
	handler   http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := zaptest.NewLogger(t)
	api := &testAPI{
		ctrl:      &mockController{},
		syncer:    &mockSyncer{},
		oauth:     &mockOAuth{},
		refresher: &mockRefresher{},
		metrics:   telemetry.New(),
	}
	h := NewCompanyHandler(api.ctrl, api.syncer, api.oauth, api.refresher, api.metrics, logger)
	mux := runtime.NewServeMux()
	require.NoError(t, h.Register(mux))
	api.handler = NewAPIHandler(mux, h.Routes(), mockGuard{}, nil, api.metrics, logger)
	return api
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

// errorBody is the gateway's JSON rendering of a status.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details []struct {
		Type            string `json:"@type"`
		Reason          string `json:"reason"`
		FieldViolations []struct {
			Field       string `json:"field"`
			Description string `json:"description"`
		} `json:"fieldViolations"`
	} `json:"details"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func testCompany(id uuid.UUID) *models.Company {
	return &models.Company{
		ID:      id,
		OwnerID: startupUser.ID,
		CompanyFields: models.CompanyFields{
			Name:     "Acme",
			Tagline:  "Rockets for everyone",
			Category: models.CategoryAI,
			Stage:    models.StageSeed,
		},
		Status:    models.StatusAccepted,
		IsVisible: true,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func testSnapshot(id uuid.UUID) *models.ProfileSnapshot {
	return &models.ProfileSnapshot{
		Company:    testCompany(id),
		Executives: []models.Executive{{Name: "Jane Doe", Role: models.RoleCEO}},
		Videos: []models.Video{
			{URL: "https://example.com/other", IsMain: false},
			{URL: "https://example.com/main", IsMain: true},
		},
	}
}

func TestAuthMiddleware_Routes(t *testing.T) {
	api := newTestAPI(t)
	api.ctrl.listCompanies = func(context.Context, models.CompanyFilter) (*controller.Page, error) {
		return &controller.Page{}, nil
	}

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "missing token", token: "", status: http.StatusUnauthorized},
		{name: "unknown token", token: "garbage", status: http.StatusUnauthorized},
		{name: "expired token", token: "expired", status: http.StatusUnauthorized},
		{name: "investor", token: "investor", status: http.StatusOK},
		{name: "startup is not allowed to browse", token: "startup", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodGet, "/v1/companies", tt.token, nil)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestIsProtected(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/healthz", false},
		{http.MethodGet, "/metrics", false},
		{http.MethodPost, "/v1/auth/refresh", false},
		{http.MethodGet, "/v1/integrations/callback", false},
		{http.MethodPost, "/v1/metrics/sync", false},
		{http.MethodPost, "/v1/companies", false},
		{http.MethodPut, "/v1/companies/" + uuid.NewString(), false},
		{http.MethodGet, "/v1/companies", true},
		{http.MethodGet, "/v1/companies/" + uuid.NewString(), true},
		{http.MethodDelete, "/v1/companies/" + uuid.NewString(), true},
		{http.MethodPost, "/v1/companies/" + uuid.NewString() + "/news", true},
		{http.MethodPost, "/v1/integrations/stripe/authorize", true},
		{http.MethodGet, "/v1/admin/companies", true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			assert.Equal(t, tt.want, isProtected(req))
		})
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, isRateLimited(httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)))
	assert.True(t, isRateLimited(httptest.NewRequest(http.MethodGet, "/v1/integrations/callback", nil)))
	assert.True(t, isRateLimited(httptest.NewRequest(http.MethodPost, "/v1/metrics/sync", nil)))
	assert.False(t, isRateLimited(httptest.NewRequest(http.MethodGet, "/v1/companies", nil)))
}

func TestRequestMetrics_RouteLabels(t *testing.T) {
	api := newTestAPI(t)
	for i := 0; i < 20; i++ {
		rec := api.do(t, http.MethodGet, fmt.Sprintf("/junk/%d", i), "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec := api.do(t, http.MethodGet, "/v1/companies/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, 2, testutil.CollectAndCount(api.metrics.HTTPRequestsTotal))
	assert.Equal(t, 20.0, testutil.ToFloat64(api.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, telemetry.UnmatchedRoute, "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(api.metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/companies/{id}", "401")))
}

func TestRegister(t *testing.T) {
	id := uuid.New()

	t.Run("created with refreshed tokens", func(t *testing.T) {
		api := newTestAPI(t)
		var gotSession reconcile.Session
		api.ctrl.register = func(_ context.Context, sess reconcile.Session, p *models.Profile) (*reconcile.Result, error) {
			gotSession = sess
			assert.Equal(t, "Acme", p.Company.Name)
			return &reconcile.Result{
				Snapshot: testSnapshot(id),
				Tokens:   &auth.Tokens{AccessToken: "new-access", RefreshToken: "new-refresh"},
			}, nil
		}

		req := httptest.NewRequest(http.MethodPost, "/v1/companies", strings.NewReader(`{"company":{"name":"Acme"},"executives":[]}`))
		req.Header.Set("Authorization", "Bearer stale")
		req.Header.Set(RefreshTokenHeader, "refresh-1")
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, reconcile.Session{AccessToken: "stale", RefreshToken: "refresh-1"}, gotSession)

		var resp submitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, id, resp.Profile.Company.ID)
		assert.Equal(t, "Acme", resp.Profile.Company.Name)
		require.NotNil(t, resp.Profile.MainVideo)
		assert.Equal(t, "https://example.com/main", resp.Profile.MainVideo.URL)
		assert.Empty(t, resp.Profile.QnA)
		require.NotNil(t, resp.Tokens)
		assert.Equal(t, "new-access", resp.Tokens.AccessToken)
	})

	t.Run("validation failure lists fields", func(t *testing.T) {
		api := newTestAPI(t)
		api.ctrl.register = func(context.Context, reconcile.Session, *models.Profile) (*reconcile.Result, error) {
			verr := &e.ValidationError{}
			verr.Add("name", "Company name", "is required")
			verr.Add("executives[0].role", "Role", "must be CEO")
			return nil, verr
		}

		rec := api.do(t, http.MethodPost, "/v1/companies", "startup", models.Profile{})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decodeError(t, rec)
		require.Len(t, body.Details, 1)
		assert.Equal(t, "type.googleapis.com/google.rpc.BadRequest", body.Details[0].Type)
		require.Len(t, body.Details[0].FieldViolations, 2)
		assert.Equal(t, "name", body.Details[0].FieldViolations[0].Field)
		assert.Equal(t, "Company name: is required", body.Details[0].FieldViolations[0].Description)
		assert.Equal(t, "executives[0].role", body.Details[0].FieldViolations[1].Field)
	})

	t.Run("malformed body", func(t *testing.T) {
		api := newTestAPI(t)
		req := httptest.NewRequest(http.MethodPost, "/v1/companies", strings.NewReader(`{"company":`))
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSubmitProfile_Errors(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{name: "revoked session", err: e.ErrSessionRevoked, status: http.StatusUnauthorized, reason: "SESSION_REVOKED"},
		{name: "expired session", err: e.ErrUnauthenticated, status: http.StatusUnauthorized},
		{name: "not the owner", err: e.ErrPermissionDenied, status: http.StatusForbidden},
		{name: "missing company", err: e.ErrNotFound, status: http.StatusNotFound},
		{name: "step timeout", err: e.ErrTimeout, status: http.StatusGatewayTimeout},
		{name: "unexpected", err: io.ErrUnexpectedEOF, status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			api.ctrl.submitProfile = func(_ context.Context, _ reconcile.Session, got uuid.UUID, _ *models.Profile) (*reconcile.Result, error) {
				assert.Equal(t, id, got)
				return nil, tt.err
			}
			rec := api.do(t, http.MethodPut, "/v1/companies/"+id.String(), "startup", models.Profile{})
			require.Equal(t, tt.status, rec.Code)
			if tt.reason != "" {
				body := decodeError(t, rec)
				require.Len(t, body.Details, 1)
				assert.Equal(t, tt.reason, body.Details[0].Reason)
			}
		})
	}
}

func TestSubmitProfile_InvalidID(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPut, "/v1/companies/not-a-uuid", "startup", models.Profile{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCompany(t *testing.T) {
	id := uuid.New()
	api := newTestAPI(t)
	api.ctrl.getProfile = func(_ context.Context, user *models.User, got uuid.UUID) (*models.ProfileSnapshot, error) {
		if got != id {
			return nil, e.ErrNotFound
		}
		assert.Equal(t, investorUser, user)
		return testSnapshot(id), nil
	}

	rec := api.do(t, http.MethodGet, "/v1/companies/"+id.String(), "investor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp profileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Rockets for everyone", resp.Company.Tagline)
	assert.Equal(t, models.StatusAccepted, resp.Company.Status)
	assert.Len(t, resp.Executives, 1)

	rec = api.do(t, http.MethodGet, "/v1/companies/"+uuid.NewString(), "investor", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMyCompany(t *testing.T) {
	id := uuid.New()
	api := newTestAPI(t)
	api.ctrl.getMyProfile = func(_ context.Context, user *models.User) (*models.ProfileSnapshot, error) {
		assert.Equal(t, startupUser.ID, user.ID)
		return testSnapshot(id), nil
	}

	rec := api.do(t, http.MethodGet, "/v1/me/company", "startup", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/v1/me/company", "investor", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListCompanies_Filters(t *testing.T) {
	api := newTestAPI(t)
	var got models.CompanyFilter
	api.ctrl.listCompanies = func(_ context.Context, f models.CompanyFilter) (*controller.Page, error) {
		got = f
		return &controller.Page{Companies: []models.Company{*testCompany(uuid.New())}, Total: 7}, nil
	}

	rec := api.do(t, http.MethodGet, "/v1/companies?category=AI&stage=SEED&q=rock&limit=5&offset=10", "investor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CompanyFilter{
		Category: models.CategoryAI,
		Stage:    models.StageSeed,
		Search:   "rock",
		Limit:    5,
		Offset:   10,
	}, got)

	var resp pageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.Total)
	assert.Len(t, resp.Companies, 1)

	rec = api.do(t, http.MethodGet, "/v1/companies?limit=-1", "investor", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeError(t, rec)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "limit", body.Details[0].FieldViolations[0].Field)

	for _, offset := range []string{"-1", "abc", "10001"} {
		rec = api.do(t, http.MethodGet, "/v1/companies?offset="+offset, "investor", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, offset)
		body = decodeError(t, rec)
		require.Len(t, body.Details, 1)
		assert.Equal(t, "offset", body.Details[0].FieldViolations[0].Field)
	}

	rec = api.do(t, http.MethodGet, "/v1/companies?offset=10000", "investor", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminReview(t *testing.T) {
	id := uuid.New()

	t.Run("accept", func(t *testing.T) {
		api := newTestAPI(t)
		api.ctrl.accept = func(_ context.Context, got uuid.UUID) (*models.Company, error) {
			assert.Equal(t, id, got)
			return testCompany(id), nil
		}
		rec := api.do(t, http.MethodPost, "/v1/admin/companies/"+id.String()+"/accept", "admin", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("reject passes the reason", func(t *testing.T) {
		api := newTestAPI(t)
		api.ctrl.reject = func(_ context.Context, _ uuid.UUID, reason string) (*models.Company, error) {
			assert.Equal(t, "incomplete deck", reason)
			c := testCompany(id)
			c.Status = models.StatusRejected
			c.RejectionReason = reason
			return c, nil
		}
		rec := api.do(t, http.MethodPost, "/v1/admin/companies/"+id.String()+"/reject", "admin", rejectRequest{Reason: "incomplete deck"})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp companyResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "incomplete deck", resp.RejectionReason)
	})

	t.Run("invalid transition conflicts", func(t *testing.T) {
		api := newTestAPI(t)
		api.ctrl.accept = func(context.Context, uuid.UUID) (*models.Company, error) {
			return nil, e.ErrInvalidTransition
		}
		rec := api.do(t, http.MethodPost, "/v1/admin/companies/"+id.String()+"/accept", "admin", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("admins only", func(t *testing.T) {
		api := newTestAPI(t)
		rec := api.do(t, http.MethodPost, "/v1/admin/companies/"+id.String()+"/accept", "investor", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		rec = api.do(t, http.MethodGet, "/v1/admin/companies", "startup", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin listing keeps the status filter", func(t *testing.T) {
		api := newTestAPI(t)
		api.ctrl.adminListCompanies = func(_ context.Context, f models.CompanyFilter) (*controller.Page, error) {
			assert.Equal(t, models.StatusPending, f.Status)
			return &controller.Page{}, nil
		}
		rec := api.do(t, http.MethodGet, "/v1/admin/companies?status=pending", "admin", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"companies":[],"total":0}`, rec.Body.String())
	})
}

func TestDeleteCompany(t *testing.T) {
	id := uuid.New()
	api := newTestAPI(t)
	api.ctrl.deleteCompany = func(_ context.Context, user *models.User, got uuid.UUID) error {
		if user.Role != models.UserRoleStartup {
			return e.ErrPermissionDenied
		}
		assert.Equal(t, id, got)
		return nil
	}

	rec := api.do(t, http.MethodDelete, "/v1/companies/"+id.String(), "startup", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodDelete, "/v1/companies/"+id.String(), "admin", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodDelete, "/v1/companies/"+id.String(), "investor", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func multipartRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer startup")
	return req
}

func TestUpload(t *testing.T) {
	id := uuid.New()
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	t.Run("stores the file", func(t *testing.T) {
		api := newTestAPI(t)
		api.ctrl.attachUpload = func(_ context.Context, _ *models.User, got uuid.UUID, kind storage.Kind, filename string, r io.Reader) (*storage.Object, error) {
			assert.Equal(t, id, got)
			assert.Equal(t, storage.KindLogo, kind)
			assert.Equal(t, "logo.png", filename)
			data, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, png, data)
			return &storage.Object{URL: "https://cdn.example.com/logo.png", ContentType: "image/png", Size: int64(len(data))}, nil
		}

		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, multipartRequest(t, "/v1/companies/"+id.String()+"/uploads/logo", "logo.png", png))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var obj storage.Object
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obj))
		assert.Equal(t, "https://cdn.example.com/logo.png", obj.URL)
	})

	t.Run("file is required", func(t *testing.T) {
		api := newTestAPI(t)
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, multipartRequest(t, "/v1/companies/"+id.String()+"/uploads/logo", "", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		require.Len(t, body.Details, 1)
		assert.Equal(t, "file", body.Details[0].FieldViolations[0].Field)
	})

	t.Run("unknown kind", func(t *testing.T) {
		api := newTestAPI(t)
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, multipartRequest(t, "/v1/companies/"+id.String()+"/uploads/avatar", "a.png", png))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestNewsRoutes(t *testing.T) {
	id := uuid.New()
	newsID := uuid.New()
	api := newTestAPI(t)

	api.ctrl.addNews = func(_ context.Context, _ *models.User, got uuid.UUID, n *models.News) (*models.News, error) {
		assert.Equal(t, id, got)
		n.ID = newsID
		n.CompanyID = got
		return n, nil
	}
	api.ctrl.listNews = func(context.Context, *models.User, uuid.UUID) ([]models.News, error) {
		return nil, nil
	}
	var deleted, cleared uuid.UUID
	api.ctrl.deleteNews = func(_ context.Context, _ *models.User, _, n uuid.UUID) error {
		deleted = n
		return nil
	}
	api.ctrl.removeNewsThumbnail = func(_ context.Context, _ *models.User, _, n uuid.UUID) error {
		cleared = n
		return nil
	}

	rec := api.do(t, http.MethodPost, "/v1/companies/"+id.String()+"/news", "startup", models.News{Title: "Launch", URL: "https://example.com/launch"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.News
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, newsID, created.ID)
	assert.Equal(t, "Launch", created.Title)

	rec = api.do(t, http.MethodGet, "/v1/companies/"+id.String()+"/news", "investor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = api.do(t, http.MethodDelete, "/v1/companies/"+id.String()+"/news/"+newsID.String()+"/thumbnail", "startup", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, newsID, cleared)

	rec = api.do(t, http.MethodDelete, "/v1/companies/"+id.String()+"/news/"+newsID.String(), "startup", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, newsID, deleted)

	rec = api.do(t, http.MethodDelete, "/v1/companies/"+id.String()+"/news/bad-id", "startup", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
