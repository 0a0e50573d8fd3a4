package reconcile

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gartstein/founderhub/internal/company/auth"
	"github.com/gartstein/founderhub/internal/company/db"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/gartstein/founderhub/internal/company/validation"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// MockGuard is a func-field SessionGuard.
type MockGuard struct {
	authenticate func(context.Context, string) (*models.User, error)
	refresh      func(context.Context, string) (auth.Tokens, error)
	authCalls    int
	refreshCalls int
}

func (m *MockGuard) Authenticate(ctx context.Context, token string) (*models.User, error) {
	m.authCalls++
	return m.authenticate(ctx, token)
}

func (m *MockGuard) Refresh(ctx context.Context, token string) (auth.Tokens, error) {
	m.refreshCalls++
	return m.refresh(ctx, token)
}

func guardFor(user *models.User) *MockGuard {
	return &MockGuard{
		authenticate: func(_ context.Context, token string) (*models.User, error) {
			if token != "valid" {
				return nil, e.ErrUnauthenticated
			}
			return user, nil
		},
		refresh: func(context.Context, string) (auth.Tokens, error) {
			return auth.Tokens{}, e.ErrUnauthenticated
		},
	}
}

var validSession = Session{AccessToken: "valid", RefreshToken: "refresh"}

// blockingStore makes chosen operations misbehave on top of a real store.
type blockingStore struct {
	Store
	blockBulkDelete map[models.Collection]bool
	blockRowDelete  map[models.Collection]bool
	failInsertQnA   error
	slowUpdate      bool
	rowDeletes      int
}

func (s *blockingStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.Store.WithinTx(ctx, func(tx Store) error {
		inner := *s
		inner.Store = tx
		err := fn(&inner)
		s.rowDeletes += inner.rowDeletes
		return err
	})
}

func (s *blockingStore) DeleteChildren(ctx context.Context, c models.Collection, id uuid.UUID) (int64, error) {
	if s.blockBulkDelete[c] {
		return 0, nil
	}
	return s.Store.DeleteChildren(ctx, c, id)
}

func (s *blockingStore) DeleteChild(ctx context.Context, c models.Collection, companyID, id uuid.UUID) (int64, error) {
	s.rowDeletes++
	if s.blockRowDelete[c] {
		return 0, nil
	}
	return s.Store.DeleteChild(ctx, c, companyID, id)
}

func (s *blockingStore) InsertQnA(ctx context.Context, companyID uuid.UUID, items []models.QnA) error {
	if s.failInsertQnA != nil {
		return s.failInsertQnA
	}
	return s.Store.InsertQnA(ctx, companyID, items)
}

func (s *blockingStore) UpdateCompanyFields(ctx context.Context, id uuid.UUID, f models.CompanyFields) error {
	if s.slowUpdate {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.Store.UpdateCompanyFields(ctx, id, f)
}

func setupRepo(t *testing.T) *db.Repository {
	repo, err := db.NewRepository(&db.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func founder() *models.User {
	return &models.User{ID: uuid.New(), Email: gofakeit.Email(), Role: models.UserRoleStartup}
}

func profile() *models.Profile {
	return &models.Profile{
		Company: models.CompanyFields{
			Name:        "Robot Tools",
			Tagline:     "We build tools for robots",
			Description: strings.Repeat("r", 100),
			Category:    models.CategoryHardware,
			Stage:       models.StagePreSeed,
			Employees:   models.Employees1To10,
		},
		Executives: []models.Executive{{Name: "Ada", Role: models.RoleCEO}},
	}
}

func newEngine(t *testing.T, store Store, guard SessionGuard) *Engine {
	return NewEngine(store, guard, validation.New(), time.Second, zaptest.NewLogger(t))
}

// TestRegister_EndToEnd walks a first registration through to investor
// visibility.
func TestRegister_EndToEnd(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	user := founder()
	en := newEngine(t, NewRepositoryStore(repo), guardFor(user))

	res, err := en.Register(ctx, validSession, profile())
	require.NoError(t, err)
	assert.Nil(t, res.Tokens)

	snap := res.Snapshot
	assert.False(t, snap.Company.IsVisible)
	assert.Equal(t, models.StatusPending, snap.Company.Status)
	assert.Equal(t, user.ID, snap.Company.OwnerID)
	require.Len(t, snap.Executives, 1)
	assert.Equal(t, models.RoleCEO, snap.Executives[0].Role)
	assert.Equal(t, "Ada", snap.Executives[0].Name)

	list, _, err := repo.ListCompanies(ctx, models.CompanyFilter{VisibleOnly: true})
	require.NoError(t, err)
	assert.Empty(t, list, "pending companies are hidden from investors")

	company := snap.Company
	company.IsVisible = true
	company.Status = models.StatusAccepted
	require.NoError(t, repo.UpdateReview(ctx, company))

	list, _, err = repo.ListCompanies(ctx, models.CompanyFilter{VisibleOnly: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, company.ID, list[0].ID)
}

func TestRegister_RequiresFounder(t *testing.T) {
	repo := setupRepo(t)
	investor := &models.User{ID: uuid.New(), Role: models.UserRoleInvestor}
	en := newEngine(t, NewRepositoryStore(repo), guardFor(investor))

	_, err := en.Register(context.Background(), validSession, profile())
	assert.ErrorIs(t, err, e.ErrPermissionDenied)
}

// TestSubmit_Idempotent checks that submitting the same profile twice
// leaves the same persisted state as submitting it once.
func TestSubmit_Idempotent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	user := founder()
	en := newEngine(t, NewRepositoryStore(repo), guardFor(user))

	p := profile()
	p.Executives = append(p.Executives, models.Executive{Name: "Grace", Role: models.RoleCTO, Bio: "Compilers"})
	p.QnA = []models.QnA{
		{Question: models.QuestionCatalog[0].Question, Answer: "Robots are hard"},
		{Question: models.QuestionCatalog[8].Question, Answer: "Subscriptions"},
	}
	p.MainVideo = &models.Video{URL: "https://video.example/intro", Description: "Intro"}

	reg, err := en.Register(ctx, validSession, p)
	require.NoError(t, err)
	id := reg.Snapshot.Company.ID

	first, err := en.Submit(ctx, validSession, id, p)
	require.NoError(t, err)
	second, err := en.Submit(ctx, validSession, id, p)
	require.NoError(t, err)

	assert.Equal(t, first.Snapshot.Company.CompanyFields, second.Snapshot.Company.CompanyFields)
	assert.Equal(t, stripExecIDs(first.Snapshot.Executives), stripExecIDs(second.Snapshot.Executives))
	assert.Equal(t, stripQnAIDs(first.Snapshot.QnA), stripQnAIDs(second.Snapshot.QnA))
	require.Len(t, second.Snapshot.Videos, 1)
	assert.Equal(t, "https://video.example/intro", second.Snapshot.Videos[0].URL)
	assert.Len(t, second.Snapshot.Executives, 2)
	assert.Equal(t, "business_model", second.Snapshot.QnA[1].Category)
}

func stripExecIDs(in []models.Executive) []models.Executive {
	out := make([]models.Executive, len(in))
	for i, x := range in {
		x.ID = uuid.Nil
		out[i] = x
	}
	return out
}

func stripQnAIDs(in []models.QnA) []models.QnA {
	out := make([]models.QnA, len(in))
	for i, x := range in {
		x.ID = uuid.Nil
		out[i] = x
	}
	return out
}

func TestSubmit_SkipsEmptyAnswers(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	en := newEngine(t, NewRepositoryStore(repo), guardFor(founder()))

	p := profile()
	for i, q := range models.QuestionCatalog[:models.MaxQnA] {
		answer := "answer"
		if i == 2 {
			answer = "   "
		}
		p.QnA = append(p.QnA, models.QnA{Question: q.Question, Answer: answer})
	}

	res, err := en.Register(ctx, validSession, p)
	require.NoError(t, err)
	require.Len(t, res.Snapshot.QnA, 4)
	for _, q := range res.Snapshot.QnA {
		assert.NotEmpty(t, strings.TrimSpace(q.Answer))
	}
}

func TestSubmit_DropsMainVideoWithoutURL(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	en := newEngine(t, NewRepositoryStore(repo), guardFor(founder()))

	p := profile()
	p.MainVideo = &models.Video{URL: "https://video.example/intro"}
	reg, err := en.Register(ctx, validSession, p)
	require.NoError(t, err)
	require.NotNil(t, reg.Snapshot.MainVideo())

	p.MainVideo = nil
	res, err := en.Submit(ctx, validSession, reg.Snapshot.Company.ID, p)
	require.NoError(t, err)
	assert.Nil(t, res.Snapshot.MainVideo())
}

func TestSubmit_NeverTouchesMetrics(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	en := newEngine(t, NewRepositoryStore(repo), guardFor(founder()))

	reg, err := en.Register(ctx, validSession, profile())
	require.NoError(t, err)
	id := reg.Snapshot.Company.ID
	revenue := 10.0
	require.NoError(t, repo.UpsertMetrics(ctx, []models.Metric{{CompanyID: id, Month: "2024-01", Source: models.SourceStripe, Revenue: &revenue}}))

	_, err = en.Submit(ctx, validSession, id, profile())
	require.NoError(t, err)

	snap, err := repo.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.Metrics, 1)
}

// TestSubmit_BlockedDelete covers a bulk delete that silently removed
// nothing: rows are retried one by one, and if they still survive the
// submission fails without duplicating executives.
func TestSubmit_BlockedDelete(t *testing.T) {
	tests := []struct {
		name           string
		blockRowDelete bool
		wantErr        error
		wantExecs      []string
	}{
		{name: "per-row retry succeeds", wantExecs: []string{"Ada", "Linus"}},
		{name: "per-row retry also blocked", blockRowDelete: true, wantErr: e.ErrPermissionDenied, wantExecs: []string{"Ada"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupRepo(t)
			ctx := context.Background()
			user := founder()
			reg, err := newEngine(t, NewRepositoryStore(repo), guardFor(user)).Register(ctx, validSession, profile())
			require.NoError(t, err)

			store := &blockingStore{
				Store:           NewRepositoryStore(repo),
				blockBulkDelete: map[models.Collection]bool{models.CollectionExecutives: true},
				blockRowDelete:  map[models.Collection]bool{models.CollectionExecutives: tt.blockRowDelete},
			}
			p := profile()
			p.Executives = append(p.Executives, models.Executive{Name: "Linus", Role: models.RoleCTO})

			_, err = newEngine(t, store, guardFor(user)).Submit(ctx, validSession, reg.Snapshot.Company.ID, p)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, 1, store.rowDeletes, "each remaining row is retried exactly once")

			snap, err := repo.GetSnapshot(ctx, reg.Snapshot.Company.ID)
			require.NoError(t, err)
			names := make([]string, 0, len(snap.Executives))
			for _, x := range snap.Executives {
				names = append(names, x.Name)
			}
			assert.Equal(t, tt.wantExecs, names)
		})
	}
}

func TestSubmit_PartialFailureRollsBack(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	user := founder()
	reg, err := newEngine(t, NewRepositoryStore(repo), guardFor(user)).Register(ctx, validSession, profile())
	require.NoError(t, err)
	id := reg.Snapshot.Company.ID

	store := &blockingStore{Store: NewRepositoryStore(repo), failInsertQnA: errors.New("disk full")}
	p := profile()
	p.Company.Name = "Renamed"
	p.Executives = []models.Executive{{Name: "Someone Else", Role: models.RoleCEO}}
	p.QnA = []models.QnA{{Question: models.QuestionCatalog[0].Question, Answer: "x"}}

	_, err = newEngine(t, store, guardFor(user)).Submit(ctx, validSession, id, p)
	require.Error(t, err)

	snap, err := repo.GetSnapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Robot Tools", snap.Company.Name, "scalar update is rolled back")
	require.Len(t, snap.Executives, 1)
	assert.Equal(t, "Ada", snap.Executives[0].Name, "executive replace is rolled back")
}

func TestSubmit_StepTimeout(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	user := founder()
	reg, err := newEngine(t, NewRepositoryStore(repo), guardFor(user)).Register(ctx, validSession, profile())
	require.NoError(t, err)

	store := &blockingStore{Store: NewRepositoryStore(repo), slowUpdate: true}
	en := NewEngine(store, guardFor(user), validation.New(), 20*time.Millisecond, zaptest.NewLogger(t))

	_, err = en.Submit(ctx, validSession, reg.Snapshot.Company.ID, profile())
	assert.ErrorIs(t, err, e.ErrTimeout)
}

func TestSubmit_NotOwner(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	reg, err := newEngine(t, NewRepositoryStore(repo), guardFor(founder())).Register(ctx, validSession, profile())
	require.NoError(t, err)

	_, err = newEngine(t, NewRepositoryStore(repo), guardFor(founder())).Submit(ctx, validSession, reg.Snapshot.Company.ID, profile())
	assert.ErrorIs(t, err, e.ErrPermissionDenied)

	_, err = newEngine(t, NewRepositoryStore(repo), guardFor(founder())).Submit(ctx, validSession, uuid.New(), profile())
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestSubmit_ValidationBeforeAnyCall(t *testing.T) {
	guard := guardFor(founder())
	en := newEngine(t, NewRepositoryStore(setupRepo(t)), guard)

	p := profile()
	p.Company.Tagline = "short"
	p.Executives[0].Role = models.RoleCTO

	_, err := en.Submit(context.Background(), validSession, uuid.New(), p)
	var verr *e.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("tagline"))
	assert.True(t, verr.Has("executives[0].role"))
	assert.Zero(t, guard.authCalls, "no session call before validation passes")
}

func TestResolveSession(t *testing.T) {
	user := founder()
	fresh := auth.Tokens{AccessToken: "fresh", RefreshToken: "fresh-refresh"}

	expiredThenFresh := func(_ context.Context, token string) (*models.User, error) {
		if token == "fresh" {
			return user, nil
		}
		return nil, e.ErrTokenExpired
	}

	tests := []struct {
		name        string
		session     Session
		guard       *MockGuard
		wantErr     error
		wantTokens  bool
		wantRefresh int
	}{
		{
			name:    "valid access token",
			session: validSession,
			guard:   guardFor(user),
		},
		{
			name:    "expired token refreshed once",
			session: Session{AccessToken: "stale", RefreshToken: "refresh"},
			guard: &MockGuard{
				authenticate: expiredThenFresh,
				refresh:      func(context.Context, string) (auth.Tokens, error) { return fresh, nil },
			},
			wantTokens:  true,
			wantRefresh: 1,
		},
		{
			name:    "expired token and failed refresh",
			session: Session{AccessToken: "stale", RefreshToken: "refresh"},
			guard: &MockGuard{
				authenticate: expiredThenFresh,
				refresh: func(context.Context, string) (auth.Tokens, error) {
					return auth.Tokens{}, e.ErrUnauthenticated
				},
			},
			wantErr:     e.ErrUnauthenticated,
			wantRefresh: 1,
		},
		{
			name:    "expired token without refresh token",
			session: Session{AccessToken: "stale"},
			guard: &MockGuard{
				authenticate: expiredThenFresh,
				refresh:      func(context.Context, string) (auth.Tokens, error) { return fresh, nil },
			},
			wantErr: e.ErrUnauthenticated,
		},
		{
			name:    "user deleted out of band",
			session: validSession,
			guard: &MockGuard{
				authenticate: func(context.Context, string) (*models.User, error) { return nil, e.ErrSessionRevoked },
			},
			wantErr: e.ErrSessionRevoked,
		},
		{
			name:    "invalid token is not refreshed",
			session: Session{AccessToken: "forged", RefreshToken: "refresh"},
			guard:   guardFor(user),
			wantErr: e.ErrUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			en := newEngine(t, nil, tt.guard)
			got, tokens, err := en.resolveSession(context.Background(), tt.session)
			assert.Equal(t, tt.wantRefresh, tt.guard.refreshCalls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, got.ID)
			assert.Equal(t, tt.wantTokens, tokens != nil)
		})
	}
}
