// Package reconcile makes the persisted profile of a company match the
// profile its founder submitted.
//
// Every child collection the edit form maintains is replaced wholesale:
// existing rows are deleted, the deletion is confirmed by reading the
// collection back, and only then are the new rows inserted. All of it runs
// in one transaction, so a failed submission leaves the previous profile
// intact and can simply be retried.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gartstein/founderhub/internal/company/auth"
	e "github.com/gartstein/founderhub/internal/company/errors"
	"github.com/gartstein/founderhub/internal/company/models"
	"github.com/gartstein/founderhub/internal/company/validation"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultStepTimeout bounds every individual store or session call.
const DefaultStepTimeout = 30 * time.Second

// Store is the slice of the profile store the engine writes through.
type Store interface {
	// WithinTx runs fn against a store bound to one transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id uuid.UUID) (*models.Company, error)
	UpdateCompanyFields(ctx context.Context, id uuid.UUID, f models.CompanyFields) error
	DeleteChildren(ctx context.Context, c models.Collection, companyID uuid.UUID) (int64, error)
	CountChildren(ctx context.Context, c models.Collection, companyID uuid.UUID) (int64, error)
	ListChildIDs(ctx context.Context, c models.Collection, companyID uuid.UUID) ([]uuid.UUID, error)
	DeleteChild(ctx context.Context, c models.Collection, companyID, id uuid.UUID) (int64, error)
	InsertExecutives(ctx context.Context, companyID uuid.UUID, execs []models.Executive) error
	InsertQnA(ctx context.Context, companyID uuid.UUID, items []models.QnA) error
	InsertVideo(ctx context.Context, companyID uuid.UUID, v models.Video) error
	GetSnapshot(ctx context.Context, id uuid.UUID) (*models.ProfileSnapshot, error)
}

// SessionGuard resolves and refreshes sessions.
type SessionGuard interface {
	Authenticate(ctx context.Context, accessToken string) (*models.User, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
}

// Session is the token pair presented with a submission.
type Session struct {
	AccessToken  string
	RefreshToken string
}

// Result is a reconciled profile.
type Result struct {
	Snapshot *models.ProfileSnapshot
	// Tokens is set when the access token had to be refreshed; the client
	// must replace its session with it.
	Tokens *auth.Tokens
}

type Engine struct {
	store       Store
	guard       SessionGuard
	validator   *validation.Validator
	stepTimeout time.Duration
	logger      *zap.Logger
}

func NewEngine(store Store, guard SessionGuard, v *validation.Validator, stepTimeout time.Duration, logger *zap.Logger) *Engine {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	return &Engine{
		store:       store,
		guard:       guard,
		validator:   v,
		stepTimeout: stepTimeout,
		logger:      logger.Named("reconcile"),
	}
}

// Register creates a pending, invisible company for the session user and
// writes its first profile.
func (en *Engine) Register(ctx context.Context, sess Session, p *models.Profile) (*Result, error) {
	if err := en.validator.Profile(p); err != nil {
		return nil, err
	}
	user, tokens, err := en.resolveSession(ctx, sess)
	if err != nil {
		return nil, err
	}
	if user.Role != models.UserRoleStartup {
		return nil, fmt.Errorf("%w: only founders register companies", e.ErrPermissionDenied)
	}

	company := &models.Company{
		ID:            uuid.New(),
		OwnerID:       user.ID,
		CompanyFields: p.Company,
		Status:        models.StatusPending,
	}
	var snap *models.ProfileSnapshot
	err = en.store.WithinTx(ctx, func(tx Store) error {
		if err := en.step(ctx, "create company", func(ctx context.Context) error {
			return tx.CreateCompany(ctx, company)
		}); err != nil {
			return err
		}
		if err := en.replaceAll(ctx, tx, company.ID, p); err != nil {
			return err
		}
		snap, err = en.snapshot(ctx, tx, company.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	en.logger.Info("company registered",
		zap.String("company_id", company.ID.String()),
		zap.String("owner_id", user.ID.String()),
	)
	return &Result{Snapshot: snap, Tokens: tokens}, nil
}

// Submit replaces the profile of an existing company owned by the session
// user.
func (en *Engine) Submit(ctx context.Context, sess Session, companyID uuid.UUID, p *models.Profile) (*Result, error) {
	if err := en.validator.Profile(p); err != nil {
		return nil, err
	}
	user, tokens, err := en.resolveSession(ctx, sess)
	if err != nil {
		return nil, err
	}

	var company *models.Company
	if err := en.step(ctx, "load company", func(ctx context.Context) error {
		var err error
		company, err = en.store.GetCompany(ctx, companyID)
		return err
	}); err != nil {
		return nil, err
	}
	if company.OwnerID != user.ID {
		return nil, fmt.Errorf("%w: company belongs to another user", e.ErrPermissionDenied)
	}

	var snap *models.ProfileSnapshot
	err = en.store.WithinTx(ctx, func(tx Store) error {
		if err := en.step(ctx, "update company", func(ctx context.Context) error {
			return tx.UpdateCompanyFields(ctx, companyID, p.Company)
		}); err != nil {
			return err
		}
		if err := en.replaceAll(ctx, tx, companyID, p); err != nil {
			return err
		}
		snap, err = en.snapshot(ctx, tx, companyID)
		return err
	})
	if err != nil {
		en.logger.Warn("profile submission rolled back",
			zap.String("company_id", companyID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	en.logger.Info("profile reconciled", zap.String("company_id", companyID.String()))
	return &Result{Snapshot: snap, Tokens: tokens}, nil
}

// replaceAll replaces executives, Q&A and the main video. Metrics and news
// are never touched.
func (en *Engine) replaceAll(ctx context.Context, tx Store, companyID uuid.UUID, p *models.Profile) error {
	execs := make([]models.Executive, len(p.Executives))
	copy(execs, p.Executives)
	if err := en.replace(ctx, tx, models.CollectionExecutives, companyID, func(ctx context.Context) error {
		return tx.InsertExecutives(ctx, companyID, execs)
	}); err != nil {
		return err
	}

	answered := answeredQnA(p.QnA)
	if err := en.replace(ctx, tx, models.CollectionQnA, companyID, func(ctx context.Context) error {
		return tx.InsertQnA(ctx, companyID, answered)
	}); err != nil {
		return err
	}

	return en.replace(ctx, tx, models.CollectionMainVideo, companyID, func(ctx context.Context) error {
		if p.MainVideo == nil || strings.TrimSpace(p.MainVideo.URL) == "" {
			return nil
		}
		return tx.InsertVideo(ctx, companyID, models.Video{
			URL:         strings.TrimSpace(p.MainVideo.URL),
			Description: p.MainVideo.Description,
			IsMain:      true,
		})
	})
}

// replace empties a collection, confirms it is empty, and inserts. Rows a
// bulk delete left behind are deleted one by one exactly once; if any row
// survives that too, the submission fails before inserting so old and new
// rows never coexist.
func (en *Engine) replace(ctx context.Context, tx Store, c models.Collection, companyID uuid.UUID, insert func(context.Context) error) error {
	if err := en.step(ctx, "delete "+string(c), func(ctx context.Context) error {
		_, err := tx.DeleteChildren(ctx, c, companyID)
		return err
	}); err != nil {
		return err
	}

	remaining, err := en.count(ctx, tx, c, companyID)
	if err != nil {
		return err
	}
	if remaining > 0 {
		en.logger.Warn("bulk delete left rows behind, retrying per row",
			zap.String("collection", string(c)),
			zap.String("company_id", companyID.String()),
			zap.Int64("remaining", remaining),
		)
		if err := en.deleteEach(ctx, tx, c, companyID); err != nil {
			return err
		}
		if remaining, err = en.count(ctx, tx, c, companyID); err != nil {
			return err
		}
		if remaining > 0 {
			return fmt.Errorf("%w: %d %s rows could not be deleted", e.ErrPermissionDenied, remaining, c)
		}
	}

	return en.step(ctx, "insert "+string(c), insert)
}

func (en *Engine) deleteEach(ctx context.Context, tx Store, c models.Collection, companyID uuid.UUID) error {
	var ids []uuid.UUID
	if err := en.step(ctx, "list "+string(c), func(ctx context.Context) error {
		var err error
		ids, err = tx.ListChildIDs(ctx, c, companyID)
		return err
	}); err != nil {
		return err
	}
	for _, id := range ids {
		if err := en.step(ctx, "delete "+string(c)+" row", func(ctx context.Context) error {
			_, err := tx.DeleteChild(ctx, c, companyID, id)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func (en *Engine) count(ctx context.Context, tx Store, c models.Collection, companyID uuid.UUID) (int64, error) {
	var n int64
	err := en.step(ctx, "confirm "+string(c)+" delete", func(ctx context.Context) error {
		var err error
		n, err = tx.CountChildren(ctx, c, companyID)
		return err
	})
	return n, err
}

func (en *Engine) snapshot(ctx context.Context, tx Store, companyID uuid.UUID) (*models.ProfileSnapshot, error) {
	var snap *models.ProfileSnapshot
	err := en.step(ctx, "load snapshot", func(ctx context.Context) error {
		var err error
		snap, err = tx.GetSnapshot(ctx, companyID)
		return err
	})
	return snap, err
}

// resolveSession authenticates the session, refreshing it once when the
// access token has expired.
func (en *Engine) resolveSession(ctx context.Context, sess Session) (*models.User, *auth.Tokens, error) {
	var user *models.User
	err := en.step(ctx, "authenticate", func(ctx context.Context) error {
		var err error
		user, err = en.guard.Authenticate(ctx, sess.AccessToken)
		return err
	})
	if err == nil {
		return user, nil, nil
	}
	if !errors.Is(err, e.ErrTokenExpired) {
		return nil, nil, sessionError(err)
	}
	if sess.RefreshToken == "" {
		return nil, nil, e.ErrUnauthenticated
	}

	var tokens auth.Tokens
	if err := en.step(ctx, "refresh session", func(ctx context.Context) error {
		var err error
		tokens, err = en.guard.Refresh(ctx, sess.RefreshToken)
		return err
	}); err != nil {
		return nil, nil, sessionError(err)
	}
	en.logger.Debug("session refreshed")

	if err := en.step(ctx, "authenticate", func(ctx context.Context) error {
		var err error
		user, err = en.guard.Authenticate(ctx, tokens.AccessToken)
		return err
	}); err != nil {
		return nil, nil, sessionError(err)
	}
	return user, &tokens, nil
}

// sessionError collapses token defects into ErrUnauthenticated and keeps
// revocations and infrastructure failures distinct.
func sessionError(err error) error {
	switch {
	case errors.Is(err, e.ErrSessionRevoked), errors.Is(err, e.ErrTimeout):
		return err
	case errors.Is(err, e.ErrTokenExpired), errors.Is(err, e.ErrUnauthenticated):
		return e.ErrUnauthenticated
	default:
		return err
	}
}

// step runs fn with its own timeout budget.
func (en *Engine) step(ctx context.Context, name string, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, en.stepTimeout)
	defer cancel()

	err := fn(stepCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", e.ErrTimeout, name)
	}
	return err
}

// answeredQnA drops unanswered questions and tags each answer with its
// catalog category.
func answeredQnA(items []models.QnA) []models.QnA {
	out := make([]models.QnA, 0, len(items))
	for _, q := range items {
		answer := strings.TrimSpace(q.Answer)
		if answer == "" {
			continue
		}
		category, _ := models.QuestionCategory(q.Question)
		out = append(out, models.QnA{Category: category, Question: q.Question, Answer: answer})
	}
	return out
}
