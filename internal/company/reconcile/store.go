package reconcile

import (
	"context"

	"github.com/gartstein/founderhub/internal/company/db"
)

// repoStore adapts the gorm repository to Store.
type repoStore struct {
	*db.Repository
}

// NewRepositoryStore returns a Store backed by repo.
func NewRepositoryStore(repo *db.Repository) Store {
	return repoStore{Repository: repo}
}

func (s repoStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.Repository.WithTransaction(ctx, func(repo *db.Repository) error {
		return fn(repoStore{Repository: repo})
	})
}
