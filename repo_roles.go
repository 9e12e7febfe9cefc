package identity

import (
	"context"

	"github.com/goliatone/go-identity/store"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles is the role persistence surface.
type Roles interface {
	repository.Repository[*Role]

	Search(ctx context.Context, f store.Filter, p store.Pagination) ([]*Role, int, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
}

type roles struct {
	repository.Repository[*Role]
	db         bun.IDB
	collection *store.Collection[*Role]
}

var _ Roles = (*roles)(nil)

// NewRolesRepository builds the default Roles implementation.
func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
		collection: store.NewCollection[*Role](db),
	}
}

func (r *roles) Search(ctx context.Context, f store.Filter, p store.Pagination) ([]*Role, int, error) {
	return r.collection.Read(ctx, f, p)
}

func (r *roles) ExistsByID(ctx context.Context, id string) (bool, error) {
	_, total, err := r.collection.Read(ctx, store.Eq("id", id), store.Pagination{Limit: 1})
	if err != nil {
		return false, err
	}
	return total > 0, nil
}
