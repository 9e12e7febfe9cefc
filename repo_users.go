package identity

import (
	"context"

	"github.com/goliatone/go-identity/store"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user persistence surface: generic repository operations plus
// the filtered reads the lifecycle service needs.
type Users interface {
	repository.Repository[*User]

	Search(ctx context.Context, f store.Filter, p store.Pagination) ([]*User, int, error)
	Remove(ctx context.Context, id string) error
}

type users struct {
	repository.Repository[*User]
	db         bun.IDB
	collection *store.Collection[*User]
}

var _ Users = (*users)(nil)

// NewUsersRepository builds the default Users implementation.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
		collection: store.NewCollection[*User](db),
	}
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) Search(ctx context.Context, f store.Filter, p store.Pagination) ([]*User, int, error) {
	return a.collection.Read(ctx, f, p)
}

func (a *users) Remove(ctx context.Context, id string) error {
	return a.collection.Delete(ctx, []string{id})
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
