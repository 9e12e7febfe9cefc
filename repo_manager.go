package identity

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-identity/store"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

func init() {
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*Role)(nil))
	persistence.RegisterModel((*AuthenticationLog)(nil))
}

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
	Roles() Roles
	AuthLogs() *store.Collection[*AuthenticationLog]
}

type mngr struct {
	db       *bun.DB
	users    Users
	roles    Roles
	authLogs *store.Collection[*AuthenticationLog]
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		users:    NewUsersRepository(db),
		roles:    NewRolesRepository(db),
		authLogs: store.NewCollection[*AuthenticationLog](db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.authLogs == nil {
		return errors.New("repository authLogs should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) AuthLogs() *store.Collection[*AuthenticationLog] {
	return m.authLogs
}
