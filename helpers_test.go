package identity_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/bus"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    creator TEXT,
    name TEXT NOT NULL,
    first_name TEXT,
    last_name TEXT,
    email TEXT,
    active BOOLEAN DEFAULT FALSE,
    activation_code TEXT,
    password_hash TEXT,
    guest BOOLEAN DEFAULT FALSE,
    role_associations TEXT,
    locale_id TEXT,
    timezone TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`

	sqliteCreateRoles = `CREATE TABLE roles (
    id TEXT NOT NULL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`

	sqliteCreateAuthLogs = `CREATE TABLE authentication_logs (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT,
    activity TEXT,
    ip_address TEXT,
    user_agent TEXT,
    date INTEGER,
    meta TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	for _, ddl := range []string{sqliteCreateUsers, sqliteCreateRoles, sqliteCreateAuthLogs} {
		_, err = db.Exec(ddl)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})

	return db
}

type fixture struct {
	db     *bun.DB
	repos  identity.RepositoryManager
	broker *bus.Broker
	roles  *identity.RoleService
	users  *identity.UserService
}

func newFixture(t *testing.T, cfg identity.Config) *fixture {
	t.Helper()

	db := setupDB(t)
	repos := identity.NewRepositoryManager(db)
	broker := bus.New()

	roles := identity.NewRoleService(repos.Roles(), broker.Topic(identity.TopicRoleResource))
	users := identity.NewUserService(repos.Users(), roles, broker.Topic(identity.TopicUserResource), cfg)

	return &fixture{
		db:     db,
		repos:  repos,
		broker: broker,
		roles:  roles,
		users:  users,
	}
}

// recorder collects every event emitted on a topic.
type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Event   string
	Payload any
}

func (r *recorder) watch(topic *bus.Topic, events ...string) {
	for _, event := range events {
		evt := event
		topic.Subscribe(evt, func(ctx context.Context, payload any) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, recordedEvent{Event: evt, Payload: payload})
			return nil
		})
	}
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Event)
	}
	return out
}

func candidate(name, email string) *identity.User {
	return &identity.User{
		Name:      name,
		Email:     email,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "securePassword123!",
	}
}

// stubGate is a fixed-answer feature gate. Unknown keys resolve enabled.
type stubGate struct {
	enabled map[string]bool
	calls   []string
	err     error
}

func (s *stubGate) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	s.calls = append(s.calls, key)
	if s.err != nil {
		return false, s.err
	}
	if s.enabled == nil {
		return true, nil
	}
	enabled, ok := s.enabled[key]
	if !ok {
		return true, nil
	}
	return enabled, nil
}
