package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/bus"
	"github.com/goliatone/go-identity/store"
)

// RoleService manages the role collection and verifies role references on
// user candidates.
type RoleService struct {
	roles    Roles
	topic    *bus.Topic
	logger   Logger
	provider LoggerProvider
}

// NewRoleService builds a role service publishing on topic.
func NewRoleService(roles Roles, topic *bus.Topic) *RoleService {
	provider, logger := ResolveLogger("identity.role_service", nil, nil)
	return &RoleService{
		roles:    roles,
		topic:    topic,
		logger:   logger,
		provider: provider,
	}
}

// WithLogger overrides the scoped logger.
func (s *RoleService) WithLogger(l Logger) *RoleService {
	s.provider, s.logger = ResolveLogger("identity.role_service", s.provider, l)
	return s
}

// WithLoggerProvider resolves the scoped logger from the provider.
func (s *RoleService) WithLoggerProvider(provider LoggerProvider) *RoleService {
	s.provider, s.logger = ResolveLogger("identity.role_service", provider, s.logger)
	return s
}

// Create stores the batch, enforcing the unique role name constraint.
func (s *RoleService) Create(ctx context.Context, items []*Role) ([]*Role, error) {
	if len(items) == 0 {
		return nil, invalidArgument("no role was provided for creation")
	}

	for _, role := range items {
		_, total, err := s.roles.Search(ctx, store.Eq("name", role.Name), store.Pagination{Limit: 1})
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check role name")
		}
		if total > 0 {
			return nil, ErrRoleExists.WithMetadata(map[string]any{"name": role.Name})
		}
	}

	created := make([]*Role, 0, len(items))
	for _, role := range items {
		record, err := s.roles.Create(ctx, role)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create role")
		}
		created = append(created, record)
	}

	s.logger.Info("roles created", "count", len(created))
	if s.topic != nil {
		for _, role := range created {
			if err := s.topic.Emit(ctx, EventCreated, role); err != nil {
				return created, err
			}
		}
	}

	return created, nil
}

// Read returns roles matching the filter plus the total count.
func (s *RoleService) Read(ctx context.Context, f store.Filter, p store.Pagination) ([]*Role, int, error) {
	return s.roles.Search(ctx, f, p)
}

// FindByName resolves a single role by its unique name.
func (s *RoleService) FindByName(ctx context.Context, name string) (*Role, error) {
	items, total, err := s.roles.Search(ctx, store.Eq("name", name), store.Pagination{Limit: 1})
	if err != nil {
		return nil, err
	}
	if total == 0 || len(items) == 0 {
		return nil, ErrRoleNotFound.WithMetadata(map[string]any{"name": name})
	}
	return items[0], nil
}

// VerifyRoles reports whether every referenced role id exists. Verification
// is all-or-nothing: one unknown reference fails the whole set.
func (s *RoleService) VerifyRoles(ctx context.Context, associations []RoleAssociation) (bool, error) {
	for _, assoc := range associations {
		ok, err := s.roles.ExistsByID(ctx, assoc.Role)
		if err != nil {
			return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify role association")
		}
		if !ok {
			s.logger.Debug("unknown role in role associations", "role", assoc.Role)
			return false, nil
		}
	}
	return true, nil
}
