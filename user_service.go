package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-identity/bus"
	"github.com/goliatone/go-identity/store"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// protectedFields cannot be changed through the generic Update operation.
// Each has a dedicated lifecycle operation or is server-assigned.
var protectedFields = []string{
	"name", "email", "password", "active",
	"activation_code", "creator", "password_hash", "guest",
}

// UserService implements the identity lifecycle: registration, activation,
// credential changes, lookup and login.
type UserService struct {
	users       Users
	roleService *RoleService
	tokens      TokenService
	mailer      *Mailer
	featureGate gate.FeatureGate
	topic       *bus.Topic
	cfg         Config
	logger      Logger
	provider    LoggerProvider
}

// NewUserService builds a user service publishing lifecycle events on topic.
func NewUserService(users Users, roles *RoleService, topic *bus.Topic, cfg Config) *UserService {
	cfg.normalize()
	provider, logger := ResolveLogger("identity.user_service", nil, nil)
	return &UserService{
		users:       users,
		roleService: roles,
		topic:       topic,
		cfg:         cfg,
		logger:      logger,
		provider:    provider,
	}
}

// WithLogger overrides the scoped logger.
func (s *UserService) WithLogger(l Logger) *UserService {
	s.provider, s.logger = ResolveLogger("identity.user_service", s.provider, l)
	return s
}

// WithLoggerProvider resolves the scoped logger from the provider.
func (s *UserService) WithLoggerProvider(provider LoggerProvider) *UserService {
	s.provider, s.logger = ResolveLogger("identity.user_service", provider, s.logger)
	return s
}

// WithMailer wires the activation email pipeline.
func (s *UserService) WithMailer(m *Mailer) *UserService {
	s.mailer = m
	return s
}

// WithFeatureGate wires the gate consulted by Register.
func (s *UserService) WithFeatureGate(fg gate.FeatureGate) *UserService {
	s.featureGate = fg
	return s
}

// WithTokenService wires the JWT minter used by Authenticate.
func (s *UserService) WithTokenService(ts TokenService) *UserService {
	s.tokens = ts
	return s
}

// CreateUsers stores the batch, one candidate at a time. The first failure
// aborts the batch; earlier users stay created.
func (s *UserService) CreateUsers(ctx context.Context, items []*User) ([]*User, error) {
	if len(items) == 0 {
		return nil, invalidArgument("no user was provided for creation")
	}

	created := make([]*User, 0, len(items))
	for _, candidate := range items {
		user, err := s.createUser(ctx, candidate)
		if err != nil {
			return created, err
		}
		created = append(created, user)
		if user.Guest {
			s.emit(ctx, EventRegistered, user)
		} else {
			s.emit(ctx, EventCreated, user)
		}
	}

	return created, nil
}

// Register runs the self-signup flow: the signup feature gate, guest and
// creator fields cleared, creation, and the activation email when the
// pipeline is available.
func (s *UserService) Register(ctx context.Context, candidate *User) (*User, error) {
	if s.featureGate != nil {
		if err := requireFeatureGate(ctx, s.featureGate, gate.FeatureUsersSignup, ErrSignupDisabled); err != nil {
			return nil, err
		}
	}

	candidate.Guest = false
	candidate.Creator = ""

	user, err := s.createUser(ctx, candidate)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, EventRegistered, user)
	s.queueActivationEmail(ctx, user, EmailRegister)

	return user, nil
}

func (s *UserService) createUser(ctx context.Context, user *User) (*User, error) {
	if err := validateCandidate(user, s.cfg); err != nil {
		return nil, err
	}

	if err := s.checkDuplicate(ctx, user); err != nil {
		return nil, err
	}

	if len(user.RoleAssociations) > 0 {
		ok, err := s.roleService.VerifyRoles(ctx, user.RoleAssociations)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, invalidArgument("one or more role associations reference an unknown role")
		}
	}

	if user.Guest {
		user.Active = true
		user.ActivationCode = ""
	} else {
		s.applyActivationPolicy(user)
	}

	hash, err := HashPassword(user.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.Password = ""

	user.Timezone = normalizeTimezone(user.Timezone, s.cfg.DefaultTimezone)

	if s.cfg.HashIDs && user.ID == uuid.Nil {
		if id, err := hashid.NewUUID(user.Email); err == nil {
			user.ID = id
		}
	}

	record, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
	}

	s.logger.Info("user created", "id", record.ID, "name", record.Name)
	return record, nil
}

// checkDuplicate enforces the uniqueness policy: name is always unique, and
// email joins the constraint unless disabled by configuration.
func (s *UserService) checkDuplicate(ctx context.Context, user *User) error {
	filter := store.Eq("name", user.Name)
	if s.cfg.UniqueEmailConstraint {
		filter = store.Or(filter, store.Eq("email", user.Email))
	}

	_, total, err := s.users.Search(ctx, filter, store.Pagination{Limit: 1})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing user")
	}
	if total > 0 {
		return ErrUserExists.WithMetadata(map[string]any{
			"name":  user.Name,
			"email": user.Email,
		})
	}
	return nil
}

func (s *UserService) applyActivationPolicy(user *User) {
	if s.cfg.UserActivationRequired {
		user.Active = false
		user.ActivationCode = NewActivationCode()
	} else {
		user.Active = true
		user.ActivationCode = ""
	}
}

// Activate flips the user active and consumes the activation code.
func (s *UserService) Activate(ctx context.Context, name, code string) (*User, error) {
	if name == "" {
		return nil, invalidArgument("argument name is empty")
	}
	if code == "" {
		return nil, invalidArgument("argument activation_code is empty")
	}

	user, err := s.findOne(ctx, store.Eq("name", name))
	if err != nil {
		return nil, err
	}

	if user.Active {
		return nil, ErrActivationConsumed
	}
	if user.ActivationCode != code {
		return nil, ErrWrongActivationCode
	}

	user.Active = true
	user.ActivationCode = ""

	if user, err = s.users.Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not activate user")
	}

	s.emit(ctx, EventActivated, map[string]any{"id": user.ID.String()})
	return user, nil
}

// ChangePassword verifies the current password before storing the new hash.
// Nothing is written when verification fails. The identifier matches the
// record id, name, or email.
func (s *UserService) ChangePassword(ctx context.Context, identifier, password, newPassword string) (*User, error) {
	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if user, err = s.users.Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not change password")
	}

	s.emit(ctx, EventPasswordChanged, user)
	return user, nil
}

// RequestPasswordChange issues a fresh activation code for an out-of-band
// password reset and triggers the notification email.
func (s *UserService) RequestPasswordChange(ctx context.Context, identifier string) error {
	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}

	user.ActivationCode = NewActivationCode()
	if user, err = s.users.Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not store password change request")
	}

	s.queueActivationEmail(ctx, user, EmailChange)
	return nil
}

// ConfirmPasswordChange completes a reset started by RequestPasswordChange.
func (s *UserService) ConfirmPasswordChange(ctx context.Context, identifier, code, newPassword string) (*User, error) {
	if code == "" {
		return nil, invalidArgument("argument activation_code is empty")
	}

	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if user.ActivationCode == "" || user.ActivationCode != code {
		return nil, ErrWrongActivationCode
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	user.ActivationCode = ""

	if user, err = s.users.Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not confirm password change")
	}

	s.emit(ctx, EventPasswordChanged, user)
	return user, nil
}

// ChangeEmail updates the email address and re-applies the activation
// policy, so the new address must be confirmed when activation is required.
func (s *UserService) ChangeEmail(ctx context.Context, identifier, email string) (*User, error) {
	if email == "" {
		return nil, invalidArgument("argument email is empty")
	}

	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	user.Email = email
	s.applyActivationPolicy(user)

	if user, err = s.users.Update(ctx, user, repository.UpdateByID(user.ID.String())); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not change email")
	}

	s.emit(ctx, EventEmailChanged, user)
	s.queueActivationEmail(ctx, user, EmailChange)

	return user, nil
}

// Unregister removes the user record.
func (s *UserService) Unregister(ctx context.Context, id string) error {
	if id == "" {
		return invalidArgument("argument id is empty")
	}

	if _, err := s.findOne(ctx, store.Eq("id", id)); err != nil {
		return err
	}

	if err := s.users.Remove(ctx, id); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not unregister user")
	}

	s.emit(ctx, EventUnregistered, map[string]any{"id": id})
	return nil
}

// Find matches users by any combination of id, name and email. The filters
// are joined with OR; at least one must be provided.
func (s *UserService) Find(ctx context.Context, id, name, email string) ([]*User, error) {
	filters := make([]store.Filter, 0, 3)
	if id != "" {
		filters = append(filters, store.Eq("id", id))
	}
	if name != "" {
		filters = append(filters, store.Eq("name", name))
	}
	if email != "" {
		filters = append(filters, store.Eq("email", email))
	}

	if len(filters) == 0 {
		return nil, invalidArgument("at least one of id, name or email is required")
	}

	items, total, err := s.users.Search(ctx, store.Or(filters...), store.Pagination{})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user lookup failed")
	}
	if total == 0 {
		return nil, ErrUserNotFound
	}

	return items, nil
}

// FindByRole returns users holding the named role. When attributes are
// given, each must be present on the matching role association.
func (s *UserService) FindByRole(ctx context.Context, roleName string, attributes []Attribute) ([]*User, error) {
	role, err := s.roleService.FindByName(ctx, roleName)
	if err != nil {
		return nil, err
	}

	items, _, err := s.users.Search(ctx, nil, store.Pagination{})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user lookup failed")
	}

	matched := make([]*User, 0)
	for _, user := range items {
		for _, assoc := range user.RoleAssociations {
			if assoc.Role == role.ID.String() && hasAttributes(assoc.Attributes, attributes) {
				matched = append(matched, user)
				break
			}
		}
	}

	return matched, nil
}

func hasAttributes(have, want []Attribute) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h.ID == w.ID && h.Value == w.Value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Login verifies credentials. Name takes precedence over email when both
// are given; when the match is ambiguous the first stored user wins.
// Inactive users can log in, callers gate on Active where needed.
func (s *UserService) Login(ctx context.Context, name, email, password string) (*User, error) {
	if name == "" && email == "" {
		return nil, ErrMissingCredentials
	}

	filter := store.Eq("name", name)
	if name == "" {
		filter = store.Eq("email", email)
	}

	items, total, err := s.users.Search(ctx, filter, store.Pagination{Limit: 1})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "login lookup failed")
	}
	if total == 0 || len(items) == 0 {
		return nil, ErrUserNotFound
	}

	user := items[0]
	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate runs Login and mints a JWT for the matched user.
func (s *UserService) Authenticate(ctx context.Context, name, email, password string) (*User, string, error) {
	if s.tokens == nil {
		return nil, "", goerrors.New("token service not configured", goerrors.CategoryInternal)
	}

	user, err := s.Login(ctx, name, email, password)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// Update applies the generic partial update. Protected fields are rejected
// up front for the whole batch, nothing is written when any item carries
// one. Zero values are skipped, so callers cannot blank a field here.
func (s *UserService) Update(ctx context.Context, items []*User) ([]*User, error) {
	if len(items) == 0 {
		return nil, invalidArgument("no user was provided for update")
	}

	for _, user := range items {
		if field := protectedFieldSet(user); field != "" {
			return nil, goerrors.New("update to a protected field is not allowed", goerrors.CategoryBadInput).
				WithTextCode(textCodeProtectedField).
				WithCode(goerrors.CodeBadRequest).
				WithMetadata(map[string]any{"field": field})
		}
	}

	updated := make([]*User, 0, len(items))
	for _, user := range items {
		record, err := s.users.Update(ctx, user,
			repository.UpdateByID(user.ID.String()),
			repository.UpdateSkipZeroValues(),
		)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return updated, ErrUserNotFound.WithMetadata(map[string]any{"id": user.ID.String()})
			}
			return updated, goerrors.Wrap(err, goerrors.CategoryInternal, "could not update user")
		}
		updated = append(updated, record)
	}

	return updated, nil
}

func protectedFieldSet(user *User) string {
	set := map[string]bool{
		"name":            user.Name != "",
		"email":           user.Email != "",
		"password":        user.Password != "",
		"active":          user.Active,
		"activation_code": user.ActivationCode != "",
		"creator":         user.Creator != "",
		"password_hash":   user.PasswordHash != "",
		"guest":           user.Guest,
	}

	for _, field := range protectedFields {
		if set[field] {
			return field
		}
	}
	return ""
}

// SendActivationEmail re-issues the activation email for a user that has
// not activated yet.
func (s *UserService) SendActivationEmail(ctx context.Context, identifier string) error {
	user, err := s.findByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}

	if !user.PendingActivation() {
		return invalidArgument("user has no pending activation")
	}

	if s.mailer == nil || !s.mailer.Enabled() {
		return ErrEmailPipelineDisabled
	}

	return s.mailer.QueueActivation(ctx, user, EmailRegister)
}

// findByIdentifier resolves a single user by record id, name, or email.
func (s *UserService) findByIdentifier(ctx context.Context, identifier string) (*User, error) {
	if identifier == "" {
		return nil, invalidArgument("argument identifier is empty")
	}
	return s.findOne(ctx, store.Or(
		store.Eq("id", identifier),
		store.Eq("name", identifier),
		store.Eq("email", identifier),
	))
}

func (s *UserService) findOne(ctx context.Context, f store.Filter) (*User, error) {
	items, total, err := s.users.Search(ctx, f, store.Pagination{Limit: 1})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user lookup failed")
	}
	if total == 0 || len(items) == 0 {
		return nil, ErrUserNotFound
	}
	return items[0], nil
}

func (s *UserService) emit(ctx context.Context, event string, payload any) {
	if s.topic == nil {
		return
	}
	if err := s.topic.Emit(ctx, event, payload); err != nil {
		s.logger.Warn("failed to emit lifecycle event", "event", event, "error", err)
	}
}

// queueActivationEmail hands the user to the mailer when the pipeline is
// up, it is best effort and never fails the lifecycle operation.
func (s *UserService) queueActivationEmail(ctx context.Context, user *User, variant EmailVariant) {
	if s.mailer == nil || !s.mailer.Enabled() {
		return
	}
	if s.featureGate != nil {
		if err := requireFeatureGate(ctx, s.featureGate, FeatureEmailPipeline, ErrEmailPipelineDisabled); err != nil {
			s.logger.Debug("email pipeline gated off", "error", err)
			return
		}
	}
	if err := s.mailer.QueueActivation(ctx, user, variant); err != nil {
		s.logger.Warn("failed to queue activation email", "error", err, "user", user.Name)
	}
}
