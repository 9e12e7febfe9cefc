package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Attribute is an id/value pair used both for scoping role grants and for
// ownership metadata.
type Attribute struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// RoleAssociation grants a user a role, optionally scoped by attributes.
type RoleAssociation struct {
	Role       string      `json:"role"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// Meta carries resource bookkeeping; Owner declares which organization/user
// owns the record as an ordered attribute list.
type Meta struct {
	Owner []Attribute `json:"owner,omitempty"`
}

// User is the identity record managed by UserService.
//
// The raw Password field is transport-only: it is hashed into PasswordHash
// during creation and never reaches the store.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID               uuid.UUID         `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Creator          string            `bun:"creator" json:"creator,omitempty"`
	Name             string            `bun:"name,notnull" json:"name,omitempty"`
	FirstName        string            `bun:"first_name" json:"first_name,omitempty"`
	LastName         string            `bun:"last_name" json:"last_name,omitempty"`
	Email            string            `bun:"email" json:"email,omitempty"`
	Active           bool              `bun:"active" json:"active"`
	ActivationCode   string            `bun:"activation_code" json:"activation_code,omitempty"`
	Password         string            `bun:"-" json:"password,omitempty"`
	PasswordHash     string            `bun:"password_hash" json:"password_hash,omitempty"`
	Guest            bool              `bun:"guest" json:"guest"`
	RoleAssociations []RoleAssociation `bun:"role_associations,type:jsonb" json:"role_associations,omitempty"`
	LocaleID         string            `bun:"locale_id" json:"locale_id,omitempty"`
	Timezone         string            `bun:"timezone" json:"timezone,omitempty"`
	CreatedAt        *time.Time        `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt        *time.Time        `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PendingActivation reports whether the user still has to redeem an
// activation code.
func (u *User) PendingActivation() bool {
	return u != nil && !u.Active && u.ActivationCode != ""
}

// Role is a named grantable role referenced by RoleAssociation.Role.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rl"`

	ID          uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name        string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description string     `bun:"description" json:"description,omitempty"`
	CreatedAt   *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt   *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AuthenticationLog is an owner-bearing resource persisted only through the
// authorization gate.
type AuthenticationLog struct {
	bun.BaseModel `bun:"table:authentication_logs,alias:alog"`

	ID        string     `bun:"id,pk" json:"id,omitempty"`
	UserID    string     `bun:"user_id" json:"user_id,omitempty"`
	Activity  string     `bun:"activity" json:"activity,omitempty"`
	IPAddress string     `bun:"ip_address" json:"ip_address,omitempty"`
	UserAgent string     `bun:"user_agent" json:"user_agent,omitempty"`
	Date      int64      `bun:"date" json:"date,omitempty"`
	Meta      *Meta      `bun:"meta,type:jsonb" json:"meta,omitempty"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureMeta guarantees the record carries a non-nil meta block.
func (l *AuthenticationLog) EnsureMeta() *Meta {
	if l.Meta == nil {
		l.Meta = &Meta{}
	}
	return l.Meta
}

func attributesEqual(a, b []Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
