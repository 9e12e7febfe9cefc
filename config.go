package identity

// URNConfig names the attribute identifiers the policy decision point uses to
// express ownership.
type URNConfig struct {
	OwnerIndicatoryEntity string
	OwnerInstance         string
	Organization          string
	User                  string
}

// Config is injected at service construction; business methods read fields,
// never a global registry.
type Config struct {
	// UserActivationRequired decides whether non-guest users start inactive
	// with a fresh activation code.
	UserActivationRequired bool

	// UniqueEmailConstraint blocks creation when the candidate email is
	// already taken. Name uniqueness is always enforced.
	UniqueEmailConstraint bool

	MinUsernameLength int
	MaxUsernameLength int

	// ActivationLink is the URL prefix embedded in activation emails;
	// "<name>/<code>" is appended.
	ActivationLink string

	// DefaultTimezone is assigned when a candidate has no recognizable zone.
	DefaultTimezone string

	// HashIDs derives user ids deterministically from the email address
	// instead of random UUIDs. Leave off when the unique email constraint is
	// disabled.
	HashIDs bool

	URNs URNConfig
}

// DefaultConfig mirrors the production defaults.
func DefaultConfig() Config {
	return Config{
		UserActivationRequired: true,
		UniqueEmailConstraint:  true,
		MinUsernameLength:      8,
		MaxUsernameLength:      20,
		DefaultTimezone:        "Europe/Berlin",
		URNs: URNConfig{
			OwnerIndicatoryEntity: "urn:identity:acs:names:ownerIndicatoryEntity",
			OwnerInstance:         "urn:identity:acs:names:ownerInstance",
			Organization:          "urn:identity:acs:model:organization.Organization",
			User:                  "urn:identity:acs:model:user.User",
		},
	}
}

func (c *Config) normalize() {
	if c.MinUsernameLength <= 0 {
		c.MinUsernameLength = 8
	}
	if c.MaxUsernameLength <= 0 {
		c.MaxUsernameLength = 20
	}
	if c.DefaultTimezone == "" {
		c.DefaultTimezone = "Europe/Berlin"
	}
	if c.URNs == (URNConfig{}) {
		c.URNs = DefaultConfig().URNs
	}
}
