package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidUsername(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"simple", "ada.lovelace", true},
		{"digits and specials", "user_42{!}?*-", true},
		{"too short", "ada", false},
		{"too long", "this.name.is.way.too.long.for.sure", false},
		{"uppercase", "Ada.Lovelace", false},
		{"consecutive dots", "ada..lovelace", false},
		{"whitespace", "ada lovelace", false},
		{"at sign", "ada@lovelace", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validUsername(tt.in, 8, 20))
		})
	}
}

func TestValidateCandidateEmail(t *testing.T) {
	cfg := DefaultConfig()

	user := &User{
		Name:      "ada.lovelace",
		Email:     "not-an-email",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Password:  "securePassword123!",
	}

	err := validateCandidate(user, cfg)
	assert.Error(t, err)

	user.Email = "ada@example.com"
	assert.NoError(t, validateCandidate(user, cfg))
}

func TestNormalizeTimezone(t *testing.T) {
	assert.Equal(t, "Europe/Berlin", normalizeTimezone("", "Europe/Berlin"))
	assert.Equal(t, "Europe/Berlin", normalizeTimezone("Not/AZone", "Europe/Berlin"))
	assert.Equal(t, "America/New_York", normalizeTimezone("America/New_York", "Europe/Berlin"))
}

func TestProtectedFieldSet(t *testing.T) {
	assert.Equal(t, "", protectedFieldSet(&User{FirstName: "Ada", LocaleID: "en-GB"}))
	assert.Equal(t, "name", protectedFieldSet(&User{Name: "x"}))
	assert.Equal(t, "guest", protectedFieldSet(&User{Guest: true}))
}
