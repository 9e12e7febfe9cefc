package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// usernameChars is the allowed alphabet; repeated dots are rejected
// separately since RE2 has no lookahead.
var usernameChars = regexp.MustCompile(`^[a-z0-9_.{}?!*-]+$`)

func validUsername(name string, minLength, maxLength int) bool {
	if len(name) < minLength || len(name) > maxLength {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	return usernameChars.MatchString(name)
}

func validateCandidate(user *User, cfg Config) error {
	if user.Password == "" {
		return invalidArgument("argument password is empty")
	}
	if user.Email == "" {
		return invalidArgument("argument email is empty")
	}
	if user.Name == "" {
		return invalidArgument("argument name is empty")
	}

	if !validUsername(user.Name, cfg.MinUsernameLength, cfg.MaxUsernameLength) {
		return invalidArgument(fmt.Sprintf(
			"the user name is invalid - it should have a length between %d and %d and it can contain lowercase alphanumeric characters or any character of the following: .{}?!*-_",
			cfg.MinUsernameLength, cfg.MaxUsernameLength))
	}

	if user.FirstName == "" || user.LastName == "" {
		return invalidArgument("user registration requires both first and last name")
	}

	if err := validation.ValidateStruct(user,
		validation.Field(&user.Email, is.Email),
		validation.Field(&user.FirstName, validation.Length(1, 200)),
		validation.Field(&user.LastName, validation.Length(1, 200)),
	); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid user candidate").
			WithCode(goerrors.CodeBadRequest)
	}

	return nil
}

// normalizeTimezone falls back to the configured default zone when the
// candidate zone is absent or not in the tz database.
func normalizeTimezone(tz, fallback string) string {
	if tz == "" {
		return fallback
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fallback
	}
	return tz
}
