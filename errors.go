package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeUserNotFound       = "USER_NOT_FOUND"
	textCodeRoleNotFound       = "ROLE_NOT_FOUND"
	textCodeUserExists         = "USER_ALREADY_EXISTS"
	textCodeRoleExists         = "ROLE_ALREADY_EXISTS"
	textCodeActivationConsumed = "ACTIVATION_CODE_CONSUMED"
	textCodeWrongActivation    = "WRONG_ACTIVATION_CODE"
	textCodePasswordMismatch   = "PASSWORD_MISMATCH"
	textCodeProtectedField     = "PROTECTED_FIELD_UPDATE"
)

// ErrUserNotFound is returned when an identifier-based lookup matches no user.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeUserNotFound)

// ErrRoleNotFound is returned when a role lookup matches nothing.
var ErrRoleNotFound = goerrors.New("role not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeRoleNotFound)

// ErrUserExists is returned when a candidate collides on name or email.
var ErrUserExists = goerrors.New("user does already exist", goerrors.CategoryConflict).
	WithTextCode(textCodeUserExists).
	WithCode(goerrors.CodeConflict)

// ErrRoleExists is returned when a role name is already taken.
var ErrRoleExists = goerrors.New("role does already exist", goerrors.CategoryConflict).
	WithTextCode(textCodeRoleExists).
	WithCode(goerrors.CodeConflict)

// ErrActivationConsumed is returned for activation replays: the user is
// already active so the code has been spent.
var ErrActivationConsumed = goerrors.New(
	"activation request to an active user which still has the activation code",
	goerrors.CategoryConflict).
	WithTextCode(textCodeActivationConsumed).
	WithCode(goerrors.CodeConflict)

// ErrWrongActivationCode is returned when the supplied code does not match
// the stored one.
var ErrWrongActivationCode = goerrors.New("wrong activation code", goerrors.CategoryConflict).
	WithTextCode(textCodeWrongActivation).
	WithCode(goerrors.CodeConflict)

// ErrPasswordMismatch is returned when a password does not verify against the
// stored hash.
var ErrPasswordMismatch = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(textCodePasswordMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrMissingCredentials is returned by Login when neither name nor email is
// provided.
var ErrMissingCredentials = goerrors.New("missing credentials", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithCode(goerrors.CodeBadRequest)

// ErrSignupDisabled is returned when the signup feature gate is off.
var ErrSignupDisabled = goerrors.New("user registration is disabled", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden)

// ErrEmailPipelineDisabled is returned when the notification pipeline gate is
// off or template loading failed at startup.
var ErrEmailPipelineDisabled = goerrors.New("email pipeline is disabled", goerrors.CategoryOperation).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned by token validation when the JWT has expired.
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode("TOKEN_EXPIRED").
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed or validated.
var ErrTokenMalformed = goerrors.New("token malformed", goerrors.CategoryAuth).
	WithTextCode("TOKEN_MALFORMED").
	WithCode(goerrors.CodeUnauthorized)

func invalidArgument(msg string) error {
	return goerrors.New(msg, goerrors.CategoryBadInput).WithCode(goerrors.CodeBadRequest)
}

// IsNotFound reports whether err carries the not-found category, regardless
// of which layer produced it.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.IsNotFound(err)
}
