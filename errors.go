package users

import (
	goerrors "github.com/goliatone/go-errors"
)

// ErrAuthenticationFailed is the single generic failure returned for bad
// credentials, unknown accounts, and inactive accounts. The sub-cases are
// deliberately indistinguishable to the caller.
var ErrAuthenticationFailed = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("AUTH_FAILED")

// ErrTokenExpired is returned for tokens whose expiry is in the past.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("TOKEN_EXPIRED")

// ErrTokenMalformed covers every other token rejection: bad signature,
// wrong audience, altered payload, or garbage input. Validation fails closed.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode("TOKEN_MALFORMED")

// ErrEmailTaken is the conflict surfaced when a create or update collides
// with the unique email constraint. Distinct from auth and policy failures.
var ErrEmailTaken = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode("EMAIL_TAKEN")

// ErrUserNotFound is an internal lookup miss. Login paths must not leak it;
// they convert to ErrAuthenticationFailed.
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode("USER_NOT_FOUND")

// ErrUserAlreadyVerified rejects verification confirms for accounts whose
// verified flag is already set.
var ErrUserAlreadyVerified = goerrors.New("user already verified", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode("ALREADY_VERIFIED")

// TextCodePolicyViolation marks password policy rejections.
const TextCodePolicyViolation = "POLICY_VIOLATION"

// IsPolicyViolation reports whether err is a password policy rejection.
func IsPolicyViolation(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodePolicyViolation
}

// IsConflict reports whether err is a persistence uniqueness conflict.
func IsConflict(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryConflict
}

// IsAuthFailure reports whether err belongs to the generic auth failure
// class, token rejections included.
func IsAuthFailure(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryAuth
}
