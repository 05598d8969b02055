package identity

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// ErrUnableToFindSession is the error when our request has no bearer token
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT claims into a session
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims")

// Text codes surfaced to clients alongside categorized errors.
const (
	TextCodeEmailTaken           = "EMAIL_TAKEN"
	TextCodeWeakPassword         = "WEAK_PASSWORD"
	TextCodeResetTokenMalformed  = "RESET_TOKEN_MALFORMED"
	TextCodeResetTokenInvalid    = "RESET_TOKEN_INVALID"
	TextCodeEmailDeliveryFailed  = "EMAIL_DELIVERY_FAILED"
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeAccountInactive      = "ACCOUNT_INACTIVE"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenMalformed       = "TOKEN_MALFORMED"
	TextCodeTooManyLoginAttempts = "TOO_MANY_LOGIN_ATTEMPTS"
)

// ErrNoEmptyString is returned when a required credential input is empty
var ErrNoEmptyString = goerrors.New("value must not be an empty string", goerrors.CategoryValidation)

// ErrMismatchedHashAndPassword is the uniform bad-credentials error. It never
// reveals whether the identifier or the password was the failing factor.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountInactive rejects authentication for deactivated accounts
var ErrAccountInactive = goerrors.New("account is inactive", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeAccountInactive)

// ErrTooManyLoginAttempts enforces the login attempt cool down window
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTooManyLoginAttempts)

// ErrTokenExpired is returned for expired bearer tokens
var ErrTokenExpired = goerrors.New("authentication token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned for bearer tokens we cannot parse
var ErrTokenMalformed = goerrors.New("authentication token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrResetTokenMalformed is returned when a reset token cannot be decoded at
// all: wrong segment count, bad encoding, or an unparseable account id.
var ErrResetTokenMalformed = goerrors.New("malformed password reset token", goerrors.CategoryValidation).
	WithTextCode(TextCodeResetTokenMalformed)

// ErrResetTokenInvalid deliberately conflates every verification failure
// after decoding: unknown account, MAC mismatch (tampering or a password
// change since issuance), and expiry. Keeping one externally visible cause
// avoids leaking account state to the caller.
var ErrResetTokenInvalid = goerrors.New("invalid or expired password reset token", goerrors.CategoryValidation).
	WithTextCode(TextCodeResetTokenInvalid)

// ErrWeakPassword rejects replacement passwords below the minimum length
var ErrWeakPassword = goerrors.New("password must be at least 8 characters", goerrors.CategoryValidation).
	WithTextCode(TextCodeWeakPassword)

// IsResetTokenError checks for either reset token failure mode
func IsResetTokenError(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeResetTokenInvalid ||
			richErr.TextCode == TextCodeResetTokenMalformed
	}
	return false
}

// IsDuplicatedEmail checks for the duplicate registration error
func IsDuplicatedEmail(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeEmailTaken
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// FormatValidationErrorToMap flattens an ozzo validation error into a
// field -> message map suitable for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		for field, ferr := range fieldErrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

// ValidationFieldError builds a field-scoped validation error, keeping the
// offending field identifiable by the caller.
func ValidationFieldError(field, message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithMetadata(map[string]any{"field": field})
}
