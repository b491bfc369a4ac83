package authkit

import "errors"

var (
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("auth.duplicate_email")
	// ErrInvalidCredentials is returned for any login failure. It never
	// distinguishes an unknown email from a wrong password.
	ErrInvalidCredentials = errors.New("auth.invalid_credentials")
	// ErrInvalidToken indicates a token failed signature or expiry checks.
	ErrInvalidToken = errors.New("auth.invalid_token")
	// ErrInvalidRefreshToken indicates the presented refresh token does not
	// match the stored hash for its subject, or the subject has no session.
	ErrInvalidRefreshToken = errors.New("auth.invalid_refresh_token")
	// ErrMissingEmail indicates a federated profile arrived without an email.
	ErrMissingEmail = errors.New("auth.missing_email")
	// ErrInsufficientPrivilege indicates a role check failed.
	ErrInsufficientPrivilege = errors.New("auth.insufficient_privilege")
	// ErrUserNotFound indicates no user matched the lookup key.
	ErrUserNotFound = errors.New("auth.user_not_found")
)
