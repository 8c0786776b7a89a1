package authcore

import "errors"

var (
	// ErrDuplicateUser indicates a registration attempt with an email that is
	// already taken.
	ErrDuplicateUser = errors.New("auth.duplicate_user")
	// ErrInvalidCredentials indicates a failed login. Unknown email and wrong
	// password produce this same value so callers cannot probe which emails
	// exist.
	ErrInvalidCredentials = errors.New("auth.invalid_credentials")
	// ErrInvalidToken indicates a rejected token. Malformed, expired,
	// wrong-kind, bad-signature, and already-consumed tokens all collapse
	// into this single value.
	ErrInvalidToken = errors.New("auth.invalid_token")
	// ErrPasswordTooLong indicates a registration password over the 72-byte
	// bcrypt input limit. A client error, not a server fault.
	ErrPasswordTooLong = errors.New("auth.password_too_long")

	// ErrUserNotFound is returned by user stores when no user matches.
	ErrUserNotFound = errors.New("user_store.not_found")
	// ErrRefreshRecordNotFound is returned by refresh token stores when no
	// record matches the (user, hash) key.
	ErrRefreshRecordNotFound = errors.New("refresh_store.not_found")
)
