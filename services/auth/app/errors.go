package app

import "errors"

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not match.
	// The message is shown to end users and must not enable account enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	ErrEmailAndPasswordRequired = errors.New("email and password required")
	ErrEmailAlreadyExists       = errors.New("email already exists")

	ErrRefreshTokenRequired = errors.New("refresh token required")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")

	ErrEmailRequired = errors.New("email required")
)
