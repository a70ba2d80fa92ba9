// Package errs defines the domain sentinel errors handlers map to HTTP codes.
package errs

import "errors"

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrSessionNotFound   = errors.New("session not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidPassword   = errors.New("invalid session password")
	ErrSessionInactive   = errors.New("session is not active")
	ErrSessionFull       = errors.New("session has maximum participants")
	ErrAlreadyJoined     = errors.New("already an active participant")
	ErrEmailTaken        = errors.New("email already registered")
	ErrBadCredentials    = errors.New("invalid email or password")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)
