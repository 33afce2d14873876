package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("token required")
	// ErrInvalidToken covers bad signatures, expiry and malformed tokens
	// alike; the underlying reason is only logged.
	ErrInvalidToken    = errors.New("invalid token")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("incorrect password")
)
