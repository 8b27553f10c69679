package auth

import "errors"

// Sentinel errors for authentication and authorization.
var (
	// Authentication errors
	ErrTokenMalformed = errors.New("auth: token malformed")
	ErrTokenUnknown   = errors.New("auth: token unknown")
	ErrInvalidSecret  = errors.New("auth: invalid token secret")
	ErrTokenRevoked   = errors.New("auth: token revoked")
	ErrTokenExpired   = errors.New("auth: token expired")

	// Authorization errors
	ErrForbidden         = errors.New("auth: access denied")
	ErrAdminUnauthorized = errors.New("auth: admin token rejected")
)
