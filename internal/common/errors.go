// Package common defines shared constants and sentinel errors used across
// the tokenauth server, its transports and the admin CLI. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")

	// Authentication and authorization outcomes. These are expected results,
	// not faults: transports map each one to its own status.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAccountDisabled    = errors.New("account is inactive or suspended")
	ErrForbidden          = errors.New("forbidden")

	// ErrSigning marks a token that could not be signed. It indicates a
	// broken configuration rather than a bad request.
	ErrSigning = errors.New("token signing failed")
)
