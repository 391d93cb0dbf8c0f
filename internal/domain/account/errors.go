package account

import "errors"

var (
	ErrNotFound       = errors.New("account not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrInvalidRole    = errors.New("invalid role")

	ErrUnverified      = errors.New("account not verified")
	ErrDisabled        = errors.New("account disabled")
	ErrLocked          = errors.New("account locked")
	ErrAlreadyVerified = errors.New("account already verified")
)
