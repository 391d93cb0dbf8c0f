package otp

import "errors"

var (
	ErrNotRequested = errors.New("no otp requested")
	ErrMismatch     = errors.New("invalid otp")
	ErrExpired      = errors.New("otp expired")
)
