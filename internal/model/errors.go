package model

import "errors"

var (
	// Input and uniqueness
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("account already exists")

	// Lookups
	ErrNotFound = errors.New("account not found")

	// Credentials
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnverified         = errors.New("email address not verified")

	// Tokens
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingToken  = errors.New("missing authorization token")
	ErrTokenNotFound = errors.New("token not found")

	// Outbound notification
	ErrDispatch = errors.New("notification dispatch failed")

	ErrRateLimited = errors.New("rate limited")
	ErrInternal    = errors.New("internal error")
)
