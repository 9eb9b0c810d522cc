package auth

import "errors"

var (
	// ErrInvalidToken indicates the token failed validation. Every failure
	// mode (empty, malformed, bad signature, expired, missing identity) maps
	// to it.
	ErrInvalidToken = errors.New("invalid token")

	errMissingSecret = errors.New("auth secret is not configured")
)
