package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrConflict           = errors.New("auth: already exists")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidInput       = errors.New("auth: invalid input")

	// ErrInvalidToken indicates a token whose signature or claims failed
	// verification.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired indicates a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrWrongTokenType indicates an access token presented where a refresh
	// token was expected, or vice versa.
	ErrWrongTokenType = errors.New("auth: wrong token type")
)
