package auth

import "errors"

var (
	ErrAuthDisabled       = errors.New("auth is disabled")
	ErrInvalidSubject     = errors.New("invalid token subject")
	ErrInvalidAccessToken = errors.New("invalid access token")
)
