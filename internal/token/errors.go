package token

import "errors"

var (
	ErrMalformed = errors.New("malformed token")
	ErrExpired   = errors.New("token expired")
	ErrRevoked   = errors.New("token revoked")
)

var (
	ErrMissingAccessSecret  = errors.New("missing access token signing secret")
	ErrMissingRefreshSecret = errors.New("missing refresh token signing secret")
	ErrSecretsNotDistinct   = errors.New("access and refresh signing secrets must differ")
	ErrInvalidLifetime      = errors.New("invalid token lifetime")
)
