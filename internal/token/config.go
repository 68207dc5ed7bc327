package token

import (
	"bytes"
	"fmt"
	"time"
)

// Config carries the signing material and lifetimes shared by the issuer,
// the verifier and the store. It is built once at startup.
type Config struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
}

func (c Config) Validate() error {
	if len(c.AccessSecret) == 0 {
		return ErrMissingAccessSecret
	}
	if len(c.RefreshSecret) == 0 {
		return ErrMissingRefreshSecret
	}
	if bytes.Equal(c.AccessSecret, c.RefreshSecret) {
		return ErrSecretsNotDistinct
	}
	if c.AccessLifetime <= 0 {
		return fmt.Errorf("%w: access lifetime %v", ErrInvalidLifetime, c.AccessLifetime)
	}
	if c.RefreshLifetime <= c.AccessLifetime {
		return fmt.Errorf("%w: refresh lifetime %v must exceed access lifetime %v", ErrInvalidLifetime, c.RefreshLifetime, c.AccessLifetime)
	}
	return nil
}
