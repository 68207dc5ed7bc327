package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Issuer struct {
	config Config
	now    func() time.Time
}

// Issue signs a new access and refresh token for the identity. The apps map
// is copied so the caller may keep mutating its own.
func (i *Issuer) Issue(identity Identity, apps map[string]string) (*TokenPair, error) {
	issuedAt := i.now().Truncate(time.Second)
	accessExp := issuedAt.Add(i.config.AccessLifetime)
	refreshExp := issuedAt.Add(i.config.RefreshLifetime)

	snapshot := make(map[string]string, len(apps))
	for app, role := range apps {
		snapshot[app] = role
	}

	access := AccessClaims{
		Email:   identity.Email,
		Name:    identity.Name,
		Picture: identity.Picture,
		Apps:    snapshot,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString(i.config.AccessSecret)
	if err != nil {
		return nil, err
	}

	refresh := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(i.config.RefreshSecret)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		IssuedAt:         issuedAt,
		ExpiresAt:        accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (i *Issuer) AccessLifetime() time.Duration {
	return i.config.AccessLifetime
}

type IssuerOption func(*Issuer)

// WithIssuerClock replaces the wall clock used for iat and exp.
func WithIssuerClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

func NewIssuer(config Config, opts ...IssuerOption) (*Issuer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	issuer := &Issuer{
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}
