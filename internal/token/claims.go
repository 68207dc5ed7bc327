package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the user data embedded in an access token.
type Identity struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// AccessClaims is the decoded access token. Downstream applications parse
// the same shape: sub, email, name, picture, apps, iat, exp.
type AccessClaims struct {
	Email   string            `json:"email"`
	Name    string            `json:"name"`
	Picture string            `json:"picture,omitempty"`
	Apps    map[string]string `json:"apps"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) UserID() string {
	return c.Subject
}

// RefreshClaims carries only the subject and its own expiry.
type RefreshClaims struct {
	jwt.RegisteredClaims
}

func (c *RefreshClaims) UserID() string {
	return c.Subject
}

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	IssuedAt         time.Time `json:"issuedAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
