package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/internal/metrics"
)

// CurrencyChecker decides whether a structurally valid token is still the
// one on record for its user.
type CurrencyChecker interface {
	IsCurrent(ctx context.Context, userID string, accessToken string) (bool, error)
	IsCurrentRefresh(ctx context.Context, userID string, refreshToken string) (bool, error)
}

type Verifier struct {
	config Config
	gate   CurrencyChecker
	now    func() time.Time
}

func (v *Verifier) parse(raw string, claims jwt.Claims, secret []byte) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	case errors.Is(err, common.ErrUnavailable):
		return "unavailable"
	default:
		return "malformed"
	}
}

// Verify checks signature and expiry before consulting the store, so
// malformed and expired tokens never cause store I/O. The returned claims are
// exactly what was signed at issuance.
func (v *Verifier) Verify(ctx context.Context, raw string) (claims *AccessClaims, err error) {
	defer func() { metrics.TokenVerified("access", resultLabel(err)) }()

	claims = &AccessClaims{}
	if err := v.parse(raw, claims, v.config.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	current, err := v.gate.IsCurrent(ctx, claims.Subject, raw)
	if err != nil {
		return nil, err
	}
	if !current {
		return nil, ErrRevoked
	}
	if claims.Apps == nil {
		claims.Apps = map[string]string{}
	}
	return claims, nil
}

func (v *Verifier) VerifyRefresh(ctx context.Context, raw string) (claims *RefreshClaims, err error) {
	defer func() { metrics.TokenVerified("refresh", resultLabel(err)) }()

	claims = &RefreshClaims{}
	if err := v.parse(raw, claims, v.config.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}
	current, err := v.gate.IsCurrentRefresh(ctx, claims.Subject, raw)
	if err != nil {
		return nil, err
	}
	if !current {
		return nil, ErrRevoked
	}
	return claims, nil
}

type VerifierOption func(*Verifier)

func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(config Config, gate CurrencyChecker, opts ...VerifierOption) (*Verifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	verifier := &Verifier{
		config: config,
		gate:   gate,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(verifier)
	}
	return verifier, nil
}
