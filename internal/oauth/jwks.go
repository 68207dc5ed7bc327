package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/params"
	"golang.org/x/time/rate"
)

// signingKeys resolves the provider's published signing keys. Keys are
// refreshed in the background every GoogleCertsMaxAge, and on an unknown key
// id at most once per GoogleCertsRefreshInterval.
type signingKeys struct {
	jwks keyfunc.Keyfunc
}

func (k *signingKeys) Keyfunc(ctx context.Context) jwt.Keyfunc {
	lookup := k.jwks.KeyfuncCtx(ctx)
	return func(token *jwt.Token) (any, error) {
		key, err := lookup(token)
		if err == nil {
			return key, nil
		}
		// an empty set means the certs endpoint never answered
		if all, readErr := k.jwks.Storage().KeyReadAll(ctx); readErr != nil || len(all) == 0 {
			return nil, fmt.Errorf("%w: no signing keys loaded: %w", common.ErrUnavailable, err)
		}
		return nil, err
	}
}

func newSigningKeys(ctx context.Context, certsURL string, client *http.Client) (*signingKeys, error) {
	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{certsURL}, keyfunc.Override{
		Client:            client,
		HTTPTimeout:       params.StoreTimeout,
		RefreshInterval:   params.GoogleCertsMaxAge,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(params.GoogleCertsRefreshInterval), 1),
		RateLimitWaitMax:  params.GoogleCertsRateLimitWaitMax,
		RefreshErrorHandlerFunc: func(u string) func(ctx context.Context, err error) {
			return func(ctx context.Context, err error) {
				slog.WarnContext(ctx, "Failed to refresh signing keys", "url", u, "error", err)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return &signingKeys{jwks: jwks}, nil
}
