package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/khanghh/appsso/internal/common"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidCredential   = errors.New("invalid federated credential")
	ErrUnsupportedProvider = fmt.Errorf("oauth provider %w", common.ErrNotFound)
)

type OAuthToken = oauth2.Token

type OAuthUserInfo struct {
	ID            string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

type OAuthProvider interface {
	Name() string
	GetAuthCodeURL(state string) string
	ExchangeToken(ctx context.Context, code string) (*OAuthToken, error)
	GetUserInfo(ctx context.Context, token *OAuthToken) (*OAuthUserInfo, error)
	// VerifyIDToken checks a provider-signed identity token presented by a
	// client and returns the identity it asserts.
	VerifyIDToken(ctx context.Context, rawIDToken string) (*OAuthUserInfo, error)
}
