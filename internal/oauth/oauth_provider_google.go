package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/appsso/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleCertsURL    = "https://www.googleapis.com/oauth2/v3/certs"
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

type googleIDClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

type GoogleOAuthProvider struct {
	oauth2.Config
	keys        *signingKeys
	httpClient  *http.Client
	userInfoURL string
	certsURL    string
}

func (p *GoogleOAuthProvider) Name() string {
	return "google"
}

func (p *GoogleOAuthProvider) GetAuthCodeURL(state string) string {
	return p.AuthCodeURL(state)
}

func (p *GoogleOAuthProvider) ExchangeToken(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	return token, nil
}

func (p *GoogleOAuthProvider) GetUserInfo(ctx context.Context, token *oauth2.Token) (*OAuthUserInfo, error) {
	var googleUser struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	resp, err := p.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo status %d", ErrInvalidCredential, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return nil, err
	}
	return &OAuthUserInfo{
		ID:            googleUser.ID,
		Email:         googleUser.Email,
		Name:          googleUser.Name,
		Picture:       googleUser.Picture,
		EmailVerified: googleUser.VerifiedEmail,
	}, nil
}

// VerifyIDToken validates a Google ID token: RS256 signature against the
// published keys, audience equal to the client id, and a Google issuer.
func (p *GoogleOAuthProvider) VerifyIDToken(ctx context.Context, rawIDToken string) (*OAuthUserInfo, error) {
	claims := &googleIDClaims{}
	_, err := jwt.ParseWithClaims(rawIDToken, claims, p.keys.Keyfunc(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(p.ClientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !validIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidCredential, claims.Issuer)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrInvalidCredential)
	}
	return &OAuthUserInfo{
		ID:            claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func validIssuer(iss string) bool {
	for _, known := range googleIssuers {
		if iss == known {
			return true
		}
	}
	return false
}

type GoogleOption func(*GoogleOAuthProvider)

func WithHTTPClient(client *http.Client) GoogleOption {
	return func(p *GoogleOAuthProvider) {
		p.httpClient = client
	}
}

// WithScopes replaces the default openid, email and profile scopes.
func WithScopes(scopes ...string) GoogleOption {
	return func(p *GoogleOAuthProvider) {
		if len(scopes) > 0 {
			p.Scopes = scopes
		}
	}
}

// WithEndpoints overrides the Google URLs, for tests.
func WithEndpoints(endpoint oauth2.Endpoint, userInfoURL string, certsURL string) GoogleOption {
	return func(p *GoogleOAuthProvider) {
		p.Endpoint = endpoint
		p.userInfoURL = userInfoURL
		p.certsURL = certsURL
	}
}

// NewGoogleOAuthProvider loads Google's signing keys and keeps them fresh
// until ctx is done.
func NewGoogleOAuthProvider(ctx context.Context, callbackURL string, clientID string, clientSecret string, opts ...GoogleOption) (*GoogleOAuthProvider, error) {
	p := &GoogleOAuthProvider{
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		httpClient:  http.DefaultClient,
		userInfoURL: googleUserInfoURL,
		certsURL:    googleCertsURL,
	}
	for _, opt := range opts {
		opt(p)
	}
	keys, err := newSigningKeys(ctx, p.certsURL, p.httpClient)
	if err != nil {
		return nil, err
	}
	p.keys = keys
	return p, nil
}
