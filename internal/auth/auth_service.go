package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/khanghh/appsso/internal/access"
	"github.com/khanghh/appsso/internal/audit"
	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/internal/mail"
	"github.com/khanghh/appsso/internal/metrics"
	"github.com/khanghh/appsso/internal/oauth"
	"github.com/khanghh/appsso/internal/store"
	"github.com/khanghh/appsso/internal/token"
	"github.com/khanghh/appsso/internal/users"
	"github.com/khanghh/appsso/model"
)

type UserService interface {
	FindOrCreateFederated(ctx context.Context, identity users.FederatedIdentity) (*model.User, bool, error)
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
}

type PermissionResolver interface {
	Resolve(ctx context.Context, userID string) (*access.Permissions, error)
}

type TokenIssuer interface {
	Issue(identity token.Identity, apps map[string]string) (*token.TokenPair, error)
}

type TokenStore interface {
	Save(ctx context.Context, userID string, pair *token.TokenPair) error
	Revoke(ctx context.Context, userID string, reason string) error
}

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*token.AccessClaims, error)
	VerifyRefresh(ctx context.Context, raw string) (*token.RefreshClaims, error)
}

// Session is what a successful login or refresh hands back to the client.
type Session struct {
	User    *model.User
	Tokens  *token.TokenPair
	Apps    map[string]string
	Details []access.AppRole
	Created bool
}

type AuthService struct {
	userService UserService
	resolver    PermissionResolver
	issuer      TokenIssuer
	tokens      TokenStore
	verifier    TokenVerifier
	providers   map[string]oauth.OAuthProvider
	states      *stateStore
	mailSender  mail.MailSender
	siteName    string
}

// directoryErr keeps domain failures as they are and reports anything else
// coming out of the identity directory as an outage.
func directoryErr(err error) error {
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrConflict) ||
		errors.Is(err, common.ErrInvalidArg) || errors.Is(err, common.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
}

func (s *AuthService) provider(name string) (oauth.OAuthProvider, error) {
	p, ok := s.providers[name]
	if !ok {
		return nil, oauth.ErrUnsupportedProvider
	}
	return p, nil
}

// issue resolves the current permissions of user and makes a new pair the
// current one, superseding any earlier pair.
func (s *AuthService) issue(ctx context.Context, user *model.User) (*Session, error) {
	perms, err := s.resolver.Resolve(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	pair, err := s.issuer.Issue(token.Identity{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.Picture,
	}, perms.Apps)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Save(ctx, user.ID, pair); err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair, Apps: perms.Apps, Details: perms.Details}, nil
}

func (s *AuthService) sendWelcome(user *model.User) {
	if s.mailSender == nil {
		return
	}
	go func() {
		if err := mail.SendWelcome(s.mailSender, user.Email, user.Name, s.siteName); err != nil {
			slog.Warn("Failed to send welcome mail", "userID", user.ID, "error", err)
		}
	}()
}

func (s *AuthService) completeLogin(ctx context.Context, providerName string, info *oauth.OAuthUserInfo, client audit.ClientInfo) (*Session, error) {
	user, created, err := s.userService.FindOrCreateFederated(ctx, users.FederatedIdentity{
		Subject:       info.ID,
		Email:         info.Email,
		Name:          info.Name,
		Picture:       info.Picture,
		EmailVerified: info.EmailVerified,
	})
	if err != nil {
		metrics.Login(providerName, "error")
		return nil, directoryErr(err)
	}

	record := audit.LoginRecord{ClientInfo: client, UserID: user.ID, Email: user.Email, Provider: providerName}
	if !user.IsActive {
		metrics.Login(providerName, "inactive")
		record.Reason = "inactive"
		if err := audit.RecordLogin(ctx, record); err != nil {
			slog.Warn("Failed to record login", "userID", user.ID, "error", err)
		}
		return nil, ErrAccountInactive
	}

	session, err := s.issue(ctx, user)
	if err != nil {
		metrics.Login(providerName, "error")
		return nil, err
	}
	session.Created = created
	metrics.Login(providerName, "success")
	metrics.TokenIssued("login")

	record.Success = true
	if err := audit.RecordLogin(ctx, record); err != nil {
		slog.Warn("Failed to record login", "userID", user.ID, "error", err)
	}
	if created {
		s.sendWelcome(user)
	}
	return session, nil
}

// LoginWithIDToken signs in with an identity token the client obtained from
// the provider directly.
func (s *AuthService) LoginWithIDToken(ctx context.Context, providerName string, credential string, client audit.ClientInfo) (*Session, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	info, err := p.VerifyIDToken(ctx, credential)
	if err != nil {
		metrics.Login(providerName, "invalid_credential")
		return nil, err
	}
	return s.completeLogin(ctx, providerName, info, client)
}

// BeginOAuth returns the provider URL the browser is redirected to.
func (s *AuthService) BeginOAuth(ctx context.Context, providerName string) (string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}
	state, err := s.states.Create(ctx, providerName)
	if err != nil {
		return "", err
	}
	return p.GetAuthCodeURL(state), nil
}

// LoginWithAuthCode finishes the authorization code flow started by BeginOAuth.
func (s *AuthService) LoginWithAuthCode(ctx context.Context, providerName string, state string, code string, client audit.ClientInfo) (*Session, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	if err := s.states.Consume(ctx, providerName, state); err != nil {
		return nil, err
	}
	oauthToken, err := p.ExchangeToken(ctx, code)
	if err != nil {
		metrics.Login(providerName, "invalid_credential")
		return nil, err
	}
	info, err := p.GetUserInfo(ctx, oauthToken)
	if err != nil {
		return nil, err
	}
	return s.completeLogin(ctx, providerName, info, client)
}

func (s *AuthService) refresh(ctx context.Context, userID string, client audit.ClientInfo) (*Session, error) {
	user, err := s.userService.GetUserByID(ctx, userID)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", token.ErrRevoked)
	}
	if err != nil {
		return nil, directoryErr(err)
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	session, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	metrics.TokenIssued("refresh")
	if err := audit.RecordTokenRefresh(ctx, audit.SessionRecord{ClientInfo: client, UserID: user.ID}); err != nil {
		slog.Warn("Failed to record token refresh", "userID", user.ID, "error", err)
	}
	return session, nil
}

// Refresh reissues the pair for an already verified access token with
// freshly resolved permissions. This is how role changes reach a signed-in
// user; verification alone never recomputes them.
func (s *AuthService) Refresh(ctx context.Context, claims *token.AccessClaims, client audit.ClientInfo) (*Session, error) {
	return s.refresh(ctx, claims.UserID(), client)
}

func (s *AuthService) RefreshWithToken(ctx context.Context, rawRefreshToken string, client audit.ClientInfo) (*Session, error) {
	claims, err := s.verifier.VerifyRefresh(ctx, rawRefreshToken)
	if err != nil {
		return nil, err
	}
	return s.refresh(ctx, claims.UserID(), client)
}

func (s *AuthService) Logout(ctx context.Context, claims *token.AccessClaims, client audit.ClientInfo) error {
	if err := s.tokens.Revoke(ctx, claims.UserID(), model.RevokeReasonLogout); err != nil {
		return err
	}
	if err := audit.RecordLogout(ctx, audit.SessionRecord{ClientInfo: client, UserID: claims.UserID()}); err != nil {
		slog.Warn("Failed to record logout", "userID", claims.UserID(), "error", err)
	}
	return nil
}

// Verify validates raw for a downstream application. With an empty appCode
// any valid token is accepted.
func (s *AuthService) Verify(ctx context.Context, raw string, appCode string) (*token.AccessClaims, error) {
	claims, err := s.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	if appCode != "" && !access.HasAppRole(claims.Apps, appCode) {
		return nil, ErrNoAppAccess
	}
	return claims, nil
}

type Profile struct {
	ID      string            `json:"id"`
	Email   string            `json:"email"`
	Name    string            `json:"name"`
	Picture string            `json:"picture,omitempty"`
	Apps    map[string]string `json:"apps"`
}

// Me describes the caller from the token alone.
func (s *AuthService) Me(claims *token.AccessClaims) *Profile {
	return &Profile{
		ID:      claims.UserID(),
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
		Apps:    claims.Apps,
	}
}

type Option func(*AuthService)

func WithMailSender(sender mail.MailSender, siteName string) Option {
	return func(s *AuthService) {
		s.mailSender = sender
		s.siteName = siteName
	}
}

func NewAuthService(
	userService UserService,
	resolver PermissionResolver,
	issuer TokenIssuer,
	tokens TokenStore,
	verifier TokenVerifier,
	storage store.Storage,
	providers []oauth.OAuthProvider,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		userService: userService,
		resolver:    resolver,
		issuer:      issuer,
		tokens:      tokens,
		verifier:    verifier,
		providers:   make(map[string]oauth.OAuthProvider, len(providers)),
		states:      newStateStore(storage),
	}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
