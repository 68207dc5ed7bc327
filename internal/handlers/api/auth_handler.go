package api

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/appsso/internal/access"
	"github.com/khanghh/appsso/internal/audit"
	"github.com/khanghh/appsso/internal/auth"
	"github.com/khanghh/appsso/internal/middlewares"
	"github.com/khanghh/appsso/internal/token"
)

type AuthService interface {
	LoginWithIDToken(ctx context.Context, provider string, credential string, client audit.ClientInfo) (*auth.Session, error)
	BeginOAuth(ctx context.Context, provider string) (string, error)
	LoginWithAuthCode(ctx context.Context, provider string, state string, code string, client audit.ClientInfo) (*auth.Session, error)
	Refresh(ctx context.Context, claims *token.AccessClaims, client audit.ClientInfo) (*auth.Session, error)
	RefreshWithToken(ctx context.Context, rawRefreshToken string, client audit.ClientInfo) (*auth.Session, error)
	Logout(ctx context.Context, claims *token.AccessClaims, client audit.ClientInfo) error
	Verify(ctx context.Context, raw string, appCode string) (*token.AccessClaims, error)
	Me(claims *token.AccessClaims) *auth.Profile
}

type AuthHandler struct {
	authService AuthService
	frontendURL string
}

type loginRequest struct {
	Credential string `json:"credential"`
	Token      string `json:"token"`
}

type verifyRequest struct {
	Token   string `json:"token"`
	AppCode string `json:"app_code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func newSessionResponse(session *auth.Session, withUser bool) sessionResponse {
	details := session.Details
	if details == nil {
		details = []access.AppRole{}
	}
	resp := sessionResponse{
		AccessToken:      session.Tokens.AccessToken,
		RefreshToken:     session.Tokens.RefreshToken,
		ExpiresAt:        session.Tokens.ExpiresAt,
		RefreshExpiresAt: session.Tokens.RefreshExpiresAt,
		Apps:             details,
		Permissions:      session.Apps,
	}
	if withUser {
		resp.User = &userInfo{
			ID:      session.User.ID,
			Email:   session.User.Email,
			Name:    session.User.Name,
			Picture: session.User.Picture,
			Apps:    session.Apps,
		}
	}
	return resp
}

// PostGoogleLogin signs in with a Google ID token obtained by the client.
func (h *AuthHandler) PostGoogleLogin(ctx *fiber.Ctx) error {
	var req loginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest("Invalid request body")
	}
	credential := req.Credential
	if credential == "" {
		credential = req.Token
	}
	if credential == "" {
		return badRequest("Google credential is required")
	}

	session, err := h.authService.LoginWithIDToken(ctx.Context(), "google", credential, clientInfo(ctx))
	if err != nil {
		return err
	}
	slog.Info("User logged in", "userID", session.User.ID, "email", session.User.Email)
	return ctx.JSON(NewDataResponse(newSessionResponse(session, true)))
}

// GetOAuthLogin starts the authorization code flow with the named provider.
func (h *AuthHandler) GetOAuthLogin(ctx *fiber.Ctx) error {
	authURL, err := h.authService.BeginOAuth(ctx.Context(), ctx.Params("provider"))
	if err != nil {
		return err
	}
	return ctx.Redirect(authURL)
}

// GetOAuthCallback completes the authorization code flow. With a frontend
// configured the tokens are handed over in the URL fragment, otherwise they
// are returned as JSON.
func (h *AuthHandler) GetOAuthCallback(ctx *fiber.Ctx) error {
	if errCode := ctx.Query("error"); errCode != "" {
		return badRequest("Authorization failed: " + errCode)
	}
	state, code := ctx.Query("state"), ctx.Query("code")
	if state == "" || code == "" {
		return badRequest("Missing state or code")
	}

	session, err := h.authService.LoginWithAuthCode(ctx.Context(), ctx.Params("provider"), state, code, clientInfo(ctx))
	if err != nil {
		return err
	}
	slog.Info("User logged in", "userID", session.User.ID, "email", session.User.Email)
	if h.frontendURL == "" {
		return ctx.JSON(NewDataResponse(newSessionResponse(session, true)))
	}
	fragment := url.Values{}
	fragment.Set("accessToken", session.Tokens.AccessToken)
	fragment.Set("refreshToken", session.Tokens.RefreshToken)
	return ctx.Redirect(strings.TrimSuffix(h.frontendURL, "/") + "/auth/callback#" + fragment.Encode())
}

// PostVerify lets downstream applications check a token, optionally for a
// specific application.
func (h *AuthHandler) PostVerify(ctx *fiber.Ctx) error {
	var req verifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if req.Token == "" {
		return badRequest("Token is required")
	}

	claims, err := h.authService.Verify(ctx.Context(), req.Token, req.AppCode)
	if err != nil {
		return err
	}
	resp := verifyResponse{
		User: userInfo{
			ID:      claims.UserID(),
			Email:   claims.Email,
			Name:    claims.Name,
			Picture: claims.Picture,
		},
		Apps: claims.Apps,
	}
	if req.AppCode != "" {
		role := claims.Apps[req.AppCode]
		resp.Role = &role
	}
	return ctx.JSON(NewDataResponse(resp))
}

func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	claims := middlewares.Claims(ctx)
	if err := h.authService.Logout(ctx.Context(), claims, clientInfo(ctx)); err != nil {
		return err
	}
	slog.Info("User logged out", "userID", claims.UserID(), "email", claims.Email)
	return ctx.JSON(NewMessageResponse("Logged out successfully"))
}

func (h *AuthHandler) GetMe(ctx *fiber.Ctx) error {
	profile := h.authService.Me(middlewares.Claims(ctx))
	return ctx.JSON(NewDataResponse(fiber.Map{
		"user": userInfo{
			ID:      profile.ID,
			Email:   profile.Email,
			Name:    profile.Name,
			Picture: profile.Picture,
		},
		"apps": profile.Apps,
	}))
}

// PostRefreshToken reissues the caller's pair with the permissions currently
// in the directory.
func (h *AuthHandler) PostRefreshToken(ctx *fiber.Ctx) error {
	session, err := h.authService.Refresh(ctx.Context(), middlewares.Claims(ctx), clientInfo(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(newSessionResponse(session, false)))
}

// PostRefresh is the refresh token grant, usable once the access token has
// expired.
func (h *AuthHandler) PostRefresh(ctx *fiber.Ctx) error {
	var req refreshRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest("Refresh token is required")
	}

	session, err := h.authService.RefreshWithToken(ctx.Context(), req.RefreshToken, clientInfo(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(newSessionResponse(session, true)))
}

func NewAuthHandler(authService AuthService, frontendURL string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		frontendURL: frontendURL,
	}
}
