package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/memory/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/appsso/internal/access"
	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/internal/oauth"
	"github.com/khanghh/appsso/internal/token"
	"github.com/khanghh/appsso/internal/users"
	"github.com/khanghh/appsso/params"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func doRequest(t *testing.T, app *fiber.App, method, path, bearer string) (int, errorBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	var body errorBody
	_ = json.Unmarshal(data, &body)
	return resp.StatusCode, body
}

func TestErrorHandlerStatusMapping(t *testing.T) {
	tests := []struct {
		err     error
		code    int
		message string
	}{
		{fmt.Errorf("%w: bad signature", token.ErrMalformed), 401, "Invalid token"},
		{token.ErrExpired, 401, "Token expired"},
		{fmt.Errorf("%w: user no longer exists", token.ErrRevoked), 401, "Token revoked"},
		{oauth.ErrInvalidCredential, 401, "Invalid credential"},
		{fmt.Errorf("%w: account is inactive", common.ErrForbidden), 403, "Account is inactive"},
		{users.ErrEmailTaken, 409, "Email already registered"},
		{users.ErrUserNotFound, 404, "User not found"},
		{fmt.Errorf("%w: name is required", common.ErrInvalidArg), 400, "Name is required"},
		{users.ErrMissingEmail, 400, "Identity provider returned no email"},
		{fmt.Errorf("%w: %w", common.ErrUnavailable, errors.New("dial tcp: refused")), 503, "Service temporarily unavailable"},
		{fiber.NewError(fiber.StatusTeapot, "teapot"), fiber.StatusTeapot, "teapot"},
		{errors.New("boom"), 500, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
			app.Get("/", func(ctx *fiber.Ctx) error { return tt.err })
			code, body := doRequest(t, app, fiber.MethodGet, "/", "")
			if code != tt.code {
				t.Fatalf("expected status %d, got %d", tt.code, code)
			}
			if body.Success || body.Error != tt.message {
				t.Fatalf("unexpected body %+v", body)
			}
		})
	}
}

type fakeVerifier map[string]*token.AccessClaims

func (f fakeVerifier) Verify(ctx context.Context, raw string) (*token.AccessClaims, error) {
	if raw == "revoked" {
		return nil, token.ErrRevoked
	}
	claims, ok := f[raw]
	if !ok {
		return nil, token.ErrMalformed
	}
	return claims, nil
}

func newClaims(userID string, apps map[string]string) *token.AccessClaims {
	return &token.AccessClaims{
		Apps:             apps,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
}

func newProtectedApp() *fiber.App {
	verifier := fakeVerifier{
		"admin":  newClaims("u1", map[string]string{"crm": access.RoleAdmin}),
		"viewer": newClaims("u2", map[string]string{"crm": access.RoleViewer}),
	}
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	authn := Authenticate(verifier)
	app.Get("/me", authn, func(ctx *fiber.Ctx) error {
		return ctx.SendString(Claims(ctx).UserID())
	})
	app.Get("/admin", authn, RequireRole(access.RoleAdmin), func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/unguarded", RequireRole(access.RoleAdmin), func(ctx *fiber.Ctx) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAuthenticate(t *testing.T) {
	app := newProtectedApp()
	if code, body := doRequest(t, app, fiber.MethodGet, "/me", ""); code != 401 || body.Error != "No token provided" {
		t.Fatalf("missing token: %d %+v", code, body)
	}
	if code, body := doRequest(t, app, fiber.MethodGet, "/me", "garbage"); code != 401 || body.Error != "Invalid token" {
		t.Fatalf("garbage token: %d %+v", code, body)
	}
	if code, body := doRequest(t, app, fiber.MethodGet, "/me", "revoked"); code != 401 || body.Error != "Token revoked" {
		t.Fatalf("revoked token: %d %+v", code, body)
	}
	if code, _ := doRequest(t, app, fiber.MethodGet, "/me", "viewer"); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireRole(t *testing.T) {
	app := newProtectedApp()
	if code, _ := doRequest(t, app, fiber.MethodGet, "/admin", "admin"); code != fiber.StatusNoContent {
		t.Fatalf("admin should pass, got %d", code)
	}
	if code, body := doRequest(t, app, fiber.MethodGet, "/admin", "viewer"); code != 403 || body.Error != "Insufficient permissions" {
		t.Fatalf("viewer should be refused: %d %+v", code, body)
	}
	if code, _ := doRequest(t, app, fiber.MethodGet, "/unguarded", ""); code != 401 {
		t.Fatalf("missing claims should be 401, got %d", code)
	}
}

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.SendString(BearerToken(ctx))
	})
	for header, want := range map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"Bearer":      "",
	} {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		req.Header.Set(fiber.HeaderAuthorization, header)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if string(data) != want {
			t.Fatalf("header %q: expected %q, got %q", header, want, data)
		}
	}
}

func TestRateLimit(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(RateLimit(RateLimitConfig{Max: 2, Expiration: time.Minute}))
	app.Get("/", func(ctx *fiber.Ctx) error { return ctx.SendStatus(fiber.StatusNoContent) })

	for i := 0; i < 2; i++ {
		if code, _ := doRequest(t, app, fiber.MethodGet, "/", ""); code != fiber.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, code)
		}
	}
	code, body := doRequest(t, app, fiber.MethodGet, "/", "")
	if code != fiber.StatusTooManyRequests || body.Success {
		t.Fatalf("expected 429, got %d %+v", code, body)
	}
}

func TestRateLimitersKeepSeparateCounters(t *testing.T) {
	storage := memory.New()
	defer storage.Close()

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	authLimiter := RateLimit(RateLimitConfig{
		Max:        params.AuthRateLimitMax,
		Expiration: time.Minute,
		Storage:    storage,
		Prefix:     params.AuthRateLimitKeyPrefix,
	})
	apiRouter := app.Group("/api", RateLimit(RateLimitConfig{
		Max:        params.APIRateLimitMax,
		Expiration: time.Minute,
		Storage:    storage,
		Prefix:     params.APIRateLimitKeyPrefix,
	}))
	ok := func(ctx *fiber.Ctx) error { return ctx.SendStatus(fiber.StatusNoContent) }
	apiRouter.Post("/auth/google", authLimiter, ok)
	apiRouter.Get("/apps", ok)

	for i := 0; i < params.AuthRateLimitMax+2; i++ {
		if code, _ := doRequest(t, app, fiber.MethodGet, "/api/apps", ""); code != fiber.StatusNoContent {
			t.Fatalf("GET /api/apps %d: expected 204, got %d", i, code)
		}
	}
	if code, body := doRequest(t, app, fiber.MethodPost, "/api/auth/google", ""); code != fiber.StatusNoContent {
		t.Fatalf("login after api traffic: expected 204, got %d %+v", code, body)
	}

	// the login budget itself is still enforced
	for i := 1; i < params.AuthRateLimitMax; i++ {
		doRequest(t, app, fiber.MethodPost, "/api/auth/google", "")
	}
	if code, _ := doRequest(t, app, fiber.MethodPost, "/api/auth/google", ""); code != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 once the login budget is spent, got %d", code)
	}
}
