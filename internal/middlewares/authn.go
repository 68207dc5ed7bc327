package middlewares

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/appsso/internal/token"
)

const claimsContextKey = "claims"

type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*token.AccessClaims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(ctx *fiber.Ctx) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Authenticate verifies the bearer token, including the revocation check,
// and stores the claims for the rest of the chain.
func Authenticate(verifier TokenVerifier) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		raw := BearerToken(ctx)
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "No token provided")
		}
		claims, err := verifier.Verify(ctx.Context(), raw)
		if err != nil {
			return err
		}
		ctx.Locals(claimsContextKey, claims)
		return ctx.Next()
	}
}

// Claims returns the claims stored by Authenticate, or nil.
func Claims(ctx *fiber.Ctx) *token.AccessClaims {
	claims, _ := ctx.Locals(claimsContextKey).(*token.AccessClaims)
	return claims
}
