package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/appsso/internal/access"
)

// RequireRole lets the request through when the caller holds one of roles
// in any application. Must run after Authenticate.
func RequireRole(roles ...string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		claims := Claims(ctx)
		if claims == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Authentication required")
		}
		if !access.HasAnyRole(claims.Apps, roles...) {
			return fiber.NewError(fiber.StatusForbidden, "Insufficient permissions")
		}
		return ctx.Next()
	}
}
