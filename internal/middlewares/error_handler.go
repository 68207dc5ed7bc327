package middlewares

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/internal/oauth"
	"github.com/khanghh/appsso/internal/token"
)

type errorClass struct {
	target  error
	code    int
	message string // empty means the error's own text
}

// Order matters: token failures are checked before the generic classes
// they might also wrap.
var errorClasses = []errorClass{
	{token.ErrExpired, fiber.StatusUnauthorized, "Token expired"},
	{token.ErrRevoked, fiber.StatusUnauthorized, "Token revoked"},
	{token.ErrMalformed, fiber.StatusUnauthorized, "Invalid token"},
	{oauth.ErrInvalidCredential, fiber.StatusUnauthorized, "Invalid credential"},
	{common.ErrUnavailable, fiber.StatusServiceUnavailable, "Service temporarily unavailable"},
	{common.ErrForbidden, fiber.StatusForbidden, ""},
	{common.ErrConflict, fiber.StatusConflict, ""},
	{common.ErrNotFound, fiber.StatusNotFound, ""},
	{common.ErrInvalidArg, fiber.StatusBadRequest, ""},
}

func publicMessage(err error, class error) string {
	msg := strings.TrimPrefix(err.Error(), class.Error()+": ")
	if msg == "" {
		return class.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func writeError(ctx *fiber.Ctx, code int, msg string) error {
	return ctx.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   msg,
	})
}

// ErrorHandler turns errors returned by handlers into the JSON error body
// used across the API.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code >= fiber.StatusInternalServerError {
			slog.Error("Request failed", "path", ctx.Path(), "code", fe.Code, "error", err)
		}
		return writeError(ctx, fe.Code, fe.Message)
	}
	for _, class := range errorClasses {
		if !errors.Is(err, class.target) {
			continue
		}
		msg := class.message
		if msg == "" {
			msg = publicMessage(err, class.target)
		}
		if class.code == fiber.StatusServiceUnavailable {
			slog.Warn("Backend unavailable", "path", ctx.Path(), "error", err)
		}
		return writeError(ctx, class.code, msg)
	}
	slog.Error("Unhandled error", "path", ctx.Path(), "error", err)
	return writeError(ctx, fiber.StatusInternalServerError, "Internal server error")
}
