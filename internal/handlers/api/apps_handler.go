package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/appsso/internal/access"
	"github.com/khanghh/appsso/internal/middlewares"
	"github.com/khanghh/appsso/model"
)

type AppsService interface {
	ListActiveApps(ctx context.Context) ([]model.Application, error)
	ListMyApps(ctx context.Context, userID string) ([]access.AppRole, error)
}

type AppsHandler struct {
	appsService AppsService
}

func (h *AppsHandler) GetApps(ctx *fiber.Ctx) error {
	apps, err := h.appsService.ListActiveApps(ctx.Context())
	if err != nil {
		return err
	}
	resp := make([]applicationResponse, 0, len(apps))
	for i := range apps {
		resp = append(resp, newApplicationResponse(&apps[i]))
	}
	return ctx.JSON(NewDataResponse(resp))
}

func (h *AppsHandler) GetMyApps(ctx *fiber.Ctx) error {
	apps, err := h.appsService.ListMyApps(ctx.Context(), middlewares.Claims(ctx).UserID())
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(apps))
}

func NewAppsHandler(appsService AppsService) *AppsHandler {
	return &AppsHandler{appsService: appsService}
}
