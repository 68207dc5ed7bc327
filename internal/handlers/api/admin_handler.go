package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/appsso/internal/access"
	"github.com/khanghh/appsso/internal/admin"
	"github.com/khanghh/appsso/internal/middlewares"
	"github.com/khanghh/appsso/model"
)

type AdminService interface {
	ListUsers(ctx context.Context) ([]admin.UserView, error)
	CreateUser(ctx context.Context, actor admin.Actor, email string, name string) (*admin.UserView, error)
	SetUserActive(ctx context.Context, actor admin.Actor, userID string, active bool) error
	AssignRole(ctx context.Context, actor admin.Actor, userID string, appID string, roleID string) error
	RemoveAppAccess(ctx context.Context, actor admin.Actor, userID string, appID string) error
	ListApplications(ctx context.Context) ([]access.ApplicationWithUsers, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
}

type AdminHandler struct {
	adminService AdminService
}

type createUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type userStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

type assignRoleRequest struct {
	AppID  string `json:"app_id"`
	RoleID string `json:"role_id"`
}

func actor(ctx *fiber.Ctx) admin.Actor {
	return admin.Actor{
		ClientInfo: clientInfo(ctx),
		UserID:     middlewares.Claims(ctx).UserID(),
	}
}

func (h *AdminHandler) GetUsers(ctx *fiber.Ctx) error {
	users, err := h.adminService.ListUsers(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(users))
}

func (h *AdminHandler) PostUser(ctx *fiber.Ctx) error {
	var req createUserRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest("Invalid request body")
	}
	user, err := h.adminService.CreateUser(ctx.Context(), actor(ctx), req.Email, req.Name)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Data:    user,
		Message: "User created successfully",
	})
}

func (h *AdminHandler) PatchUserStatus(ctx *fiber.Ctx) error {
	var req userStatusRequest
	if err := ctx.BodyParser(&req); err != nil || req.IsActive == nil {
		return badRequest("is_active must be a boolean")
	}
	if err := h.adminService.SetUserActive(ctx.Context(), actor(ctx), ctx.Params("userId"), *req.IsActive); err != nil {
		return err
	}
	if *req.IsActive {
		return ctx.JSON(NewMessageResponse("User activated successfully"))
	}
	return ctx.JSON(NewMessageResponse("User deactivated successfully"))
}

func (h *AdminHandler) PostUserApp(ctx *fiber.Ctx) error {
	var req assignRoleRequest
	if err := ctx.BodyParser(&req); err != nil {
		return badRequest("Invalid request body")
	}
	err := h.adminService.AssignRole(ctx.Context(), actor(ctx), ctx.Params("userId"), req.AppID, req.RoleID)
	if err != nil {
		return err
	}
	return ctx.JSON(NewMessageResponse("App role assigned successfully"))
}

func (h *AdminHandler) DeleteUserApp(ctx *fiber.Ctx) error {
	err := h.adminService.RemoveAppAccess(ctx.Context(), actor(ctx), ctx.Params("userId"), ctx.Params("appId"))
	if err != nil {
		return err
	}
	return ctx.JSON(NewMessageResponse("App access removed successfully"))
}

func (h *AdminHandler) GetApplications(ctx *fiber.Ctx) error {
	apps, err := h.adminService.ListApplications(ctx.Context())
	if err != nil {
		return err
	}
	resp := make([]applicationResponse, 0, len(apps))
	for i := range apps {
		item := newApplicationResponse(&apps[i].Application)
		item.IsActive = &apps[i].IsActive
		item.UserCount = &apps[i].UserCount
		resp = append(resp, item)
	}
	return ctx.JSON(NewDataResponse(resp))
}

func (h *AdminHandler) GetRoles(ctx *fiber.Ctx) error {
	roles, err := h.adminService.ListRoles(ctx.Context())
	if err != nil {
		return err
	}
	resp := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		resp = append(resp, roleResponse{
			ID:           r.ID,
			Code:         r.Code,
			Name:         r.Name,
			Description:  r.Description,
			IsSystemRole: r.IsSystemRole,
			CreatedAt:    r.CreatedAt,
		})
	}
	return ctx.JSON(NewDataResponse(resp))
}

func NewAdminHandler(adminService AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}
