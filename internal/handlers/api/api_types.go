package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/appsso/internal/access"
	"github.com/khanghh/appsso/internal/audit"
	"github.com/khanghh/appsso/model"
)

type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewDataResponse(data any) Response {
	return Response{Success: true, Data: data}
}

func NewMessageResponse(message string) Response {
	return Response{Success: true, Message: message}
}

type userInfo struct {
	ID      string            `json:"id"`
	Email   string            `json:"email"`
	Name    string            `json:"name"`
	Picture string            `json:"picture,omitempty"`
	Apps    map[string]string `json:"apps,omitempty"`
}

type sessionResponse struct {
	User             *userInfo         `json:"user,omitempty"`
	AccessToken      string            `json:"accessToken"`
	RefreshToken     string            `json:"refreshToken"`
	ExpiresAt        time.Time         `json:"expiresAt"`
	RefreshExpiresAt time.Time         `json:"refreshExpiresAt"`
	Apps             []access.AppRole  `json:"apps"`
	Permissions      map[string]string `json:"permissions"`
}

type verifyResponse struct {
	User userInfo          `json:"user"`
	Role *string           `json:"role"`
	Apps map[string]string `json:"apps"`
}

type applicationResponse struct {
	ID          string `json:"app_id"`
	Code        string `json:"app_code"`
	Name        string `json:"app_name"`
	Description string `json:"app_description"`
	URL         string `json:"app_url"`
	Icon        string `json:"app_icon,omitempty"`
	IsActive    *bool  `json:"is_active,omitempty"`
	UserCount   *int64 `json:"user_count,omitempty"`
}

func newApplicationResponse(app *model.Application) applicationResponse {
	return applicationResponse{
		ID:          app.ID,
		Code:        app.Code,
		Name:        app.Name,
		Description: app.Description,
		URL:         app.URL,
		Icon:        app.Icon,
	}
}

type roleResponse struct {
	ID           string    `json:"role_id"`
	Code         string    `json:"role_code"`
	Name         string    `json:"role_name"`
	Description  string    `json:"description"`
	IsSystemRole bool      `json:"is_system_role"`
	CreatedAt    time.Time `json:"created_at"`
}

func clientInfo(ctx *fiber.Ctx) audit.ClientInfo {
	return audit.ClientInfo{
		IP:        ctx.IP(),
		UserAgent: ctx.Get(fiber.HeaderUserAgent),
	}
}

func badRequest(message string) error {
	return fiber.NewError(fiber.StatusBadRequest, message)
}
