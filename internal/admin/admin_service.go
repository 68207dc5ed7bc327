package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/khanghh/appsso/internal/access"
	"github.com/khanghh/appsso/internal/audit"
	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/model"
)

var (
	ErrInvalidID            = fmt.Errorf("%w: invalid id format", common.ErrInvalidArg)
	ErrCannotDeactivateSelf = fmt.Errorf("%w: administrators cannot deactivate themselves", common.ErrInvalidArg)
)

type UserService interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, email string, name string) (*model.User, error)
	SetActive(ctx context.Context, userID string, active bool) error
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
}

type TokenRevoker interface {
	Revoke(ctx context.Context, userID string, reason string) error
}

// Actor is the administrator performing a change.
type Actor struct {
	audit.ClientInfo
	UserID string
}

type UserView struct {
	ID              string           `json:"user_id"`
	Email           string           `json:"email"`
	Name            string           `json:"name"`
	Picture         string           `json:"profile_picture,omitempty"`
	IsActive        bool             `json:"is_active"`
	IsEmailVerified bool             `json:"is_email_verified"`
	CreatedAt       time.Time        `json:"created_at"`
	LastLoginAt     *time.Time       `json:"last_login,omitempty"`
	Apps            []access.AppRole `json:"apps"`
}

func newUserView(u *model.User, apps []access.AppRole) UserView {
	if apps == nil {
		apps = []access.AppRole{}
	}
	return UserView{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Picture:         u.Picture,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		LastLoginAt:     u.LastLoginAt,
		Apps:            apps,
	}
}

type AdminService struct {
	users       UserService
	assignments access.AssignmentRepository
	catalog     access.CatalogRepository
	tokens      TokenRevoker
}

func validateID(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return ErrInvalidID
		}
	}
	return nil
}

func unavailable(err error) error {
	if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrConflict) ||
		errors.Is(err, common.ErrInvalidArg) || errors.Is(err, common.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
}

func (s *AdminService) ListUsers(ctx context.Context) ([]UserView, error) {
	list, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	ids := make([]string, 0, len(list))
	for _, u := range list {
		ids = append(ids, u.ID)
	}
	rows, err := s.assignments.ListForUsers(ctx, ids)
	if err != nil {
		return nil, unavailable(err)
	}
	byUser := make(map[string][]access.AppRole, len(list))
	for _, row := range rows {
		byUser[row.UserID] = append(byUser[row.UserID], row)
	}
	views := make([]UserView, 0, len(list))
	for i := range list {
		views = append(views, newUserView(&list[i], byUser[list[i].ID]))
	}
	return views, nil
}

func (s *AdminService) CreateUser(ctx context.Context, actor Actor, email string, name string) (*UserView, error) {
	user, err := s.users.CreateUser(ctx, email, name)
	if err != nil {
		return nil, unavailable(err)
	}
	slog.Info("User created", "userID", user.ID, "email", user.Email, "by", actor.UserID)
	if err := audit.RecordUserCreated(ctx, audit.UserCreatedRecord{
		ClientInfo: actor.ClientInfo,
		ActorID:    actor.UserID,
		UserID:     user.ID,
		Email:      user.Email,
	}); err != nil {
		slog.Warn("Failed to record user creation", "userID", user.ID, "error", err)
	}
	view := newUserView(user, nil)
	return &view, nil
}

// SetUserActive flips the active flag. Deactivating a user also revokes their
// current token pair so outstanding tokens stop verifying immediately.
func (s *AdminService) SetUserActive(ctx context.Context, actor Actor, userID string, active bool) error {
	if err := validateID(userID); err != nil {
		return err
	}
	if !active && userID == actor.UserID {
		return ErrCannotDeactivateSelf
	}
	if err := s.users.SetActive(ctx, userID, active); err != nil {
		return unavailable(err)
	}
	if !active {
		if err := s.tokens.Revoke(ctx, userID, model.RevokeReasonDeactivated); err != nil {
			return err
		}
	}
	slog.Info("User status changed", "userID", userID, "active", active, "by", actor.UserID)
	if err := audit.RecordUserStatusChange(ctx, audit.UserStatusRecord{
		ClientInfo: actor.ClientInfo,
		ActorID:    actor.UserID,
		UserID:     userID,
		IsActive:   active,
	}); err != nil {
		slog.Warn("Failed to record status change", "userID", userID, "error", err)
	}
	return nil
}

// AssignRole gives userID roleID on appID, replacing any role the user
// already had there. The user sees it after their next refresh.
func (s *AdminService) AssignRole(ctx context.Context, actor Actor, userID string, appID string, roleID string) error {
	if err := validateID(userID, appID, roleID); err != nil {
		return err
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return unavailable(err)
	}
	if _, err := s.catalog.FindApplication(ctx, appID); err != nil {
		return unavailable(err)
	}
	if _, err := s.catalog.FindRole(ctx, roleID); err != nil {
		return unavailable(err)
	}
	err := s.assignments.Upsert(ctx, &model.UserAppRole{
		UserID:     userID,
		AppID:      appID,
		RoleID:     roleID,
		AssignedBy: actor.UserID,
	})
	if err != nil {
		return unavailable(err)
	}
	slog.Info("App role assigned", "userID", userID, "appID", appID, "roleID", roleID, "by", actor.UserID)
	if err := audit.RecordRoleAssignment(ctx, audit.RoleAssignmentRecord{
		ClientInfo: actor.ClientInfo,
		ActorID:    actor.UserID,
		UserID:     userID,
		AppID:      appID,
		RoleID:     roleID,
	}); err != nil {
		slog.Warn("Failed to record role assignment", "userID", userID, "error", err)
	}
	return nil
}

// RemoveAppAccess drops the application from the user's mapping. Removing
// an assignment that does not exist is not an error.
func (s *AdminService) RemoveAppAccess(ctx context.Context, actor Actor, userID string, appID string) error {
	if err := validateID(userID, appID); err != nil {
		return err
	}
	if _, err := s.assignments.Delete(ctx, userID, appID); err != nil {
		return unavailable(err)
	}
	slog.Info("App access removed", "userID", userID, "appID", appID, "by", actor.UserID)
	if err := audit.RecordRoleRemoval(ctx, audit.RoleAssignmentRecord{
		ClientInfo: actor.ClientInfo,
		ActorID:    actor.UserID,
		UserID:     userID,
		AppID:      appID,
	}); err != nil {
		slog.Warn("Failed to record role removal", "userID", userID, "error", err)
	}
	return nil
}

func (s *AdminService) ListApplications(ctx context.Context) ([]access.ApplicationWithUsers, error) {
	apps, err := s.catalog.ListApplicationsWithUserCount(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return apps, nil
}

func (s *AdminService) ListRoles(ctx context.Context) ([]model.Role, error) {
	roles, err := s.catalog.ListRoles(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return roles, nil
}

func (s *AdminService) ListActiveApps(ctx context.Context) ([]model.Application, error) {
	apps, err := s.catalog.ListActiveApplications(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return apps, nil
}

// ListMyApps lists the active applications userID can use with the role held
// on each, read live from the directory rather than from a token.
func (s *AdminService) ListMyApps(ctx context.Context, userID string) ([]access.AppRole, error) {
	apps, err := s.assignments.ListForUser(ctx, userID)
	if err != nil {
		return nil, unavailable(err)
	}
	if apps == nil {
		apps = []access.AppRole{}
	}
	return apps, nil
}

func NewAdminService(users UserService, assignments access.AssignmentRepository, catalog access.CatalogRepository, tokens TokenRevoker) *AdminService {
	return &AdminService{
		users:       users,
		assignments: assignments,
		catalog:     catalog,
		tokens:      tokens,
	}
}
