package access

import (
	"context"
	"errors"

	"github.com/khanghh/appsso/model"
	"gorm.io/gorm"
)

type ApplicationWithUsers struct {
	model.Application
	UserCount int64 `json:"user_count"`
}

// CatalogRepository reads the administrator-owned applications and roles.
type CatalogRepository interface {
	ListActiveApplications(ctx context.Context) ([]model.Application, error)
	ListApplicationsWithUserCount(ctx context.Context) ([]ApplicationWithUsers, error)
	FindApplication(ctx context.Context, appID string) (*model.Application, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	FindRole(ctx context.Context, roleID string) (*model.Role, error)
}

type catalogRepository struct {
	db *gorm.DB
}

func (r *catalogRepository) ListActiveApplications(ctx context.Context) ([]model.Application, error) {
	var apps []model.Application
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("app_name").Find(&apps).Error
	return apps, err
}

func (r *catalogRepository) ListApplicationsWithUserCount(ctx context.Context) ([]ApplicationWithUsers, error) {
	var apps []ApplicationWithUsers
	err := r.db.WithContext(ctx).
		Table("applications AS a").
		Select("a.*, COUNT(uar.user_id) AS user_count").
		Joins("LEFT JOIN user_app_roles AS uar ON uar.app_id = a.app_id").
		Group("a.app_id").
		Order("a.app_name").
		Scan(&apps).Error
	return apps, err
}

func (r *catalogRepository) FindApplication(ctx context.Context, appID string) (*model.Application, error) {
	var app model.Application
	err := r.db.WithContext(ctx).Where("app_id = ?", appID).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *catalogRepository) ListRoles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	err := r.db.WithContext(ctx).Order("role_name").Find(&roles).Error
	return roles, err
}

func (r *catalogRepository) FindRole(ctx context.Context, roleID string) (*model.Role, error) {
	var role model.Role
	err := r.db.WithContext(ctx).Where("role_id = ?", roleID).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}
