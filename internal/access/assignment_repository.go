package access

import (
	"context"
	"time"

	"github.com/khanghh/appsso/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppRole is one assignment joined with its application and role.
type AppRole struct {
	UserID          string `json:"-"`
	AppID           string `json:"app_id"`
	AppCode         string `json:"app_code"`
	AppName         string `json:"app_name"`
	AppURL          string `json:"app_url"`
	AppIcon         string `json:"app_icon,omitempty"`
	AppDescription  string `json:"app_description,omitempty"`
	RoleCode        string `json:"role_code"`
	RoleName        string `json:"role_name"`
	RoleDescription string `json:"role_description,omitempty"`
}

type AssignmentRepository interface {
	ListForUser(ctx context.Context, userID string) ([]AppRole, error)
	ListForUsers(ctx context.Context, userIDs []string) ([]AppRole, error)
	Upsert(ctx context.Context, assignment *model.UserAppRole) error
	Delete(ctx context.Context, userID string, appID string) (int64, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

const appRoleColumns = "uar.user_id, a.app_id, a.app_code, a.app_name, a.app_url, a.app_icon, a.app_description, r.role_code, r.role_name, r.description AS role_description"

func (r *assignmentRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("user_app_roles AS uar").
		Select(appRoleColumns).
		Joins("JOIN applications AS a ON a.app_id = uar.app_id").
		Joins("JOIN roles AS r ON r.role_id = uar.role_id")
}

// ListForUser returns the assignments of the user on active applications,
// ordered by application name.
func (r *assignmentRepository) ListForUser(ctx context.Context, userID string) ([]AppRole, error) {
	var rows []AppRole
	err := r.joined(ctx).
		Where("uar.user_id = ?", userID).
		Where("a.is_active = ?", true).
		Order("a.app_name").
		Scan(&rows).Error
	return rows, err
}

// ListForUsers returns every assignment of the users, inactive applications included.
func (r *assignmentRepository) ListForUsers(ctx context.Context, userIDs []string) ([]AppRole, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []AppRole
	err := r.joined(ctx).
		Where("uar.user_id IN ?", userIDs).
		Order("a.app_name").
		Scan(&rows).Error
	return rows, err
}

// Upsert keeps a single row per (user, application): assigning again replaces the role.
func (r *assignmentRepository) Upsert(ctx context.Context, assignment *model.UserAppRole) error {
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "app_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role_id", "assigned_by", "assigned_at"}),
	}).Create(assignment).Error
}

func (r *assignmentRepository) Delete(ctx context.Context, userID string, appID string) (int64, error) {
	ret := r.db.WithContext(ctx).
		Where("user_id = ? AND app_id = ?", userID, appID).
		Delete(&model.UserAppRole{})
	return ret.RowsAffected, ret.Error
}

func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}
