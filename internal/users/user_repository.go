package users

import (
	"context"
	"errors"
	"time"

	"github.com/khanghh/appsso/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	First(ctx context.Context, userID string) (*model.User, error)
	FindByGoogleIDOrEmail(ctx context.Context, googleID string, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	TouchLogin(ctx context.Context, userID string, picture string, googleID *string, at time.Time) error
	SetActive(ctx context.Context, userID string, active bool) (int64, error)
	List(ctx context.Context) ([]model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) First(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByGoogleIDOrEmail prefers the row linked to the external subject over
// one that only shares the email address.
func (r *userRepository) FindByGoogleIDOrEmail(ctx context.Context, googleID string, email string) (*model.User, error) {
	var found []model.User
	err := r.db.WithContext(ctx).
		Where("google_id = ? OR email = ?", googleID, email).
		Limit(2).
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrUserNotFound
	}
	for i := range found {
		if found[i].GoogleID != nil && *found[i].GoogleID == googleID {
			return &found[i], nil
		}
	}
	return &found[0], nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) TouchLogin(ctx context.Context, userID string, picture string, googleID *string, at time.Time) error {
	updates := map[string]interface{}{
		"last_login_at":   at,
		"profile_picture": picture,
	}
	if googleID != nil {
		updates["google_id"] = *googleID
	}
	return r.db.WithContext(ctx).Model(&model.User{}).Where("user_id = ?", userID).Updates(updates).Error
}

func (r *userRepository) SetActive(ctx context.Context, userID string, active bool) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.User{}).Where("user_id = ?", userID).Update("is_active", active)
	return ret.RowsAffected, ret.Error
}

func (r *userRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}
