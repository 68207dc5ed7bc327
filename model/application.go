package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Application is a downstream service whose code appears in access tokens.
type Application struct {
	ID          string `gorm:"column:app_id;primaryKey;size:36"`
	Code        string `gorm:"column:app_code;uniqueIndex;size:64;not null"`
	Name        string `gorm:"column:app_name;size:128;not null"`
	Description string `gorm:"column:app_description;size:512"`
	URL         string `gorm:"column:app_url;size:1024;not null"`
	Icon        string `gorm:"column:app_icon;size:256"`
	IsActive    bool   `gorm:"not null;default:true;index"`
	CreatedAt   time.Time
}

func (Application) TableName() string {
	return "applications"
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type Role struct {
	ID           string `gorm:"column:role_id;primaryKey;size:36"`
	Code         string `gorm:"column:role_code;uniqueIndex;size:32;not null"`
	Name         string `gorm:"column:role_name;size:64;not null"`
	Description  string `gorm:"size:256"`
	IsSystemRole bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
}

func (Role) TableName() string {
	return "roles"
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// UserAppRole assigns exactly one role per (user, application) pair.
type UserAppRole struct {
	ID         string    `gorm:"primaryKey;size:36"`
	UserID     string    `gorm:"size:36;not null;uniqueIndex:idx_user_app"`
	AppID      string    `gorm:"size:36;not null;uniqueIndex:idx_user_app"`
	RoleID     string    `gorm:"size:36;not null;index"`
	AssignedBy string    `gorm:"size:36"`
	AssignedAt time.Time `gorm:"not null"`
}

func (UserAppRole) TableName() string {
	return "user_app_roles"
}

func (r *UserAppRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
