package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a federated identity. Users are never deleted, deactivation flips IsActive.
type User struct {
	ID              string     `gorm:"column:user_id;primaryKey;size:36"`
	Email           string     `gorm:"uniqueIndex;size:255;not null"` // lower-cased and trimmed
	Name            string     `gorm:"size:255;not null"`
	GoogleID        *string    `gorm:"uniqueIndex;size:255"` // nil until the first federated login
	Picture         string     `gorm:"column:profile_picture;size:1024;not null;default:''"`
	IsActive        bool       `gorm:"not null;default:true"`
	IsEmailVerified bool       `gorm:"not null;default:false"`
	LastLoginAt     *time.Time `gorm:"column:last_login_at"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
