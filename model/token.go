package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	RevokeReasonLogout      = "logout"
	RevokeReasonSuperseded  = "superseded"
	RevokeReasonDeactivated = "deactivated"
)

// Token is the durable audit record of an issued token pair.
type Token struct {
	ID           uint64    `gorm:"column:token_id;primaryKey;autoIncrement:false"`
	UserID       string    `gorm:"size:36;not null;index"`
	AccessToken  string    `gorm:"type:text;not null"`
	RefreshToken string    `gorm:"type:text;not null"`
	ExpiresAt    time.Time `gorm:"not null"`
	Revoked      bool      `gorm:"column:is_revoked;not null;default:false;index"`
	RevokeReason string    `gorm:"size:32"` // logout, superseded or deactivated
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Token) TableName() string {
	return "auth_tokens"
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == 0 {
		t.ID = GenerateID()
	}
	return nil
}
