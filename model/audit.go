package model

import (
	"time"

	"gorm.io/gorm"
)

type AuditEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement:false"`
	ActorID   string    `gorm:"size:36;index"`          // user performing the action
	EventType string    `gorm:"size:64;not null;index"` // LOGIN, ROLE_ASSIGNMENT...
	TargetID  string    `gorm:"size:36;index"`          // affected user (optional)
	Details   string    `gorm:"type:text"`              // json encoded context
	IP        string    `gorm:"size:45;not null"`       // IPv4/IPv6
	UserAgent string    `gorm:"size:512"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AuditEvent) TableName() string {
	return "audit_logs"
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == 0 {
		e.ID = GenerateID()
	}
	return nil
}
