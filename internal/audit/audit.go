package audit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/khanghh/appsso/model"
)

var auditRepo AuditEventRepository
var initOnce sync.Once

func Initialize(repo AuditEventRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

const (
	EventTypeLogin            = "LOGIN"
	EventTypeLoginFailure     = "LOGIN_FAILURE"
	EventTypeLogout           = "LOGOUT"
	EventTypeTokenRefresh     = "TOKEN_REFRESH"
	EventTypeUserCreated      = "USER_CREATED"
	EventTypeUserStatusChange = "USER_STATUS_CHANGE"
	EventTypeRoleAssignment   = "ROLE_ASSIGNMENT"
	EventTypeRoleRemoval      = "ROLE_REMOVAL"
)

// ClientInfo identifies where a request came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type LoginRecord struct {
	ClientInfo
	UserID   string
	Email    string
	Provider string
	Success  bool
	Reason   string
}

type SessionRecord struct {
	ClientInfo
	UserID string
}

type UserCreatedRecord struct {
	ClientInfo
	ActorID string
	UserID  string
	Email   string
}

type UserStatusRecord struct {
	ClientInfo
	ActorID  string
	UserID   string
	IsActive bool
}

type RoleAssignmentRecord struct {
	ClientInfo
	ActorID string
	UserID  string
	AppID   string
	RoleID  string
}

func record(ctx context.Context, eventType string, actorID string, targetID string, client ClientInfo, details any) error {
	if auditRepo == nil {
		return nil
	}
	blob, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return auditRepo.RecordEvent(ctx, &model.AuditEvent{
		ActorID:   actorID,
		EventType: eventType,
		TargetID:  targetID,
		Details:   string(blob),
		IP:        client.IP,
		UserAgent: client.UserAgent,
	})
}

func RecordLogin(ctx context.Context, r LoginRecord) error {
	eventType := EventTypeLoginFailure
	if r.Success {
		eventType = EventTypeLogin
	}
	details := map[string]string{"email": r.Email, "provider": r.Provider}
	if r.Reason != "" {
		details["reason"] = r.Reason
	}
	return record(ctx, eventType, r.UserID, r.UserID, r.ClientInfo, details)
}

func RecordLogout(ctx context.Context, r SessionRecord) error {
	return record(ctx, EventTypeLogout, r.UserID, r.UserID, r.ClientInfo, map[string]string{})
}

func RecordTokenRefresh(ctx context.Context, r SessionRecord) error {
	return record(ctx, EventTypeTokenRefresh, r.UserID, r.UserID, r.ClientInfo, map[string]string{})
}

func RecordUserCreated(ctx context.Context, r UserCreatedRecord) error {
	return record(ctx, EventTypeUserCreated, r.ActorID, r.UserID, r.ClientInfo, map[string]string{"email": r.Email})
}

func RecordUserStatusChange(ctx context.Context, r UserStatusRecord) error {
	return record(ctx, EventTypeUserStatusChange, r.ActorID, r.UserID, r.ClientInfo, map[string]bool{"is_active": r.IsActive})
}

func RecordRoleAssignment(ctx context.Context, r RoleAssignmentRecord) error {
	details := map[string]string{"app_id": r.AppID, "role_id": r.RoleID}
	return record(ctx, EventTypeRoleAssignment, r.ActorID, r.UserID, r.ClientInfo, details)
}

func RecordRoleRemoval(ctx context.Context, r RoleAssignmentRecord) error {
	return record(ctx, EventTypeRoleRemoval, r.ActorID, r.UserID, r.ClientInfo, map[string]string{"app_id": r.AppID})
}
