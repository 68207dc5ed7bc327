package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/khanghh/appsso/model"
)

type memAuditRepository struct {
	events []*model.AuditEvent
}

func (r *memAuditRepository) RecordEvent(ctx context.Context, event *model.AuditEvent) error {
	r.events = append(r.events, event)
	return nil
}

func TestRecordWithoutRepositoryIsNoop(t *testing.T) {
	saved := auditRepo
	auditRepo = nil
	defer func() { auditRepo = saved }()

	if err := RecordLogout(context.Background(), SessionRecord{UserID: "u1"}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestRecordEvents(t *testing.T) {
	repo := &memAuditRepository{}
	saved := auditRepo
	auditRepo = repo
	defer func() { auditRepo = saved }()

	ctx := context.Background()
	client := ClientInfo{IP: "10.0.0.1", UserAgent: "curl/8"}
	RecordLogin(ctx, LoginRecord{ClientInfo: client, UserID: "u1", Email: "a@x.com", Provider: "google", Success: true})
	RecordLogin(ctx, LoginRecord{ClientInfo: client, Email: "b@x.com", Provider: "google", Reason: "inactive"})
	RecordRoleAssignment(ctx, RoleAssignmentRecord{ClientInfo: client, ActorID: "admin", UserID: "u1", AppID: "a1", RoleID: "r1"})
	RecordUserStatusChange(ctx, UserStatusRecord{ActorID: "admin", UserID: "u1", IsActive: false})

	if len(repo.events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(repo.events))
	}
	if repo.events[0].EventType != EventTypeLogin || repo.events[1].EventType != EventTypeLoginFailure {
		t.Fatalf("unexpected login event types: %s %s", repo.events[0].EventType, repo.events[1].EventType)
	}
	assign := repo.events[2]
	if assign.ActorID != "admin" || assign.TargetID != "u1" || assign.IP != "10.0.0.1" {
		t.Fatalf("unexpected assignment event %+v", assign)
	}
	var details map[string]string
	if err := json.Unmarshal([]byte(assign.Details), &details); err != nil {
		t.Fatalf("details not json: %v", err)
	}
	if details["app_id"] != "a1" || details["role_id"] != "r1" {
		t.Fatalf("unexpected details %v", details)
	}
	if repo.events[3].Details != `{"is_active":false}` {
		t.Fatalf("unexpected status details %s", repo.events[3].Details)
	}
}
