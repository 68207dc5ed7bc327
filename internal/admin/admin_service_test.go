package admin

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/khanghh/appsso/internal/access"
	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/internal/users"
	"github.com/khanghh/appsso/model"
)

type fakeUsers struct {
	mu    sync.Mutex
	users []*model.User
}

func (f *fakeUsers) find(userID string) *model.User {
	for _, u := range f.users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

func (f *fakeUsers) ListUsers(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ret := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		ret = append(ret, *u)
	}
	return ret, nil
}

func (f *fakeUsers) CreateUser(ctx context.Context, email string, name string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = users.NormalizeEmail(email)
	for _, u := range f.users {
		if u.Email == email {
			return nil, users.ErrEmailTaken
		}
	}
	u := &model.User{ID: uuid.NewString(), Email: email, Name: name, IsActive: true}
	f.users = append(f.users, u)
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) SetActive(ctx context.Context, userID string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.find(userID)
	if u == nil {
		return users.ErrUserNotFound
	}
	u.IsActive = active
	return nil
}

func (f *fakeUsers) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.find(userID)
	if u == nil {
		return nil, users.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

type fakeAssignments struct {
	mu   sync.Mutex
	rows map[[2]string]string
	apps map[string]model.Application
	fail error
}

func (f *fakeAssignments) list(match func(userID string) bool) []access.AppRole {
	var ret []access.AppRole
	for key, roleID := range f.rows {
		if !match(key[0]) {
			continue
		}
		app := f.apps[key[1]]
		ret = append(ret, access.AppRole{UserID: key[0], AppID: app.ID, AppCode: app.Code, RoleCode: roleID})
	}
	return ret
}

func (f *fakeAssignments) ListForUser(ctx context.Context, userID string) ([]access.AppRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list(func(id string) bool { return id == userID }), f.fail
}

func (f *fakeAssignments) ListForUsers(ctx context.Context, userIDs []string) ([]access.AppRole, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	return f.list(func(id string) bool { return wanted[id] }), nil
}

func (f *fakeAssignments) Upsert(ctx context.Context, assignment *model.UserAppRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.rows[[2]string{assignment.UserID, assignment.AppID}] = assignment.RoleID
	return nil
}

func (f *fakeAssignments) Delete(ctx context.Context, userID string, appID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]string{userID, appID}
	if _, ok := f.rows[key]; !ok {
		return 0, nil
	}
	delete(f.rows, key)
	return 1, nil
}

type fakeCatalog struct {
	apps  map[string]model.Application
	roles map[string]model.Role
}

func (f *fakeCatalog) ListActiveApplications(ctx context.Context) ([]model.Application, error) {
	var ret []model.Application
	for _, app := range f.apps {
		if app.IsActive {
			ret = append(ret, app)
		}
	}
	return ret, nil
}

func (f *fakeCatalog) ListApplicationsWithUserCount(ctx context.Context) ([]access.ApplicationWithUsers, error) {
	var ret []access.ApplicationWithUsers
	for _, app := range f.apps {
		ret = append(ret, access.ApplicationWithUsers{Application: app})
	}
	return ret, nil
}

func (f *fakeCatalog) FindApplication(ctx context.Context, appID string) (*model.Application, error) {
	app, ok := f.apps[appID]
	if !ok {
		return nil, access.ErrApplicationNotFound
	}
	return &app, nil
}

func (f *fakeCatalog) ListRoles(ctx context.Context) ([]model.Role, error) {
	var ret []model.Role
	for _, role := range f.roles {
		ret = append(ret, role)
	}
	return ret, nil
}

func (f *fakeCatalog) FindRole(ctx context.Context, roleID string) (*model.Role, error) {
	role, ok := f.roles[roleID]
	if !ok {
		return nil, access.ErrRoleNotFound
	}
	return &role, nil
}

type revocation struct {
	userID string
	reason string
}

type fakeRevoker struct {
	calls []revocation
	fail  error
}

func (f *fakeRevoker) Revoke(ctx context.Context, userID string, reason string) error {
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, revocation{userID, reason})
	return nil
}

type harness struct {
	svc         *AdminService
	users       *fakeUsers
	assignments *fakeAssignments
	revoker     *fakeRevoker
	admin       Actor
	app         model.Application
	role        model.Role
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	app := model.Application{ID: uuid.NewString(), Code: "crm", Name: "CRM", IsActive: true}
	role := model.Role{ID: uuid.NewString(), Code: access.RoleEditor, Name: "Editor"}
	apps := map[string]model.Application{app.ID: app}
	adminUser := &model.User{ID: uuid.NewString(), Email: "admin@example.com", Name: "Admin", IsActive: true}
	h := &harness{
		users:       &fakeUsers{users: []*model.User{adminUser}},
		assignments: &fakeAssignments{rows: map[[2]string]string{}, apps: apps},
		revoker:     &fakeRevoker{},
		admin:       Actor{UserID: adminUser.ID},
		app:         app,
		role:        role,
	}
	catalog := &fakeCatalog{apps: apps, roles: map[string]model.Role{role.ID: role}}
	h.svc = NewAdminService(h.users, h.assignments, catalog, h.revoker)
	return h
}

func TestCreateUserAndList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	created, err := h.svc.CreateUser(ctx, h.admin, " Bob@Example.com ", "Bob")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Email != "bob@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if created.Apps == nil || len(created.Apps) != 0 {
		t.Fatalf("expected empty apps list, got %v", created.Apps)
	}

	_, err = h.svc.CreateUser(ctx, h.admin, "bob@example.com", "Bobby")
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := h.svc.AssignRole(ctx, h.admin, created.ID, h.app.ID, h.role.ID); err != nil {
		t.Fatalf("assign role: %v", err)
	}
	views, err := h.svc.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 users, got %d", len(views))
	}
	for _, v := range views {
		switch v.ID {
		case created.ID:
			if len(v.Apps) != 1 || v.Apps[0].AppCode != "crm" {
				t.Fatalf("unexpected apps for bob: %+v", v.Apps)
			}
		case h.admin.UserID:
			if len(v.Apps) != 0 {
				t.Fatalf("admin should have no apps, got %+v", v.Apps)
			}
		}
	}
}

func TestAssignRoleValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	userID := h.admin.UserID

	tests := []struct {
		name   string
		user   string
		app    string
		role   string
		target error
	}{
		{"malformed user id", "nope", h.app.ID, h.role.ID, common.ErrInvalidArg},
		{"malformed role id", userID, h.app.ID, "42", common.ErrInvalidArg},
		{"unknown user", uuid.NewString(), h.app.ID, h.role.ID, common.ErrNotFound},
		{"unknown app", userID, uuid.NewString(), h.role.ID, common.ErrNotFound},
		{"unknown role", userID, h.app.ID, uuid.NewString(), common.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.svc.AssignRole(ctx, h.admin, tt.user, tt.app, tt.role)
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
		})
	}
	if len(h.assignments.rows) != 0 {
		t.Fatalf("no assignment should have been written, got %v", h.assignments.rows)
	}
}

func TestAssignRoleReplacesExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	viewer := model.Role{ID: uuid.NewString(), Code: access.RoleViewer}
	h.svc.catalog.(*fakeCatalog).roles[viewer.ID] = viewer

	if err := h.svc.AssignRole(ctx, h.admin, h.admin.UserID, h.app.ID, h.role.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := h.svc.AssignRole(ctx, h.admin, h.admin.UserID, h.app.ID, viewer.ID); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if len(h.assignments.rows) != 1 {
		t.Fatalf("expected a single assignment, got %d", len(h.assignments.rows))
	}
	if got := h.assignments.rows[[2]string{h.admin.UserID, h.app.ID}]; got != viewer.ID {
		t.Fatalf("expected role %s, got %s", viewer.ID, got)
	}
}

func TestRemoveAppAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.svc.AssignRole(ctx, h.admin, h.admin.UserID, h.app.ID, h.role.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := h.svc.RemoveAppAccess(ctx, h.admin, h.admin.UserID, h.app.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(h.assignments.rows) != 0 {
		t.Fatalf("assignment not removed")
	}
	if err := h.svc.RemoveAppAccess(ctx, h.admin, h.admin.UserID, h.app.ID); err != nil {
		t.Fatalf("removing twice should succeed, got %v", err)
	}
	if err := h.svc.RemoveAppAccess(ctx, h.admin, "bad", h.app.ID); !errors.Is(err, common.ErrInvalidArg) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestDeactivateRevokesTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	target, err := h.svc.CreateUser(ctx, h.admin, "carol@example.com", "Carol")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := h.svc.SetUserActive(ctx, h.admin, target.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	u, _ := h.users.GetUserByID(ctx, target.ID)
	if u.IsActive {
		t.Fatalf("user still active")
	}
	if len(h.revoker.calls) != 1 || h.revoker.calls[0] != (revocation{target.ID, model.RevokeReasonDeactivated}) {
		t.Fatalf("unexpected revocations: %+v", h.revoker.calls)
	}

	if err := h.svc.SetUserActive(ctx, h.admin, target.ID, true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if len(h.revoker.calls) != 1 {
		t.Fatalf("activation must not revoke, got %+v", h.revoker.calls)
	}
}

func TestSetUserActiveErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.svc.SetUserActive(ctx, h.admin, h.admin.UserID, false); !errors.Is(err, ErrCannotDeactivateSelf) {
		t.Fatalf("expected self deactivation to be refused, got %v", err)
	}
	if err := h.svc.SetUserActive(ctx, h.admin, uuid.NewString(), false); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := h.svc.SetUserActive(ctx, h.admin, "x", true); !errors.Is(err, common.ErrInvalidArg) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	target, _ := h.svc.CreateUser(ctx, h.admin, "dave@example.com", "Dave")
	h.revoker.fail = common.ErrUnavailable
	if err := h.svc.SetUserActive(ctx, h.admin, target.ID, false); !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestDirectoryFailureIsUnavailable(t *testing.T) {
	h := newHarness(t)
	h.assignments.fail = errors.New("connection refused")
	_, err := h.svc.ListUsers(context.Background())
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestListAppsForUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	apps, err := h.svc.ListMyApps(ctx, h.admin.UserID)
	if err != nil || apps == nil || len(apps) != 0 {
		t.Fatalf("expected empty list, got %v %v", apps, err)
	}
	if err := h.svc.AssignRole(ctx, h.admin, h.admin.UserID, h.app.ID, h.role.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	apps, err = h.svc.ListMyApps(ctx, h.admin.UserID)
	if err != nil || len(apps) != 1 || apps[0].AppCode != h.app.Code {
		t.Fatalf("unexpected apps %v %v", apps, err)
	}
	active, err := h.svc.ListActiveApps(ctx)
	if err != nil || len(active) != 1 {
		t.Fatalf("unexpected active apps %v %v", active, err)
	}
}
