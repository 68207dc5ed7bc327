package access

import (
	"context"
	"fmt"

	"github.com/khanghh/appsso/internal/common"
)

// Permissions is the application code to role code mapping of a user plus
// the rows it was computed from, for display.
type Permissions struct {
	Apps    map[string]string
	Details []AppRole
}

type Resolver struct {
	assignments AssignmentRepository
}

// Resolve computes the permission mapping of userID over active applications.
// A user without assignments gets an empty, non-nil mapping.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Permissions, error) {
	rows, err := r.assignments.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list assignments: %w", common.ErrUnavailable, err)
	}
	perms := &Permissions{
		Apps:    make(map[string]string, len(rows)),
		Details: make([]AppRole, 0, len(rows)),
	}
	for _, row := range rows {
		perms.Apps[row.AppCode] = row.RoleCode
		perms.Details = append(perms.Details, row)
	}
	return perms, nil
}

func NewResolver(assignments AssignmentRepository) *Resolver {
	return &Resolver{assignments: assignments}
}
