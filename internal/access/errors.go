package access

import (
	"fmt"

	"github.com/khanghh/appsso/internal/common"
)

var (
	ErrApplicationNotFound = fmt.Errorf("application %w", common.ErrNotFound)
	ErrRoleNotFound        = fmt.Errorf("role %w", common.ErrNotFound)
)
