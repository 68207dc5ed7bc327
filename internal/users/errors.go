package users

import (
	"fmt"

	"github.com/khanghh/appsso/internal/common"
)

var (
	ErrUserNotFound = fmt.Errorf("user %w", common.ErrNotFound)
	ErrEmailTaken   = fmt.Errorf("%w: email already registered", common.ErrConflict)
	ErrInvalidEmail = fmt.Errorf("%w: invalid email address", common.ErrInvalidArg)
	ErrInvalidName  = fmt.Errorf("%w: invalid name", common.ErrInvalidArg)
	ErrMissingEmail = fmt.Errorf("%w: identity provider returned no email", common.ErrInvalidArg)
)
