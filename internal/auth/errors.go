package auth

import (
	"fmt"

	"github.com/khanghh/appsso/internal/common"
	"github.com/khanghh/appsso/internal/oauth"
)

var (
	ErrAccountInactive = fmt.Errorf("%w: account is inactive", common.ErrForbidden)
	ErrNoAppAccess     = fmt.Errorf("%w: no access to application", common.ErrForbidden)
	ErrInvalidState    = fmt.Errorf("%w: invalid or expired oauth state", oauth.ErrInvalidCredential)
)
