package access

const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// HasAnyRole reports whether the permission mapping grants one of roles on
// any application. It is the only role predicate; handlers and services all
// gate through it.
func HasAnyRole(apps map[string]string, roles ...string) bool {
	for _, held := range apps {
		for _, role := range roles {
			if held == role {
				return true
			}
		}
	}
	return false
}

// HasAppRole is HasAnyRole restricted to a single application.
func HasAppRole(apps map[string]string, appCode string, roles ...string) bool {
	held, ok := apps[appCode]
	if !ok {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if held == role {
			return true
		}
	}
	return false
}
