package authz

import (
	"fmt"
	"strings"
)

// Role is the coarse tier assigned to every console account.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleManager    Role = "manager"
	RoleUser       Role = "user"
)

// Roles lists every valid role, highest tier first.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleManager, RoleUser}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleManager, RoleUser:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole normalises and validates a role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", fmt.Errorf("authz: unknown role %q", raw)
	}
	return role, nil
}
