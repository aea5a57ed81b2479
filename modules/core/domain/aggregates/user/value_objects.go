package user

import "errors"

type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleAgent      Role = "agent"
)

func NewRole(r string) (Role, error) {
	role := Role(r)
	if !role.IsValid() {
		return "", errors.New("invalid role")
	}
	return role, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleSuperadmin, RoleAdmin, RoleManager, RoleAgent:
		return true
	}
	return false
}

// IsElevated reports whether the role may act across tenant boundaries.
func (r Role) IsElevated() bool {
	return r == RoleSuperadmin || r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}
