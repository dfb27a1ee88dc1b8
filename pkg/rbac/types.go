package rbac

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRole is returned when a role name is not one of the built-in roles
	ErrUnknownRole = errors.New("unknown role")
	// ErrUnknownPermission is returned when a permission name is not recognized
	ErrUnknownPermission = errors.New("unknown permission")
)

// Role is the access tier a user holds inside one organization
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// AllRoles returns the built-in roles, highest tier first
func AllRoles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleMember}
}

// ParseRole converts a string into a Role, rejecting anything outside the closed set
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the built-in roles
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// String returns the role name
func (r Role) String() string {
	return string(r)
}

// rank orders roles for the management checks below
func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// CanManage reports whether a user holding actor may change or remove
// a membership currently holding target.
func CanManage(actor, target Role) bool {
	switch actor {
	case RoleOwner:
		return target.Valid()
	case RoleAdmin:
		return target.Valid() && target.rank() < RoleOwner.rank()
	}
	return false
}

// CanAssign reports whether a user holding actor may grant newRole to someone
func CanAssign(actor, newRole Role) bool {
	return CanManage(actor, newRole)
}

// Permission is a named capability granted to roles
type Permission string

const (
	PermManageOrg     Permission = "manage:org"
	PermManageUsers   Permission = "manage:users"
	PermManageBilling Permission = "manage:billing"
	PermRead          Permission = "read"
	PermWrite         Permission = "write"
)

// AllPermissions returns every known permission
func AllPermissions() []Permission {
	return []Permission{PermManageOrg, PermManageUsers, PermManageBilling, PermRead, PermWrite}
}

// ParsePermission converts a string into a Permission
func ParsePermission(s string) (Permission, error) {
	p := Permission(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, s)
	}
	return p, nil
}

// Valid reports whether p is a known permission
func (p Permission) Valid() bool {
	switch p {
	case PermManageOrg, PermManageUsers, PermManageBilling, PermRead, PermWrite:
		return true
	}
	return false
}

// String returns the permission name
func (p Permission) String() string {
	return string(p)
}
