package rbac

import (
	"errors"
	"fmt"
)

// PermissionMap is the immutable role to permission table built at startup.
// It is safe for concurrent reads.
type PermissionMap struct {
	byRole       map[Role]map[Permission]struct{}
	byPermission map[Permission][]Role
}

// BuildPermissionMap validates cfg and builds the lookup table from it
func BuildPermissionMap(cfg Config) (*PermissionMap, error) {
	if len(cfg.Roles) == 0 {
		return nil, errors.New("rbac config defines no roles")
	}

	byRole := make(map[Role]map[Permission]struct{}, len(cfg.Roles))
	for name, rc := range cfg.Roles {
		role, err := ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("invalid rbac config: %w", err)
		}

		set := make(map[Permission]struct{}, len(rc.Permissions))
		for _, pname := range rc.Permissions {
			perm, err := ParsePermission(pname)
			if err != nil {
				return nil, fmt.Errorf("invalid rbac config for role %s: %w", role, err)
			}
			set[perm] = struct{}{}
		}
		byRole[role] = set
	}

	byPermission := make(map[Permission][]Role, len(AllPermissions()))
	for _, perm := range AllPermissions() {
		roles := []Role{}
		for _, role := range AllRoles() {
			if _, ok := byRole[role][perm]; ok {
				roles = append(roles, role)
			}
		}
		byPermission[perm] = roles
	}

	return &PermissionMap{
		byRole:       byRole,
		byPermission: byPermission,
	}, nil
}

// MustBuildPermissionMap is like BuildPermissionMap but panics on error
func MustBuildPermissionMap(cfg Config) *PermissionMap {
	m, err := BuildPermissionMap(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

// PermissionAllowed returns the roles holding p, highest tier first.
// The result is empty when no role is granted p.
func (m *PermissionMap) PermissionAllowed(p Permission) []Role {
	roles := m.byPermission[p]
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}

// RoleHasPermission reports whether role is granted p
func (m *PermissionMap) RoleHasPermission(role Role, p Permission) bool {
	_, ok := m.byRole[role][p]
	return ok
}

// Permissions lists the permissions granted to role in canonical order
func (m *PermissionMap) Permissions(role Role) []Permission {
	out := []Permission{}
	for _, p := range AllPermissions() {
		if m.RoleHasPermission(role, p) {
			out = append(out, p)
		}
	}
	return out
}
