package rbac

import (
	"html/template"
)

// CheckRole reports whether role is one of required. The zero role never matches.
func CheckRole(role Role, required ...Role) bool {
	if role == "" {
		return false
	}
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}

// CheckPermission reports whether role is granted p
func (m *PermissionMap) CheckPermission(role Role, p Permission) bool {
	if role == "" {
		return false
	}
	return m.RoleHasPermission(role, p)
}

// RoleGuard renders content when role is one of required and fallback otherwise.
// It only affects presentation; access must already be enforced by a Guard.
func RoleGuard(role Role, required []Role, content, fallback template.HTML) template.HTML {
	if CheckRole(role, required...) {
		return content
	}
	return fallback
}

// PermissionGuard renders content when role is granted p and fallback otherwise
func (m *PermissionMap) PermissionGuard(role Role, p Permission, content, fallback template.HTML) template.HTML {
	if m.CheckPermission(role, p) {
		return content
	}
	return fallback
}

// FuncMap exposes the checks to html/template:
//
//	{{if hasRole .Role "admin" "owner"}}...{{end}}
//	{{if can .Role "manage:billing"}}...{{end}}
//
// Unknown role or permission names evaluate to false.
func (m *PermissionMap) FuncMap() template.FuncMap {
	return template.FuncMap{
		"hasRole": func(role Role, names ...string) bool {
			required := make([]Role, 0, len(names))
			for _, name := range names {
				if r, err := ParseRole(name); err == nil {
					required = append(required, r)
				}
			}
			return CheckRole(role, required...)
		},
		"can": func(role Role, name string) bool {
			p, err := ParsePermission(name)
			if err != nil {
				return false
			}
			return m.CheckPermission(role, p)
		},
	}
}
