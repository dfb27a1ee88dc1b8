package rbac

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPermissionMap_Default(t *testing.T) {
	m, err := BuildPermissionMap(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []Role{RoleOwner}, m.PermissionAllowed(PermManageBilling))
	assert.Equal(t, []Role{RoleOwner}, m.PermissionAllowed(PermManageOrg))
	assert.Equal(t, []Role{RoleOwner, RoleAdmin}, m.PermissionAllowed(PermManageUsers))
	assert.Equal(t, []Role{RoleOwner, RoleAdmin}, m.PermissionAllowed(PermWrite))
	assert.Equal(t, []Role{RoleOwner, RoleAdmin, RoleMember}, m.PermissionAllowed(PermRead))

	assert.Equal(t, []Permission{PermRead}, m.Permissions(RoleMember))
	assert.Len(t, m.Permissions(RoleOwner), len(AllPermissions()))
}

func TestPermissionAllowed_MatchesConfig(t *testing.T) {
	cfg := Config{Roles: map[string]RoleConfig{
		"owner":  {Permissions: []string{"manage:billing", "read", "write"}},
		"admin":  {Permissions: []string{"read", "write"}},
		"member": {Permissions: []string{"read"}},
	}}
	m, err := BuildPermissionMap(cfg)
	require.NoError(t, err)

	for _, p := range AllPermissions() {
		allowed := m.PermissionAllowed(p)
		for _, r := range AllRoles() {
			declared := false
			for _, name := range cfg.Roles[string(r)].Permissions {
				if name == string(p) {
					declared = true
				}
			}
			assert.Equal(t, declared, CheckRole(r, allowed...), "role %s permission %s", r, p)
			assert.Equal(t, declared, m.RoleHasPermission(r, p))
		}
	}

	assert.NotNil(t, m.PermissionAllowed(PermManageOrg))
	assert.Empty(t, m.PermissionAllowed(PermManageOrg))
}

func TestPermissionAllowed_ReturnsCopy(t *testing.T) {
	m := MustBuildPermissionMap(DefaultConfig())

	roles := m.PermissionAllowed(PermRead)
	roles[0] = RoleMember

	assert.Equal(t, RoleOwner, m.PermissionAllowed(PermRead)[0])
}

func TestBuildPermissionMap_RoleWithoutEntry(t *testing.T) {
	m, err := BuildPermissionMap(Config{Roles: map[string]RoleConfig{
		"owner": {Permissions: []string{"read"}},
	}})
	require.NoError(t, err)

	assert.Empty(t, m.Permissions(RoleMember))
	assert.Equal(t, []Role{RoleOwner}, m.PermissionAllowed(PermRead))
}

func TestBuildPermissionMap_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"no roles", Config{}, nil},
		{"unknown role", Config{Roles: map[string]RoleConfig{"guest": {Permissions: []string{"read"}}}}, ErrUnknownRole},
		{"unknown permission", Config{Roles: map[string]RoleConfig{"owner": {Permissions: []string{"delete:everything"}}}}, ErrUnknownPermission},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildPermissionMap(tt.cfg)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	assert.Panics(t, func() { MustBuildPermissionMap(Config{}) })
}

func TestLoadConfig(t *testing.T) {
	policy := `
roles:
  owner:
    permissions: [manage:org, manage:users, manage:billing, read, write]
  admin:
    permissions: [read, write]
  member:
    permissions: [read]
`
	cfg, err := LoadConfig(strings.NewReader(policy))
	require.NoError(t, err)

	m, err := BuildPermissionMap(cfg)
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleOwner}, m.PermissionAllowed(PermManageUsers))
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(strings.NewReader(""))
	assert.ErrorContains(t, err, "empty document")

	_, err = LoadConfig(strings.NewReader("roles:\n  owner:\n    perms: [read]\n"))
	assert.Error(t, err, "unknown fields must be rejected")
}

func TestLoadPermissionMap(t *testing.T) {
	m, err := LoadPermissionMap("")
	require.NoError(t, err)
	assert.True(t, m.RoleHasPermission(RoleOwner, PermManageBilling))

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  owner:\n    permissions: [read]\n"), 0o600))

	m, err = LoadPermissionMap(path)
	require.NoError(t, err)
	assert.False(t, m.RoleHasPermission(RoleOwner, PermManageBilling))
	assert.True(t, m.RoleHasPermission(RoleOwner, PermRead))

	_, err = LoadPermissionMap(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
