package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, r := range AllRoles() {
		got, err := ParseRole(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	for _, bad := range []string{"", "Owner", "superuser", " admin"} {
		_, err := ParseRole(bad)
		assert.ErrorIs(t, err, ErrUnknownRole, bad)
	}
}

func TestParsePermission(t *testing.T) {
	for _, p := range AllPermissions() {
		got, err := ParsePermission(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	_, err := ParsePermission("manage:everything")
	assert.ErrorIs(t, err, ErrUnknownPermission)
}

func TestCanManage(t *testing.T) {
	tests := []struct {
		actor  Role
		target Role
		want   bool
	}{
		{RoleOwner, RoleOwner, true},
		{RoleOwner, RoleAdmin, true},
		{RoleOwner, RoleMember, true},
		{RoleAdmin, RoleOwner, false},
		{RoleAdmin, RoleAdmin, true},
		{RoleAdmin, RoleMember, true},
		{RoleMember, RoleMember, false},
		{RoleMember, RoleAdmin, false},
		{"", RoleMember, false},
		{RoleOwner, Role("superuser"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.actor)+"->"+string(tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, CanManage(tt.actor, tt.target))
		})
	}
}

func TestCanAssign(t *testing.T) {
	assert.True(t, CanAssign(RoleOwner, RoleOwner))
	assert.True(t, CanAssign(RoleAdmin, RoleAdmin))
	assert.True(t, CanAssign(RoleAdmin, RoleMember))
	assert.False(t, CanAssign(RoleAdmin, RoleOwner))
	assert.False(t, CanAssign(RoleMember, RoleMember))
}
