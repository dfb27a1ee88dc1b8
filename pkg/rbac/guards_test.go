package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/orgportal/pkg/audit"
	"github.com/platinummonkey/orgportal/pkg/session"
)

// fakeAuth returns a fixed user and counts session round trips
type fakeAuth struct {
	user  *session.User
	err   error
	calls int
}

func (f *fakeAuth) CurrentUser(r *http.Request) (*session.User, error) {
	f.calls++
	return f.user, f.err
}

type decisionLog struct {
	mu       sync.Mutex
	outcomes []string
}

func (d *decisionLog) RecordAuthzDecision(guard, outcome string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes = append(d.outcomes, guard+":"+outcome)
}

type auditCapture struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (a *auditCapture) Log(ctx context.Context, event *audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *auditCapture) Close() error { return nil }

// scenarioPermissions grants billing to owners only
func scenarioPermissions(t *testing.T) *PermissionMap {
	t.Helper()
	m, err := BuildPermissionMap(Config{Roles: map[string]RoleConfig{
		"owner":  {Permissions: []string{"manage:billing", "read", "write"}},
		"admin":  {Permissions: []string{"read", "write"}},
		"member": {Permissions: []string{"read"}},
	}})
	require.NoError(t, err)
	return m
}

func newRequest() *http.Request {
	return httptest.NewRequest(http.MethodGet, "/organizations/O/billing", nil)
}

func requireRedirect(t *testing.T, err error, target string, reason DenyReason) {
	t.Helper()
	redirect, ok := AsRedirect(err)
	require.True(t, ok, "expected redirect, got %v", err)
	assert.Equal(t, target, redirect.Target)
	assert.Equal(t, reason, redirect.Reason)
}

func TestRequireAuthenticated(t *testing.T) {
	user := &session.User{ID: "U", Email: "u@example.com"}
	g := NewGuard(&fakeAuth{user: user}, &fakeLookup{}, scenarioPermissions(t))

	got, err := g.RequireAuthenticated(newRequest(), "")
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestRequireAuthenticated_NoSession(t *testing.T) {
	g := NewGuard(&fakeAuth{}, &fakeLookup{}, scenarioPermissions(t))

	_, err := g.RequireAuthenticated(newRequest(), "")
	requireRedirect(t, err, DefaultSignInPath, ReasonUnauthenticated)

	_, err = g.RequireAuthenticated(newRequest(), "/login?next=/dashboard")
	requireRedirect(t, err, "/login?next=/dashboard", ReasonUnauthenticated)

	g = NewGuard(&fakeAuth{}, &fakeLookup{}, scenarioPermissions(t), WithSignInPath("/auth/sign-in"))
	_, err = g.RequireAuthenticated(newRequest(), "")
	requireRedirect(t, err, "/auth/sign-in", ReasonUnauthenticated)
}

func TestGuards_UnauthenticatedIgnoresFallback(t *testing.T) {
	lookup := &fakeLookup{roles: map[string]Role{"O/U": RoleOwner}}
	g := NewGuard(&fakeAuth{}, lookup, scenarioPermissions(t))

	_, _, err := g.RequireRole(newRequest(), "O", []Role{RoleOwner}, "/O")
	requireRedirect(t, err, DefaultSignInPath, ReasonUnauthenticated)

	_, _, err = g.RequirePermission(newRequest(), "O", PermRead, "/O")
	requireRedirect(t, err, DefaultSignInPath, ReasonUnauthenticated)

	assert.Equal(t, 0, lookup.callCount(), "membership must not be looked up without a session")
}

func TestRequireRole(t *testing.T) {
	lookup := &fakeLookup{roles: map[string]Role{
		"O/owner":  RoleOwner,
		"O/admin":  RoleAdmin,
		"O/member": RoleMember,
	}}

	tests := []struct {
		name    string
		userID  string
		allowed []Role
		role    Role
		reason  DenyReason
	}{
		{"owner allowed", "owner", []Role{RoleOwner}, RoleOwner, ""},
		{"admin in set", "admin", []Role{RoleOwner, RoleAdmin}, RoleAdmin, ""},
		{"member in full set", "member", AllRoles(), RoleMember, ""},
		{"member outside set", "member", []Role{RoleOwner, RoleAdmin}, "", ReasonRoleNotAllowed},
		{"empty set", "owner", nil, "", ReasonRoleNotAllowed},
		{"not a member", "stranger", AllRoles(), "", ReasonNotMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &fakeAuth{user: &session.User{ID: tt.userID}}
			g := NewGuard(auth, lookup, scenarioPermissions(t))

			user, role, err := g.RequireRole(newRequest(), "O", tt.allowed, "/organizations/O")
			if tt.reason != "" {
				requireRedirect(t, err, "/organizations/O", tt.reason)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.userID, user.ID)
			assert.Equal(t, tt.role, role)
		})
	}
}

func TestRequireRole_DefaultFallback(t *testing.T) {
	g := NewGuard(&fakeAuth{user: &session.User{ID: "U"}}, &fakeLookup{}, scenarioPermissions(t))
	_, _, err := g.RequireRole(newRequest(), "O", AllRoles(), "")
	requireRedirect(t, err, DefaultFallbackPath, ReasonNotMember)

	g = NewGuard(&fakeAuth{user: &session.User{ID: "U"}}, &fakeLookup{}, scenarioPermissions(t), WithDefaultFallback("/home"))
	_, _, err = g.RequireRole(newRequest(), "O", AllRoles(), "")
	requireRedirect(t, err, "/home", ReasonNotMember)
}

func TestRequirePermission_BillingScenario(t *testing.T) {
	lookup := &fakeLookup{roles: map[string]Role{"O/U": RoleAdmin}}
	auth := &fakeAuth{user: &session.User{ID: "U"}}
	g := NewGuard(auth, lookup, scenarioPermissions(t))

	_, _, err := g.RequirePermission(newRequest(), "O", PermManageBilling, "/O")
	requireRedirect(t, err, "/O", ReasonPermissionDenied)

	user, role, err := g.RequirePermission(newRequest(), "O", PermRead, "/O")
	require.NoError(t, err)
	assert.Equal(t, "U", user.ID)
	assert.Equal(t, RoleAdmin, role)
}

func TestRequirePermission_NotMember(t *testing.T) {
	g := NewGuard(&fakeAuth{user: &session.User{ID: "U"}}, &fakeLookup{}, scenarioPermissions(t))

	_, _, err := g.RequirePermission(newRequest(), "O", PermRead, "/O")
	requireRedirect(t, err, "/O", ReasonNotMember)
}

func TestGuards_SingleRoundTrip(t *testing.T) {
	lookup := &fakeLookup{roles: map[string]Role{"O/U": RoleOwner}}
	auth := &fakeAuth{user: &session.User{ID: "U"}}
	g := NewGuard(auth, lookup, scenarioPermissions(t))

	_, _, err := g.RequireRole(newRequest(), "O", []Role{RoleOwner}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, auth.calls)
	assert.Equal(t, 1, lookup.callCount())

	_, _, err = g.RequirePermission(newRequest(), "O", PermManageBilling, "")
	require.NoError(t, err)
	assert.Equal(t, 2, auth.calls)
	assert.Equal(t, 2, lookup.callCount())
}

func TestGuards_CollaboratorErrors(t *testing.T) {
	sessionErr := errors.New("session store down")
	g := NewGuard(&fakeAuth{err: sessionErr}, &fakeLookup{}, scenarioPermissions(t))

	_, err := g.RequireAuthenticated(newRequest(), "")
	assert.Equal(t, sessionErr, err)
	_, _, err = g.RequireRole(newRequest(), "O", AllRoles(), "")
	assert.Equal(t, sessionErr, err)

	lookupErr := errors.New("database down")
	g = NewGuard(&fakeAuth{user: &session.User{ID: "U"}}, &fakeLookup{err: lookupErr}, scenarioPermissions(t))
	_, _, err = g.RequirePermission(newRequest(), "O", PermRead, "")
	assert.Equal(t, lookupErr, err)
	_, isRedirect := AsRedirect(err)
	assert.False(t, isRedirect)
}

func TestGuards_RecordDecisions(t *testing.T) {
	lookup := &fakeLookup{roles: map[string]Role{"O/U": RoleMember}}
	decisions := &decisionLog{}
	g := NewGuard(&fakeAuth{user: &session.User{ID: "U"}}, lookup, scenarioPermissions(t), WithRecorder(decisions))

	_, _ = g.RequireAuthenticated(newRequest(), "")
	_, _, _ = g.RequireRole(newRequest(), "O", []Role{RoleOwner}, "")
	_, _, _ = g.RequirePermission(newRequest(), "O", PermRead, "")

	lookup.err = errors.New("boom")
	_, _, _ = g.RequirePermission(newRequest(), "O", PermRead, "")

	assert.Equal(t, []string{
		"authenticated:allow",
		"role:deny",
		"permission:allow",
		"permission:error",
	}, decisions.outcomes)
}

func TestGuards_AuditDenials(t *testing.T) {
	lookup := &fakeLookup{roles: map[string]Role{"O/U": RoleAdmin}}
	events := &auditCapture{}
	g := NewGuard(&fakeAuth{user: &session.User{ID: "U"}}, lookup, scenarioPermissions(t), WithAuditLogger(events))

	_, _, err := g.RequirePermission(newRequest(), "O", PermManageBilling, "/organizations/O")
	require.Error(t, err)

	require.Len(t, events.events, 1)
	event := events.events[0]
	assert.Equal(t, audit.EventTypeAuthzAccessDenied, event.EventType)
	assert.Equal(t, audit.EventStatusDenied, event.Status)
	assert.Equal(t, "U", event.UserID)
	assert.Equal(t, "O", event.OrganizationID)
	assert.Equal(t, string(ReasonPermissionDenied), event.Message)
	assert.Equal(t, "/organizations/O/billing", event.Path)
	assert.Equal(t, "manage:billing", event.Metadata["permission"])
	assert.Equal(t, "admin", event.Metadata["role"])
	assert.Equal(t, "/organizations/O", event.Metadata["redirect"])

	// anonymous callers and granted checks are not audited
	anonymous := NewGuard(&fakeAuth{}, lookup, scenarioPermissions(t), WithAuditLogger(events))
	_, _, _ = anonymous.RequireRole(newRequest(), "O", AllRoles(), "")
	_, _, _ = g.RequirePermission(newRequest(), "O", PermRead, "")
	assert.Len(t, events.events, 1)
}
