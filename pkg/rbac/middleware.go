package rbac

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/orgportal/pkg/contextkeys"
	"github.com/platinummonkey/orgportal/pkg/httputil"
	"github.com/platinummonkey/orgportal/pkg/session"
)

// OrgIDVar is the route variable holding the organization ID
const OrgIDVar = "orgId"

// FallbackFunc computes the redirect target for a failed role or permission check
type FallbackFunc func(r *http.Request) string

// FallbackTo always redirects to path
func FallbackTo(path string) FallbackFunc {
	return func(*http.Request) string { return path }
}

// FallbackOrgOverview redirects to the overview page of the requested organization
func FallbackOrgOverview(r *http.Request) string {
	return "/organizations/" + url.PathEscape(mux.Vars(r)[OrgIDVar])
}

// UserFromContext returns the user stored by a guard middleware
func UserFromContext(ctx context.Context) *session.User {
	user, _ := ctx.Value(contextkeys.UserKey).(*session.User)
	return user
}

// RoleFromContext returns the organization role stored by a role or permission middleware
func RoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(contextkeys.RoleKey).(Role)
	return role, ok && role != ""
}

func withPrincipal(r *http.Request, user *session.User, role Role) *http.Request {
	ctx := contextkeys.WithUser(r.Context(), user)
	ctx = contextkeys.WithUserID(ctx, user.ID)
	if role != "" {
		ctx = contextkeys.WithRole(ctx, role)
	}
	return r.WithContext(ctx)
}

type checkFunc func(r *http.Request) (*session.User, Role, error)
type denyFunc func(w http.ResponseWriter, r *http.Request, err error)

func (g *Guard) middleware(check checkFunc, deny denyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, role, err := check(r)
			if err != nil {
				deny(w, r, err)
				return
			}
			next.ServeHTTP(w, withPrincipal(r, user, role))
		})
	}
}

// redirectDeny ends page requests with a redirect, or a 500 when a collaborator failed
func redirectDeny(w http.ResponseWriter, r *http.Request, err error) {
	if redirect, ok := AsRedirect(err); ok {
		http.Redirect(w, r, redirect.Target, http.StatusSeeOther)
		return
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// jsonDeny ends API requests with a JSON status instead of navigation
func jsonDeny(w http.ResponseWriter, r *http.Request, err error) {
	redirect, ok := AsRedirect(err)
	switch {
	case !ok:
		httputil.WriteInternalError(w)
	case redirect.Reason == ReasonUnauthenticated:
		httputil.WriteUnauthorized(w, "Unauthorized")
	default:
		httputil.WriteForbidden(w, "Forbidden")
	}
}

func (g *Guard) authenticatedCheck(redirectTo string) checkFunc {
	return func(r *http.Request) (*session.User, Role, error) {
		user, err := g.RequireAuthenticated(r, redirectTo)
		return user, "", err
	}
}

func (g *Guard) roleCheck(fallback FallbackFunc, roles []Role) checkFunc {
	return func(r *http.Request) (*session.User, Role, error) {
		target := ""
		if fallback != nil {
			target = fallback(r)
		}
		return g.RequireRole(r, mux.Vars(r)[OrgIDVar], roles, target)
	}
}

func (g *Guard) permissionCheck(p Permission, fallback FallbackFunc) checkFunc {
	return func(r *http.Request) (*session.User, Role, error) {
		target := ""
		if fallback != nil {
			target = fallback(r)
		}
		return g.RequirePermission(r, mux.Vars(r)[OrgIDVar], p, target)
	}
}

// Authenticated redirects requests without a session to redirectTo
// (the sign-in path when empty).
func (g *Guard) Authenticated(redirectTo string) func(http.Handler) http.Handler {
	return g.middleware(g.authenticatedCheck(redirectTo), redirectDeny)
}

// Role requires one of roles in the organization named by the {orgId} route variable
func (g *Guard) Role(fallback FallbackFunc, roles ...Role) func(http.Handler) http.Handler {
	return g.middleware(g.roleCheck(fallback, roles), redirectDeny)
}

// Permission requires p in the organization named by the {orgId} route variable
func (g *Guard) Permission(p Permission, fallback FallbackFunc) func(http.Handler) http.Handler {
	return g.middleware(g.permissionCheck(p, fallback), redirectDeny)
}

// APIAuthenticated answers 401 JSON to requests without a session
func (g *Guard) APIAuthenticated() func(http.Handler) http.Handler {
	return g.middleware(g.authenticatedCheck(""), jsonDeny)
}

// APIRole answers 401/403 JSON unless the caller holds one of roles
func (g *Guard) APIRole(roles ...Role) func(http.Handler) http.Handler {
	return g.middleware(g.roleCheck(nil, roles), jsonDeny)
}

// APIPermission answers 401/403 JSON unless the caller's role is granted p
func (g *Guard) APIPermission(p Permission) func(http.Handler) http.Handler {
	return g.middleware(g.permissionCheck(p, nil), jsonDeny)
}
