// Package rbac implements organization-scoped role-based access control.
//
// # Overview
//
// Users hold exactly one role per organization through a membership:
//
//   - owner: full control, including billing and ownership transfer
//   - admin: manages members and content
//   - member: read access
//
// Roles map to permissions through a PermissionMap built once at startup
// from a Config (the built-in DefaultConfig or a YAML policy file). The
// map is immutable and safe for concurrent use.
//
// # Policy File
//
//	roles:
//	  owner:  {permissions: [manage:org, manage:users, manage:billing, read, write]}
//	  admin:  {permissions: [manage:users, read, write]}
//	  member: {permissions: [read]}
//
// Unknown role or permission names fail BuildPermissionMap.
//
// # Guards
//
// A Guard resolves the session user, looks up the caller's membership once,
// and either returns the user and role or a *RedirectError:
//
//	user, role, err := guard.RequirePermission(r, orgID, rbac.PermManageBilling, "/organizations/"+orgID)
//	if redirect, ok := rbac.AsRedirect(err); ok {
//		http.Redirect(w, r, redirect.Target, http.StatusSeeOther)
//		return
//	}
//
// Authentication is always checked first: callers without a session are
// sent to the sign-in path, never to the fallback. Membership lookup
// failures are returned unchanged.
//
// Routes usually use the middleware form, which reads {orgId} from the
// gorilla/mux route:
//
//	r.Handle("/organizations/{orgId}/billing",
//		guard.Permission(rbac.PermManageBilling, rbac.FallbackOrgOverview)(billingHandler))
//
// API routes use APIAuthenticated, APIRole, and APIPermission, which answer
// 401/403 JSON instead of redirecting.
//
// # Rendering
//
// CheckRole, CheckPermission, RoleGuard, PermissionGuard, and FuncMap hide
// or show template fragments. They are presentation helpers only.
//
// # Related Packages
//
//   - pkg/session: resolves the session cookie to a user
//   - pkg/orgs: memberships and the last-owner rule
package rbac
