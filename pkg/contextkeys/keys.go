// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys shared across packages must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/orgportal/pkg/contextkeys"
//	ctx = contextkeys.WithUser(ctx, user)
//	user, _ := ctx.Value(contextkeys.UserKey).(*session.User)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserKey contains *session.User
	// Set by: rbac guard middleware (pkg/rbac/middleware.go)
	// Required by: page and API handlers behind a guard
	// Type: *session.User
	UserKey Key = "user"

	// RoleKey contains rbac.Role
	// Set by: rbac role/permission middleware
	// Required by: org-scoped handlers and templates
	// Type: rbac.Role
	RoleKey Key = "role"

	// OrgKey contains *orgs.Organization
	// Set by: middleware.OrgContextMiddleware (pkg/middleware/org.go)
	// Required by: org-scoped pages
	// Type: *orgs.Organization
	OrgKey Key = "organization"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, audit trail
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: rbac guard middleware after authentication
	// Used by: Logger, audit trail
	// Type: string
	UserIDKey Key = "user_id"
)

// WithUser adds the authenticated user to the context
func WithUser(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// WithRole adds the resolved organization role to the context
func WithRole(ctx context.Context, role interface{}) context.Context {
	return context.WithValue(ctx, RoleKey, role)
}

// WithOrg adds organization to the context
func WithOrg(ctx context.Context, org interface{}) context.Context {
	return context.WithValue(ctx, OrgKey, org)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
