// Package middleware provides HTTP middleware for organization context and
// rate limiting.
//
// # Middleware Components
//
// OrgContextMiddleware: loads the {orgId} organization into the context
//
//	r.Handle("/organizations/{orgId}/users",
//		guard.Role(rbac.FallbackOrgOverview, rbac.RoleOwner, rbac.RoleAdmin)(
//			middleware.OrgContextMiddleware(orgService)(usersPage)))
//
// RateLimit: per-user limits for API mutations, backed by either an
// in-process token bucket (RateLimiter) or a Redis fixed window
// (DistributedRateLimiter) shared across instances
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
//	api.Use(middleware.RateLimit(limiter, logger))
//
// Limiter failures fail open and are logged.
package middleware
