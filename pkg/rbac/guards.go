package rbac

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/orgportal/pkg/audit"
	"github.com/platinummonkey/orgportal/pkg/observability"
	"github.com/platinummonkey/orgportal/pkg/session"
)

var tracer = otel.Tracer("orgportal/rbac")

const (
	// DefaultSignInPath is where unauthenticated callers are sent
	DefaultSignInPath = "/sign-in"
	// DefaultFallbackPath is where callers failing a role or permission check are sent
	DefaultFallbackPath = "/dashboard"
)

// DenyReason says which check sent the caller away
type DenyReason string

const (
	ReasonUnauthenticated  DenyReason = "unauthenticated"
	ReasonNotMember        DenyReason = "not_member"
	ReasonRoleNotAllowed   DenyReason = "role_not_allowed"
	ReasonPermissionDenied DenyReason = "permission_denied"
)

// RedirectError is a terminal guard outcome: the request must end with a
// redirect to Target and no further handler code may run.
type RedirectError struct {
	Target string
	Reason DenyReason
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s: %s", e.Target, e.Reason)
}

// AsRedirect extracts a RedirectError from err
func AsRedirect(err error) (*RedirectError, bool) {
	var re *RedirectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// Authenticator returns the user of the request's session, or nil when
// there is none.
type Authenticator interface {
	CurrentUser(r *http.Request) (*session.User, error)
}

// DecisionRecorder receives one event per guard decision
type DecisionRecorder interface {
	RecordAuthzDecision(guard, outcome string)
}

// Guard enforces authentication, role, and permission preconditions
type Guard struct {
	auth       Authenticator
	lookup     MembershipLookup
	perms      *PermissionMap
	signInPath string
	fallback   string
	logger     *observability.Logger
	recorder   DecisionRecorder
	audit      audit.Logger
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithSignInPath sets the default redirect for unauthenticated callers
func WithSignInPath(path string) GuardOption {
	return func(g *Guard) {
		if path != "" {
			g.signInPath = path
		}
	}
}

// WithDefaultFallback sets the redirect used when a check passes no fallback
func WithDefaultFallback(path string) GuardOption {
	return func(g *Guard) {
		if path != "" {
			g.fallback = path
		}
	}
}

// WithLogger sets the decision logger
func WithLogger(logger *observability.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger.WithField("component", "rbac")
		}
	}
}

// WithRecorder sets the metrics sink for decisions
func WithRecorder(recorder DecisionRecorder) GuardOption {
	return func(g *Guard) {
		g.recorder = recorder
	}
}

// WithAuditLogger sets where denials are recorded
func WithAuditLogger(logger audit.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.audit = logger
		}
	}
}

// NewGuard creates a guard over the session authenticator, membership lookup, and permission map
func NewGuard(auth Authenticator, lookup MembershipLookup, perms *PermissionMap, opts ...GuardOption) *Guard {
	g := &Guard{
		auth:       auth,
		lookup:     lookup,
		perms:      perms,
		signInPath: DefaultSignInPath,
		fallback:   DefaultFallbackPath,
		logger:     observability.NewLogger(observability.InfoLevel, io.Discard),
		audit:      audit.NoOp(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Permissions returns the permission map the guard checks against
func (g *Guard) Permissions() *PermissionMap {
	return g.perms
}

// RequireAuthenticated returns the session user or a RedirectError to
// redirectTo (the sign-in path when empty).
func (g *Guard) RequireAuthenticated(r *http.Request, redirectTo string) (*session.User, error) {
	ctx, span := tracer.Start(r.Context(), "rbac.RequireAuthenticated")
	defer span.End()

	user, err := g.authenticate(r.WithContext(ctx), redirectTo)
	g.finish(ctx, span, r, decision{guard: "authenticated", user: user, err: err})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RequireRole authenticates the caller, then requires an active membership
// in orgID whose role is one of allowed. Failing authentication always
// redirects to the sign-in path, never to fallback.
func (g *Guard) RequireRole(r *http.Request, orgID string, allowed []Role, fallback string) (*session.User, Role, error) {
	ctx, span := tracer.Start(r.Context(), "rbac.RequireRole",
		trace.WithAttributes(attribute.String("org.id", orgID)))
	defer span.End()

	user, role, err := g.resolve(ctx, r, orgID, fallback, func(role Role) bool {
		return CheckRole(role, allowed...)
	}, ReasonRoleNotAllowed)
	g.finish(ctx, span, r, decision{guard: "role", orgID: orgID, user: user, role: role, err: err})
	if err != nil {
		return nil, "", err
	}
	return user, role, nil
}

// RequirePermission authenticates the caller, then requires that their role
// in orgID is among the roles granted p.
func (g *Guard) RequirePermission(r *http.Request, orgID string, p Permission, fallback string) (*session.User, Role, error) {
	ctx, span := tracer.Start(r.Context(), "rbac.RequirePermission",
		trace.WithAttributes(
			attribute.String("org.id", orgID),
			attribute.String("rbac.permission", string(p)),
		))
	defer span.End()

	user, role, err := g.resolve(ctx, r, orgID, fallback, func(role Role) bool {
		return CheckRole(role, g.perms.PermissionAllowed(p)...)
	}, ReasonPermissionDenied)
	g.finish(ctx, span, r, decision{guard: "permission", orgID: orgID, permission: p, user: user, role: role, err: err})
	if err != nil {
		return nil, "", err
	}
	return user, role, nil
}

// authenticate performs the single session round trip
func (g *Guard) authenticate(r *http.Request, redirectTo string) (*session.User, error) {
	user, err := g.auth.CurrentUser(r)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if redirectTo == "" {
			redirectTo = g.signInPath
		}
		return nil, &RedirectError{Target: redirectTo, Reason: ReasonUnauthenticated}
	}
	return user, nil
}

// resolve authenticates, performs the single membership lookup, and applies allow.
// The user is returned alongside a denial so it can be recorded.
func (g *Guard) resolve(ctx context.Context, r *http.Request, orgID, fallback string, allow func(Role) bool, reason DenyReason) (*session.User, Role, error) {
	user, err := g.authenticate(r.WithContext(ctx), "")
	if err != nil {
		return nil, "", err
	}

	if fallback == "" {
		fallback = g.fallback
	}

	role, ok, err := g.lookup.GetUserRole(ctx, user.ID, orgID)
	if err != nil {
		return user, "", err
	}
	if !ok {
		return user, "", &RedirectError{Target: fallback, Reason: ReasonNotMember}
	}
	if !allow(role) {
		return user, role, &RedirectError{Target: fallback, Reason: reason}
	}
	return user, role, nil
}

type decision struct {
	guard      string
	orgID      string
	permission Permission
	user       *session.User
	role       Role
	err        error
}

// finish logs, counts, traces, and audits one decision
func (g *Guard) finish(ctx context.Context, span trace.Span, r *http.Request, d decision) {
	fields := map[string]interface{}{"guard": d.guard, "path": r.URL.Path}
	if d.orgID != "" {
		fields["org_id"] = d.orgID
	}
	if d.user != nil {
		fields["user_id"] = d.user.ID
	}
	if d.role != "" {
		fields["role"] = string(d.role)
	}
	if d.permission != "" {
		fields["permission"] = string(d.permission)
	}
	logger := g.logger.WithFields(fields)

	outcome := "allow"
	redirect, denied := AsRedirect(d.err)
	switch {
	case d.err == nil:
		logger.Debug("Access granted")
	case denied:
		outcome = "deny"
		span.SetAttributes(attribute.String("rbac.deny_reason", string(redirect.Reason)))
		logger.WithField("reason", string(redirect.Reason)).Info("Access denied")
		if d.user != nil {
			g.auditDenial(ctx, r, d, redirect)
		}
	default:
		outcome = "error"
		span.RecordError(d.err)
		span.SetStatus(codes.Error, d.err.Error())
		logger.WithError(d.err).Error("Authorization check failed")
	}

	span.SetAttributes(attribute.String("rbac.outcome", outcome))
	if g.recorder != nil {
		g.recorder.RecordAuthzDecision(d.guard, outcome)
	}
}

func (g *Guard) auditDenial(ctx context.Context, r *http.Request, d decision, redirect *RedirectError) {
	event := audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied).FromRequest(r)
	event.OrganizationID = d.orgID
	if d.user != nil {
		event.UserID = d.user.ID
	}
	event.Message = string(redirect.Reason)
	event.Metadata = map[string]interface{}{
		"guard":    d.guard,
		"redirect": redirect.Target,
	}
	if d.role != "" {
		event.Metadata["role"] = string(d.role)
	}
	if d.permission != "" {
		event.Metadata["permission"] = string(d.permission)
	}

	if err := g.audit.Log(ctx, event); err != nil {
		g.logger.WithError(err).Warn("Failed to record access denial")
	}
}
