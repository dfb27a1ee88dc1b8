package web

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/orgportal/pkg/audit"
	"github.com/platinummonkey/orgportal/pkg/httputil"
	"github.com/platinummonkey/orgportal/pkg/middleware"
	"github.com/platinummonkey/orgportal/pkg/observability"
	"github.com/platinummonkey/orgportal/pkg/orgs"
	"github.com/platinummonkey/orgportal/pkg/rbac"
	"github.com/platinummonkey/orgportal/pkg/users"
)

// ProfileService reads and updates the signed-in user's profile
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*users.Profile, error)
	UpdateProfile(ctx context.Context, userID string, upd users.ProfileUpdate) (*users.Profile, error)
}

// ActivityReader lists recent audit events of an organization
type ActivityReader interface {
	ListByOrganization(ctx context.Context, orgID string, limit int) ([]*audit.Event, error)
}

// Config wires the server's collaborators. Guard, Orgs, and Users are
// required; everything else is optional.
type Config struct {
	Guard    *rbac.Guard
	Orgs     orgs.Service
	Users    ProfileService
	Audit    audit.Logger
	Activity ActivityReader
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Health   *observability.HealthChecker
	Limiter  middleware.Limiter
}

// Server serves the portal pages and JSON API
type Server struct {
	router   *mux.Router
	guard    *rbac.Guard
	perms    *rbac.PermissionMap
	orgs     orgs.Service
	users    ProfileService
	audit    audit.Logger
	activity ActivityReader
	logger   *observability.Logger
	limiter  middleware.Limiter
	pages    *renderer
}

// NewServer creates the server and registers every route
func NewServer(cfg Config) (*Server, error) {
	if cfg.Guard == nil || cfg.Orgs == nil || cfg.Users == nil {
		return nil, errors.New("web: guard, organization service, and profile service are required")
	}

	pages, err := newRenderer(cfg.Guard.Permissions())
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   mux.NewRouter(),
		guard:    cfg.Guard,
		perms:    cfg.Guard.Permissions(),
		orgs:     cfg.Orgs,
		users:    cfg.Users,
		audit:    cfg.Audit,
		activity: cfg.Activity,
		logger:   cfg.Logger,
		limiter:  cfg.Limiter,
		pages:    pages,
	}
	if s.audit == nil {
		s.audit = audit.NoOp()
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, io.Discard)
	}

	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	if cfg.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics))
	}

	if cfg.Health != nil {
		s.router.HandleFunc("/health", cfg.Health.Readiness).Methods(http.MethodGet)
		s.router.HandleFunc("/health/live", cfg.Health.Liveness).Methods(http.MethodGet)
		s.router.HandleFunc("/health/ready", cfg.Health.Readiness).Methods(http.MethodGet)
	}
	if cfg.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(cfg.Registry)).Methods(http.MethodGet)
	}

	s.RegisterRoutes(s.router)
	return s, nil
}

// RegisterRoutes registers the page and API routes
func (s *Server) RegisterRoutes(router *mux.Router) {
	// Public pages
	router.HandleFunc("/", s.page("home", "")).Methods(http.MethodGet)
	router.HandleFunc("/sign-in", s.page("sign-in", "Sign in")).Methods(http.MethodGet)
	router.HandleFunc("/sign-up", s.page("sign-up", "Sign up")).Methods(http.MethodGet)

	// Authenticated pages
	authenticated := s.guard.Authenticated("")
	router.Handle("/dashboard", authenticated(http.HandlerFunc(s.dashboard))).Methods(http.MethodGet)
	router.Handle("/profile", authenticated(http.HandlerFunc(s.profile))).Methods(http.MethodGet)
	router.Handle("/demo/{level:member|admin|owner}", authenticated(http.HandlerFunc(s.demo))).Methods(http.MethodGet)

	// Organization pages
	orgContext := middleware.OrgContextMiddleware(s.orgs)
	overview := rbac.FallbackOrgOverview
	router.Handle("/organizations/{orgId}", httputil.Chain(
		s.guard.Role(nil, rbac.AllRoles()...), orgContext,
	)(http.HandlerFunc(s.orgOverview))).Methods(http.MethodGet)
	router.Handle("/organizations/{orgId}/users", httputil.Chain(
		s.guard.Role(overview, rbac.RoleOwner, rbac.RoleAdmin), orgContext,
	)(http.HandlerFunc(s.orgUsers))).Methods(http.MethodGet)
	router.Handle("/organizations/{orgId}/settings", httputil.Chain(
		s.guard.Role(overview, rbac.RoleOwner, rbac.RoleAdmin), orgContext,
	)(http.HandlerFunc(s.orgSettings))).Methods(http.MethodGet)
	router.Handle("/organizations/{orgId}/billing", httputil.Chain(
		s.guard.Permission(rbac.PermManageBilling, overview), orgContext,
	)(http.HandlerFunc(s.orgBilling))).Methods(http.MethodGet)
	router.Handle("/organizations/{orgId}/admin", httputil.Chain(
		s.guard.Role(overview, rbac.RoleOwner), orgContext,
	)(http.HandlerFunc(s.orgAdmin))).Methods(http.MethodGet)

	// JSON API
	api := router.PathPrefix("/api").Subrouter()
	api.Handle("/organizations", s.guard.APIAuthenticated()(
		http.HandlerFunc(s.listOrganizations))).Methods(http.MethodGet)
	api.Handle("/organizations/create", s.mutation(s.guard.APIAuthenticated(),
		s.createOrganization)).Methods(http.MethodPost)
	api.Handle("/profile/update", s.mutation(s.guard.APIAuthenticated(),
		s.updateProfile)).Methods(http.MethodPost)
	api.Handle("/organizations/{orgId}/members", s.guard.APIPermission(rbac.PermRead)(
		http.HandlerFunc(s.listMembers))).Methods(http.MethodGet)
	api.Handle("/organizations/{orgId}/members/add", s.mutation(s.guard.APIPermission(rbac.PermManageUsers),
		s.addMember)).Methods(http.MethodPost)
	api.Handle("/organizations/{orgId}/members/{userId}/role", s.mutation(s.guard.APIPermission(rbac.PermManageUsers),
		s.updateMemberRole)).Methods(http.MethodPost)
	api.Handle("/organizations/{orgId}/members/{userId}/remove", s.mutation(s.guard.APIPermission(rbac.PermManageUsers),
		s.removeMember)).Methods(http.MethodPost)
	api.Handle("/organizations/{orgId}/transfer-ownership", s.mutation(s.guard.APIRole(rbac.RoleOwner),
		s.transferOwnership)).Methods(http.MethodPost)
}

// mutation puts the rate limiter between guard and handler so limits are
// keyed by the authenticated user.
func (s *Server) mutation(guard func(http.Handler) http.Handler, h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return guard(h)
	}
	return httputil.Chain(guard, middleware.RateLimit(s.limiter, s.logger))(h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the server wrapped in OpenTelemetry HTTP instrumentation
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s, "orgportal")
}

// Router exposes the underlying router for additional registrations
func (s *Server) Router() *mux.Router {
	return s.router
}
