package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/orgportal/pkg/middleware"
	"github.com/platinummonkey/orgportal/pkg/observability"
	"github.com/platinummonkey/orgportal/pkg/orgs"
	"github.com/platinummonkey/orgportal/pkg/rbac"
)

const recentActivityLimit = 50

// page serves a template that needs no data beyond the title
func (s *Server) page(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, name, &pageData{Title: title})
	}
}

// dashboard handles GET /dashboard
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	user := rbac.UserFromContext(r.Context())

	list, err := s.orgs.ListUserOrganizations(r.Context(), user.ID)
	if err != nil {
		s.pageError(w, r, err, "Failed to list organizations")
		return
	}

	s.renderPage(w, r, "dashboard", &pageData{Title: "Dashboard", User: user, Orgs: list})
}

// profile handles GET /profile
func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	user := rbac.UserFromContext(r.Context())

	p, err := s.users.GetProfile(r.Context(), user.ID)
	if err != nil {
		s.pageError(w, r, err, "Failed to load profile")
		return
	}

	s.renderPage(w, r, "profile", &pageData{Title: "Profile", User: user, Profile: p})
}

// orgOverview handles GET /organizations/{orgId}
func (s *Server) orgOverview(w http.ResponseWriter, r *http.Request) {
	data, ok := s.orgPageData(w, r, true)
	if !ok {
		return
	}
	data.Permissions = s.perms.Permissions(data.Role)
	s.renderPage(w, r, "org", data)
}

// orgUsers handles GET /organizations/{orgId}/users
func (s *Server) orgUsers(w http.ResponseWriter, r *http.Request) {
	data, ok := s.orgPageData(w, r, true)
	if !ok {
		return
	}
	data.Title = "Members · " + data.Org.Name
	s.renderPage(w, r, "users", data)
}

// orgSettings handles GET /organizations/{orgId}/settings
func (s *Server) orgSettings(w http.ResponseWriter, r *http.Request) {
	data, ok := s.orgPageData(w, r, false)
	if !ok {
		return
	}
	data.Title = "Settings · " + data.Org.Name
	s.renderPage(w, r, "settings", data)
}

// orgBilling handles GET /organizations/{orgId}/billing
func (s *Server) orgBilling(w http.ResponseWriter, r *http.Request) {
	data, ok := s.orgPageData(w, r, true)
	if !ok {
		return
	}
	data.Title = "Billing · " + data.Org.Name
	s.renderPage(w, r, "billing", data)
}

// orgAdmin handles GET /organizations/{orgId}/admin
func (s *Server) orgAdmin(w http.ResponseWriter, r *http.Request) {
	data, ok := s.orgPageData(w, r, true)
	if !ok {
		return
	}
	data.Title = "Admin · " + data.Org.Name

	if s.activity != nil {
		events, err := s.activity.ListByOrganization(r.Context(), data.Org.ID, recentActivityLimit)
		if err != nil {
			s.pageError(w, r, err, "Failed to load recent activity")
			return
		}
		data.Events = events
	}
	s.renderPage(w, r, "admin", data)
}

// demo handles GET /demo/{level}. Any signed-in user may open every level;
// the page shows what that role would be granted, it grants nothing itself.
func (s *Server) demo(w http.ResponseWriter, r *http.Request) {
	role, err := rbac.ParseRole(mux.Vars(r)["level"])
	if err != nil {
		http.NotFound(w, r)
		return
	}

	data := &pageData{
		Title: initial(string(role)) + string(role)[1:] + " Demo",
		User:  rbac.UserFromContext(r.Context()),
		Role:  role,
	}
	for _, p := range rbac.AllPermissions() {
		data.Access = append(data.Access, permissionAccess{Permission: p, Granted: s.perms.RoleHasPermission(role, p)})
	}
	s.renderPage(w, r, "demo", data)
}

// orgPageData collects what every organization page shows. The guard and
// org context middleware have already run, so user, role, and organization
// are all present.
func (s *Server) orgPageData(w http.ResponseWriter, r *http.Request, withMembers bool) (*pageData, bool) {
	ctx := r.Context()
	role, _ := rbac.RoleFromContext(ctx)
	data := &pageData{
		User: rbac.UserFromContext(ctx),
		Org:  middleware.OrgFromContext(ctx),
		Role: role,
	}
	data.Title = data.Org.Name

	if withMembers {
		members, err := s.orgs.ListMembers(ctx, data.Org.ID)
		if err != nil {
			s.pageError(w, r, err, "Failed to list members")
			return nil, false
		}
		data.Members = members
		data.OwnerCount, data.AdminCount = countRoles(members)
	}
	return data, true
}

func countRoles(members []*orgs.Member) (owners, admins int) {
	for _, m := range members {
		switch m.Role {
		case rbac.RoleOwner:
			owners++
		case rbac.RoleAdmin:
			admins++
		}
	}
	return owners, admins
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name string, data *pageData) {
	if err := s.pages.render(w, name, data); err != nil {
		s.pageError(w, r, err, "Failed to render page")
	}
}

func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	observability.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error(msg)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
