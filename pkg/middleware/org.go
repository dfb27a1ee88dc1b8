package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/orgportal/pkg/contextkeys"
	"github.com/platinummonkey/orgportal/pkg/observability"
	"github.com/platinummonkey/orgportal/pkg/orgs"
	"github.com/platinummonkey/orgportal/pkg/rbac"
)

// OrganizationGetter loads an organization by ID
type OrganizationGetter interface {
	GetOrganization(ctx context.Context, id string) (*orgs.Organization, error)
}

// OrgContextMiddleware loads the organization named by the {orgId} route
// variable into the request context. Routes without the variable pass
// through unchanged. It runs after the guard, so callers that reach it are
// already known to be members.
func OrgContextMiddleware(orgService OrganizationGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, ok := mux.Vars(r)[rbac.OrgIDVar]
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			org, err := orgService.GetOrganization(r.Context(), orgID)
			if errors.Is(err, orgs.ErrOrgNotFound) {
				http.Error(w, "Organization not found", http.StatusNotFound)
				return
			}
			if err != nil {
				observability.FromContext(r.Context()).WithError(err).
					WithField("org_id", orgID).Error("Failed to load organization")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			ctx := contextkeys.WithOrg(r.Context(), org)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OrgFromContext returns the organization stored by OrgContextMiddleware
func OrgFromContext(ctx context.Context) *orgs.Organization {
	org, _ := ctx.Value(contextkeys.OrgKey).(*orgs.Organization)
	return org
}
