package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/orgportal/pkg/audit"
	"github.com/platinummonkey/orgportal/pkg/httputil"
	"github.com/platinummonkey/orgportal/pkg/observability"
	"github.com/platinummonkey/orgportal/pkg/orgs"
	"github.com/platinummonkey/orgportal/pkg/rbac"
	"github.com/platinummonkey/orgportal/pkg/users"
	"github.com/platinummonkey/orgportal/pkg/validation"
)

// userIDVar is the route variable naming the member being managed
const userIDVar = "userId"

type updateRoleRequest struct {
	Role string `json:"role"`
}

type addMemberRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type transferOwnershipRequest struct {
	UserID string `json:"userId"`
}

// listOrganizations handles GET /api/organizations
func (s *Server) listOrganizations(w http.ResponseWriter, r *http.Request) {
	user := rbac.UserFromContext(r.Context())

	list, err := s.orgs.ListUserOrganizations(r.Context(), user.ID)
	if err != nil {
		s.apiError(w, r, err, "Failed to list organizations")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"organizations": list})
}

// createOrganization handles POST /api/organizations/create
func (s *Server) createOrganization(w http.ResponseWriter, r *http.Request) {
	user := rbac.UserFromContext(r.Context())

	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	created, err := s.orgs.CreateOrganization(r.Context(), req, user.ID)
	if verr, ok := validation.AsError(err); ok {
		httputil.WriteValidationErrors(w, "Invalid input data", fieldErrors(verr))
		return
	}
	if errors.Is(err, orgs.ErrSlugTaken) {
		s.recordMutation(r, audit.EventTypeOrgCreate, "", "", err, map[string]interface{}{"slug": req.Slug})
		httputil.WriteBadRequest(w, "Organization slug already exists")
		return
	}
	if err != nil {
		s.recordMutation(r, audit.EventTypeOrgCreate, "", "", err, nil)
		s.logError(r, err, "Failed to create organization")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "Failed to create organization")
		return
	}

	s.recordMutation(r, audit.EventTypeOrgCreate, created.ID, "", nil, map[string]interface{}{"slug": created.Slug})
	httputil.WriteSuccess(w, map[string]interface{}{
		"message":      "Organization created successfully",
		"organization": created,
	})
}

// updateProfile handles POST /api/profile/update
func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	user := rbac.UserFromContext(r.Context())

	var req users.ProfileUpdate
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	updated, err := s.users.UpdateProfile(r.Context(), user.ID, req)
	if verr, ok := validation.AsError(err); ok && len(verr.Fields) > 0 {
		httputil.WriteBadRequest(w, verr.Fields[0].Message)
		return
	}
	if errors.Is(err, users.ErrEmailTaken) {
		httputil.WriteBadRequest(w, "Email is already taken by another user")
		return
	}
	if err != nil {
		s.recordMutation(r, audit.EventTypeProfileUpdate, "", user.ID, err, nil)
		s.apiError(w, r, err, "Failed to update profile")
		return
	}

	s.recordMutation(r, audit.EventTypeProfileUpdate, "", user.ID, nil, nil)
	httputil.WriteSuccess(w, map[string]interface{}{
		"message": "Profile updated successfully",
		"user":    updated,
	})
}

// listMembers handles GET /api/organizations/{orgId}/members
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)[rbac.OrgIDVar]

	members, err := s.orgs.ListMembers(r.Context(), orgID)
	if err != nil {
		s.apiError(w, r, err, "Failed to list members")
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"members": members})
}

// addMember handles POST /api/organizations/{orgId}/members/add. The
// caller must be allowed to assign the requested role.
func (s *Server) addMember(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)[rbac.OrgIDVar]
	actorRole, _ := rbac.RoleFromContext(r.Context())

	var req addMemberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		httputil.WriteValidationErrors(w, "Invalid input data", []httputil.FieldError{
			{Field: "userId", Message: "userId is required"},
		})
		return
	}
	role, err := rbac.ParseRole(strings.TrimSpace(req.Role))
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid role")
		return
	}
	if !rbac.CanAssign(actorRole, role) {
		httputil.WriteForbidden(w, "Forbidden")
		return
	}

	if _, err := s.users.GetProfile(r.Context(), req.UserID); errors.Is(err, users.ErrUserNotFound) {
		httputil.WriteNotFound(w, "User not found")
		return
	} else if err != nil {
		s.apiError(w, r, err, "Failed to load user")
		return
	}

	added, err := s.orgs.AddMember(r.Context(), orgID, req.UserID, role)
	s.recordMutation(r, audit.EventTypeOrgMemberAdd, orgID, req.UserID, err, map[string]interface{}{
		"role": string(role),
	})
	if errors.Is(err, orgs.ErrAlreadyMember) {
		httputil.WriteConflict(w, "User is already a member")
		return
	}
	if s.writeMembershipError(w, r, err) {
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"message":    "Member added successfully",
		"membership": added,
	})
}

// updateMemberRole handles POST /api/organizations/{orgId}/members/{userId}/role.
// The caller must be able to manage the member's current role and to
// assign the new one.
func (s *Server) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)[rbac.OrgIDVar]
	targetID := mux.Vars(r)[userIDVar]
	actorRole, _ := rbac.RoleFromContext(r.Context())

	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	newRole, err := rbac.ParseRole(strings.TrimSpace(req.Role))
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid role")
		return
	}

	target, err := s.orgs.GetMembership(r.Context(), orgID, targetID)
	if errors.Is(err, orgs.ErrMemberNotFound) {
		httputil.WriteNotFound(w, "Member not found")
		return
	}
	if err != nil {
		s.apiError(w, r, err, "Failed to load membership")
		return
	}

	if !rbac.CanManage(actorRole, target.Role) || !rbac.CanAssign(actorRole, newRole) {
		httputil.WriteForbidden(w, "Forbidden")
		return
	}

	err = s.orgs.UpdateMemberRole(r.Context(), orgID, targetID, newRole)
	s.recordMutation(r, audit.EventTypeOrgMemberRoleChange, orgID, targetID, err, map[string]interface{}{
		"from": string(target.Role),
		"to":   string(newRole),
	})
	if s.writeMembershipError(w, r, err) {
		return
	}
	httputil.WriteSuccess(w, map[string]string{"message": "Member role updated successfully"})
}

// removeMember handles POST /api/organizations/{orgId}/members/{userId}/remove
func (s *Server) removeMember(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)[rbac.OrgIDVar]
	targetID := mux.Vars(r)[userIDVar]
	actorRole, _ := rbac.RoleFromContext(r.Context())

	target, err := s.orgs.GetMembership(r.Context(), orgID, targetID)
	if errors.Is(err, orgs.ErrMemberNotFound) {
		httputil.WriteNotFound(w, "Member not found")
		return
	}
	if err != nil {
		s.apiError(w, r, err, "Failed to load membership")
		return
	}

	if !rbac.CanManage(actorRole, target.Role) {
		httputil.WriteForbidden(w, "Forbidden")
		return
	}

	err = s.orgs.RemoveMember(r.Context(), orgID, targetID)
	s.recordMutation(r, audit.EventTypeOrgMemberRemove, orgID, targetID, err, map[string]interface{}{
		"role": string(target.Role),
	})
	if s.writeMembershipError(w, r, err) {
		return
	}
	httputil.WriteSuccess(w, map[string]string{"message": "Member removed successfully"})
}

// transferOwnership handles POST /api/organizations/{orgId}/transfer-ownership
func (s *Server) transferOwnership(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)[rbac.OrgIDVar]
	user := rbac.UserFromContext(r.Context())

	var req transferOwnershipRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		httputil.WriteValidationErrors(w, "Invalid input data", []httputil.FieldError{
			{Field: "userId", Message: "userId is required"},
		})
		return
	}

	err := s.orgs.TransferOwnership(r.Context(), orgID, user.ID, req.UserID)
	s.recordMutation(r, audit.EventTypeOrgOwnershipTransfer, orgID, req.UserID, err, nil)
	if s.writeMembershipError(w, r, err) {
		return
	}
	httputil.WriteSuccess(w, map[string]string{"message": "Ownership transferred successfully"})
}

// writeMembershipError maps membership mutation failures to responses.
// It reports whether a response was written.
func (s *Server) writeMembershipError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, orgs.ErrLastOwner):
		httputil.WriteConflict(w, "Organization must keep at least one owner")
	case errors.Is(err, orgs.ErrMemberNotFound):
		httputil.WriteNotFound(w, "Member not found")
	case errors.Is(err, orgs.ErrOrgNotFound):
		httputil.WriteNotFound(w, "Organization not found")
	case errors.Is(err, orgs.ErrSameUser):
		httputil.WriteBadRequest(w, "Ownership can only be transferred to another member")
	case errors.Is(err, orgs.ErrNotOwner):
		httputil.WriteForbidden(w, "Forbidden")
	case errors.Is(err, rbac.ErrUnknownRole):
		httputil.WriteBadRequest(w, "Invalid role")
	default:
		s.apiError(w, r, err, "Membership update failed")
	}
	return true
}

func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	s.logError(r, err, msg)
	httputil.WriteInternalError(w)
}

func (s *Server) logError(r *http.Request, err error, msg string) {
	observability.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error(msg)
}

// recordMutation writes one audit event for an attempted mutation
func (s *Server) recordMutation(r *http.Request, eventType audit.EventType, orgID, targetID string, err error, metadata map[string]interface{}) {
	status := audit.EventStatusSuccess
	if err != nil {
		status = audit.EventStatusFailure
	}

	event := audit.NewEvent(r.Context(), eventType, status).FromRequest(r)
	event.UserID = rbac.UserFromContext(r.Context()).ID
	event.OrganizationID = orgID
	event.TargetID = targetID
	event.Metadata = metadata
	if err != nil {
		event.Message = err.Error()
	}

	if logErr := s.audit.Log(r.Context(), event); logErr != nil {
		s.logError(r, logErr, "Failed to record audit event")
	}
}

func fieldErrors(verr *validation.Error) []httputil.FieldError {
	out := make([]httputil.FieldError, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		out = append(out, httputil.FieldError{Field: f.Field, Message: f.Message})
	}
	return out
}
