package orgs

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/orgportal/pkg/rbac"
)

var (
	ErrOrgNotFound    = errors.New("organization not found")
	ErrSlugTaken      = errors.New("organization slug already exists")
	ErrMemberNotFound = errors.New("membership not found")
	ErrAlreadyMember  = errors.New("user is already a member of the organization")
	ErrLastOwner      = errors.New("organization must keep at least one owner")
	ErrSameUser       = errors.New("ownership can only be transferred to another member")
	ErrNotOwner       = errors.New("only an owner can transfer ownership")
)

// MembershipStatus is the lifecycle state of a membership
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipRemoved MembershipStatus = "removed"
)

// Organization is a tenant that users belong to through memberships
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Membership links a user to an organization with exactly one role
type Membership struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	OrgID     string           `json:"orgId"`
	Role      rbac.Role        `json:"role"`
	Status    MembershipStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Member is an active membership with the user's profile fields
type Member struct {
	Membership
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// DisplayName returns the member's name, falling back to the email
func (m *Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Email
}

// UserOrganization is an organization together with the caller's role in it
type UserOrganization struct {
	Organization
	Role rbac.Role `json:"role"`
}

// CreatedOrganization is returned by CreateOrganization
type CreatedOrganization struct {
	Organization
	Memberships []Membership `json:"memberships"`
}

// CreateOrgRequest is the payload for creating an organization.
// Slug is derived from Name when empty.
type CreateOrgRequest struct {
	Name string `json:"name" validate:"required,min=2" msg_required:"Organization name is required" msg_min:"Organization name must be at least 2 characters"`
	Slug string `json:"slug,omitempty" validate:"omitempty,min=2,slug" msg_min:"Slug must be at least 2 characters" msg_slug:"Slug can only contain lowercase letters, numbers, and hyphens"`
}

// RoleCacheInvalidator drops cached role lookups after a membership change
type RoleCacheInvalidator interface {
	Invalidate(userID, orgID string)
}

// MutationRecorder counts membership and organization mutations
type MutationRecorder interface {
	RecordOrgMutation(operation string, err error)
}

// Service manages organizations and their memberships
type Service interface {
	CreateOrganization(ctx context.Context, req CreateOrgRequest, userID string) (*CreatedOrganization, error)
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error)
	ListUserOrganizations(ctx context.Context, userID string) ([]*UserOrganization, error)

	ListMembers(ctx context.Context, orgID string) ([]*Member, error)
	GetMembership(ctx context.Context, orgID, userID string) (*Membership, error)
	AddMember(ctx context.Context, orgID, userID string, role rbac.Role) (*Membership, error)
	UpdateMemberRole(ctx context.Context, orgID, userID string, role rbac.Role) error
	RemoveMember(ctx context.Context, orgID, userID string) error
	TransferOwnership(ctx context.Context, orgID, fromUserID, toUserID string) error
}
