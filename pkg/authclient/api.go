package authclient

import (
	"context"
	"net/http"

	"github.com/platinummonkey/orgportal/pkg/orgs"
	"github.com/platinummonkey/orgportal/pkg/session"
	"github.com/platinummonkey/orgportal/pkg/users"
)

// SessionResponse is the body of GET /api/auth/session
type SessionResponse struct {
	User    *session.User `json:"user"`
	Expires string        `json:"expires,omitempty"`
}

// Credentials are sent to the register and login endpoints
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// ProfileResponse is the body of POST /api/profile/update
type ProfileResponse struct {
	Message string         `json:"message"`
	User    *users.Profile `json:"user"`
}

// CreateOrganizationResponse is the body of POST /api/organizations/create
type CreateOrganizationResponse struct {
	Message      string                    `json:"message"`
	Organization *orgs.CreatedOrganization `json:"organization"`
}

// Session returns the current session. User is nil when signed out.
func (c *Client) Session(ctx context.Context) (*SessionResponse, error) {
	var out SessionResponse
	if err := c.Do(ctx, http.MethodGet, "/api/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account
func (c *Client) Register(ctx context.Context, creds Credentials) error {
	return c.Do(ctx, http.MethodPost, "/api/auth/register", creds, nil)
}

// SignIn starts a session. The session cookie is kept in the client's jar.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	return c.Do(ctx, http.MethodPost, "/api/auth/login", Credentials{Email: email, Password: password}, nil)
}

// SignOut ends the current session
func (c *Client) SignOut(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// UpdateProfile replaces the signed-in user's profile fields
func (c *Client) UpdateProfile(ctx context.Context, upd users.ProfileUpdate) (*ProfileResponse, error) {
	var out ProfileResponse
	if err := c.Do(ctx, http.MethodPost, "/api/profile/update", upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrganization creates an organization owned by the signed-in user
func (c *Client) CreateOrganization(ctx context.Context, req orgs.CreateOrgRequest) (*CreateOrganizationResponse, error) {
	var out CreateOrganizationResponse
	if err := c.Do(ctx, http.MethodPost, "/api/organizations/create", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
