package session

import (
	"context"
	"errors"
)

// ErrNoSession is returned when a token does not map to a live session
var ErrNoSession = errors.New("no active session")

// User is the authenticated principal behind a session
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Image string `json:"image,omitempty"`
}

// DisplayName returns the name, falling back to the email
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Store resolves session tokens to users. Missing and expired sessions
// yield ErrNoSession.
type Store interface {
	Lookup(ctx context.Context, token string) (*User, error)
}
