package session

import (
	"errors"
	"net/http"
)

// DefaultCookieName is the session cookie set by the authentication framework
const DefaultCookieName = "__keyloom_session"

// Resolver maps an incoming request to the user of its session cookie
type Resolver struct {
	store      Store
	cookieName string
}

// NewResolver creates a resolver reading cookieName (DefaultCookieName when empty)
func NewResolver(store Store, cookieName string) *Resolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &Resolver{store: store, cookieName: cookieName}
}

// CurrentUser returns the session user, or nil without an error when the
// request carries no live session. Store failures are returned as errors.
func (r *Resolver) CurrentUser(req *http.Request) (*User, error) {
	cookie, err := req.Cookie(r.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	user, err := r.store.Lookup(req.Context(), cookie.Value)
	if errors.Is(err, ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
