package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	users map[string]*User
	err   error
}

func (m *mapStore) Lookup(ctx context.Context, token string) (*User, error) {
	if m.err != nil {
		return nil, m.err
	}
	user, ok := m.users[token]
	if !ok {
		return nil, ErrNoSession
	}
	return user, nil
}

func requestWithCookie(name, value string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	if name != "" {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	return req
}

func TestResolver_CurrentUser(t *testing.T) {
	store := &mapStore{users: map[string]*User{"good": {ID: "user-1"}}}
	resolver := NewResolver(store, "")

	user, err := resolver.CurrentUser(requestWithCookie(DefaultCookieName, "good"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"no cookie", requestWithCookie("", "")},
		{"empty cookie", requestWithCookie(DefaultCookieName, "")},
		{"unknown token", requestWithCookie(DefaultCookieName, "bad")},
		{"other cookie", requestWithCookie("session", "good")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := resolver.CurrentUser(tt.req)
			assert.NoError(t, err)
			assert.Nil(t, user)
		})
	}
}

func TestResolver_CustomCookie(t *testing.T) {
	store := &mapStore{users: map[string]*User{"good": {ID: "user-1"}}}
	resolver := NewResolver(store, "portal_session")

	user, err := resolver.CurrentUser(requestWithCookie("portal_session", "good"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}

func TestResolver_StoreError(t *testing.T) {
	storeErr := errors.New("redis get failed")
	resolver := NewResolver(&mapStore{err: storeErr}, "")

	user, err := resolver.CurrentUser(requestWithCookie(DefaultCookieName, "good"))
	assert.ErrorIs(t, err, storeErr)
	assert.Nil(t, user)
}
