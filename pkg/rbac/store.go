package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MembershipLookup resolves the role a user holds in an organization.
// ok is false when the user is not an active member.
type MembershipLookup interface {
	GetUserRole(ctx context.Context, userID, orgID string) (role Role, ok bool, err error)
}

// MembershipStore reads roles from the memberships table
type MembershipStore struct {
	db *sql.DB
}

// NewMembershipStore creates a new membership store
func NewMembershipStore(db *sql.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

// GetUserRole looks up the active membership for (userID, orgID).
// Database errors are returned as-is.
func (s *MembershipStore) GetUserRole(ctx context.Context, userID, orgID string) (Role, bool, error) {
	query := `
		SELECT role
		FROM memberships
		WHERE user_id = $1 AND org_id = $2 AND status = 'active'
	`

	var name string
	err := s.db.QueryRowContext(ctx, query, userID, orgID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	role, err := ParseRole(name)
	if err != nil {
		return "", false, fmt.Errorf("membership %s/%s: %w", orgID, userID, err)
	}
	return role, true, nil
}
