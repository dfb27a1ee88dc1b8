package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/orgportal/pkg/rbac"
)

const membershipColumns = `id, user_id, org_id, role, status, created_at, updated_at`

// ListMembers lists active members with their profile fields, owners first
func (s *SQLService) ListMembers(ctx context.Context, orgID string) ([]*Member, error) {
	query := `
		SELECT m.id, m.user_id, m.org_id, m.role, m.status, m.created_at, m.updated_at,
		       COALESCE(u.email, ''), COALESCE(u.name, ''), COALESCE(u.image, '')
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.org_id = $1 AND m.status = 'active'
		ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, m.created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		m := &Member{}
		var role, status string
		err := rows.Scan(&m.ID, &m.UserID, &m.OrgID, &role, &status, &m.CreatedAt, &m.UpdatedAt,
			&m.Email, &m.Name, &m.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if m.Role, err = rbac.ParseRole(role); err != nil {
			return nil, fmt.Errorf("membership %s: %w", m.ID, err)
		}
		m.Status = MembershipStatus(status)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// GetMembership returns the active membership of userID in orgID
func (s *SQLService) GetMembership(ctx context.Context, orgID, userID string) (*Membership, error) {
	m, err := getMembership(ctx, s.db, orgID, userID)
	if err != nil {
		return nil, err
	}
	if m.Status != MembershipActive {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

// AddMember adds userID to orgID with role, reactivating a removed membership
func (s *SQLService) AddMember(ctx context.Context, orgID, userID string, role rbac.Role) (added *Membership, err error) {
	ctx, span := tracer.Start(ctx, "orgs.AddMember", membershipAttrs(orgID, userID))
	defer func() { s.finish(span, "add_member", err) }()

	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", rbac.ErrUnknownRole, role)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockOrganization(ctx, tx, orgID); err != nil {
			return err
		}

		now := s.now().UTC()
		existing, err := getMembership(ctx, tx, orgID, userID)
		switch {
		case errors.Is(err, ErrMemberNotFound):
			added = &Membership{
				ID:        uuid.NewString(),
				UserID:    userID,
				OrgID:     orgID,
				Role:      role,
				Status:    MembershipActive,
				CreatedAt: now,
				UpdatedAt: now,
			}
			return insertMembership(ctx, tx, added)
		case err != nil:
			return err
		case existing.Status == MembershipActive:
			return ErrAlreadyMember
		}

		query := `UPDATE memberships SET role = $1, status = 'active', updated_at = $2 WHERE id = $3`
		if _, err := tx.ExecContext(ctx, query, role, now, existing.ID); err != nil {
			return fmt.Errorf("failed to reactivate membership: %w", err)
		}
		existing.Role = role
		existing.Status = MembershipActive
		existing.UpdatedAt = now
		added = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(userID, orgID)
	return added, nil
}

// UpdateMemberRole changes the role of an active member. Demoting the last
// owner fails with ErrLastOwner.
func (s *SQLService) UpdateMemberRole(ctx context.Context, orgID, userID string, role rbac.Role) (err error) {
	ctx, span := tracer.Start(ctx, "orgs.UpdateMemberRole", membershipAttrs(orgID, userID))
	defer func() { s.finish(span, "update_role", err) }()

	if !role.Valid() {
		return fmt.Errorf("%w: %q", rbac.ErrUnknownRole, role)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := s.lockActiveMembership(ctx, tx, orgID, userID)
		if err != nil {
			return err
		}
		if m.Role == role {
			return nil
		}
		if m.Role == rbac.RoleOwner {
			if err := requireAnotherOwner(ctx, tx, orgID); err != nil {
				return err
			}
		}
		return setRole(ctx, tx, m.ID, role, s.now().UTC())
	})
	if err != nil {
		return err
	}

	s.invalidate(userID, orgID)
	return nil
}

// RemoveMember marks an active membership as removed. Removing the last
// owner fails with ErrLastOwner.
func (s *SQLService) RemoveMember(ctx context.Context, orgID, userID string) (err error) {
	ctx, span := tracer.Start(ctx, "orgs.RemoveMember", membershipAttrs(orgID, userID))
	defer func() { s.finish(span, "remove_member", err) }()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		m, err := s.lockActiveMembership(ctx, tx, orgID, userID)
		if err != nil {
			return err
		}
		if m.Role == rbac.RoleOwner {
			if err := requireAnotherOwner(ctx, tx, orgID); err != nil {
				return err
			}
		}

		query := `UPDATE memberships SET status = 'removed', updated_at = $1 WHERE id = $2`
		if _, err := tx.ExecContext(ctx, query, s.now().UTC(), m.ID); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(userID, orgID)
	return nil
}

// TransferOwnership makes toUserID an owner and demotes fromUserID to admin.
// Both must be active members and fromUserID must be an owner.
func (s *SQLService) TransferOwnership(ctx context.Context, orgID, fromUserID, toUserID string) (err error) {
	ctx, span := tracer.Start(ctx, "orgs.TransferOwnership", trace.WithAttributes(
		attribute.String("org.id", orgID),
		attribute.String("from.user_id", fromUserID),
		attribute.String("to.user_id", toUserID),
	))
	defer func() { s.finish(span, "transfer_ownership", err) }()

	if fromUserID == toUserID {
		return ErrSameUser
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		from, err := s.lockActiveMembership(ctx, tx, orgID, fromUserID)
		if err != nil {
			return err
		}
		if from.Role != rbac.RoleOwner {
			return ErrNotOwner
		}

		to, err := getMembership(ctx, tx, orgID, toUserID)
		if err != nil {
			return err
		}
		if to.Status != MembershipActive {
			return ErrMemberNotFound
		}

		now := s.now().UTC()
		if err := setRole(ctx, tx, to.ID, rbac.RoleOwner, now); err != nil {
			return err
		}
		return setRole(ctx, tx, from.ID, rbac.RoleAdmin, now)
	})
	if err != nil {
		return err
	}

	s.invalidate(fromUserID, orgID)
	s.invalidate(toUserID, orgID)
	return nil
}

func membershipAttrs(orgID, userID string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("org.id", orgID),
		attribute.String("user.id", userID),
	)
}

// lockActiveMembership locks the organization, then loads the active
// membership of userID.
func (s *SQLService) lockActiveMembership(ctx context.Context, tx *sql.Tx, orgID, userID string) (*Membership, error) {
	if err := s.lockOrganization(ctx, tx, orgID); err != nil {
		return nil, err
	}
	m, err := getMembership(ctx, tx, orgID, userID)
	if err != nil {
		return nil, err
	}
	if m.Status != MembershipActive {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

// requireAnotherOwner fails unless orgID has more than one active owner
func requireAnotherOwner(ctx context.Context, tx *sql.Tx, orgID string) error {
	query := `
		SELECT COUNT(*)
		FROM memberships
		WHERE org_id = $1 AND role = 'owner' AND status = 'active'
	`
	var owners int
	if err := tx.QueryRowContext(ctx, query, orgID).Scan(&owners); err != nil {
		return fmt.Errorf("failed to count owners: %w", err)
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}

func getMembership(ctx context.Context, q querier, orgID, userID string) (*Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships
		WHERE org_id = $1 AND user_id = $2
	`
	m := &Membership{}
	var role, status string
	err := q.QueryRowContext(ctx, query, orgID, userID).Scan(
		&m.ID, &m.UserID, &m.OrgID, &role, &status, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if m.Role, err = rbac.ParseRole(role); err != nil {
		return nil, fmt.Errorf("membership %s: %w", m.ID, err)
	}
	m.Status = MembershipStatus(status)
	return m, nil
}

func insertMembership(ctx context.Context, tx *sql.Tx, m *Membership) error {
	query := `INSERT INTO memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.ExecContext(ctx, query, m.ID, m.UserID, m.OrgID, m.Role, m.Status, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

func setRole(ctx context.Context, tx *sql.Tx, membershipID string, role rbac.Role, now time.Time) error {
	query := `UPDATE memberships SET role = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, role, now, membershipID); err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return nil
}
