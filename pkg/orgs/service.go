package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/orgportal/pkg/rbac"
	"github.com/platinummonkey/orgportal/pkg/storage"
	"github.com/platinummonkey/orgportal/pkg/validation"
)

var tracer = otel.Tracer("orgportal/orgs")

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLService implements Service on top of the portal database
type SQLService struct {
	db        *sql.DB
	validator *validation.Validator
	cache     RoleCacheInvalidator
	recorder  MutationRecorder
	now       func() time.Time
}

// Option configures an SQLService
type Option func(*SQLService)

// WithRoleCache invalidates cached role lookups after membership changes
func WithRoleCache(cache RoleCacheInvalidator) Option {
	return func(s *SQLService) {
		s.cache = cache
	}
}

// WithRecorder counts mutations
func WithRecorder(recorder MutationRecorder) Option {
	return func(s *SQLService) {
		s.recorder = recorder
	}
}

// NewSQLService creates a new SQLService
func NewSQLService(db *sql.DB, opts ...Option) *SQLService {
	s := &SQLService{
		db:        db,
		validator: validation.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrganization creates an organization and makes userID its owner
func (s *SQLService) CreateOrganization(ctx context.Context, req CreateOrgRequest, userID string) (created *CreatedOrganization, err error) {
	ctx, span := tracer.Start(ctx, "orgs.CreateOrganization", trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() { s.finish(span, "create", err) }()

	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.TrimSpace(req.Slug)
	if err = s.validator.Struct(req); err != nil {
		return nil, err
	}
	if req.Slug == "" {
		req.Slug = GenerateSlug(req.Name)
		if len(req.Slug) < 2 {
			return nil, &validation.Error{Fields: []validation.FieldError{{
				Field:   "slug",
				Rule:    "slug",
				Message: "Slug could not be generated from the organization name",
			}}}
		}
	}

	now := s.now().UTC()
	org := Organization{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Slug:      req.Slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	owner := Membership{
		ID:        uuid.NewString(),
		UserID:    userID,
		OrgID:     org.ID,
		Role:      rbac.RoleOwner,
		Status:    MembershipActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO organizations (id, name, slug, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`
		_, err := tx.ExecContext(ctx, query, org.ID, org.Name, org.Slug, org.CreatedAt, org.UpdatedAt)
		if storage.IsUniqueViolation(err) {
			return ErrSlugTaken
		}
		if err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}
		return insertMembership(ctx, tx, &owner)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(userID, org.ID)
	return &CreatedOrganization{Organization: org, Memberships: []Membership{owner}}, nil
}

// GetOrganization retrieves an organization by ID
func (s *SQLService) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	query := `
		SELECT id, name, slug, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	return scanOrganization(s.db.QueryRowContext(ctx, query, id))
}

// GetOrganizationBySlug retrieves an organization by slug
func (s *SQLService) GetOrganizationBySlug(ctx context.Context, slug string) (*Organization, error) {
	query := `
		SELECT id, name, slug, created_at, updated_at
		FROM organizations
		WHERE slug = $1
	`
	return scanOrganization(s.db.QueryRowContext(ctx, query, slug))
}

func scanOrganization(row *sql.Row) (*Organization, error) {
	org := &Organization{}
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return org, nil
}

// ListUserOrganizations lists the organizations where userID has an active
// membership, most recently joined first.
func (s *SQLService) ListUserOrganizations(ctx context.Context, userID string) ([]*UserOrganization, error) {
	query := `
		SELECT o.id, o.name, o.slug, o.created_at, o.updated_at, m.role
		FROM memberships m
		JOIN organizations o ON o.id = m.org_id
		WHERE m.user_id = $1 AND m.status = 'active'
		ORDER BY m.created_at DESC, o.name ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	result := []*UserOrganization{}
	for rows.Next() {
		uo := &UserOrganization{}
		var role string
		if err := rows.Scan(&uo.ID, &uo.Name, &uo.Slug, &uo.CreatedAt, &uo.UpdatedAt, &role); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		if uo.Role, err = rbac.ParseRole(role); err != nil {
			return nil, fmt.Errorf("organization %s: %w", uo.ID, err)
		}
		result = append(result, uo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return result, nil
}

func (s *SQLService) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// lockOrganization touches the organization row so concurrent membership
// mutations on the same organization run one at a time.
func (s *SQLService) lockOrganization(ctx context.Context, tx *sql.Tx, orgID string) error {
	result, err := tx.ExecContext(ctx, `UPDATE organizations SET updated_at = $1 WHERE id = $2`, s.now().UTC(), orgID)
	if err != nil {
		return fmt.Errorf("failed to lock organization: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to lock organization: %w", err)
	}
	if n == 0 {
		return ErrOrgNotFound
	}
	return nil
}

func (s *SQLService) invalidate(userID, orgID string) {
	if s.cache != nil {
		s.cache.Invalidate(userID, orgID)
	}
}

func (s *SQLService) finish(span trace.Span, operation string, err error) {
	if s.recorder != nil {
		s.recorder.RecordOrgMutation(operation, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
