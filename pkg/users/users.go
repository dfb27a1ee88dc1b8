// Package users reads and updates user profiles.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/orgportal/pkg/storage"
	"github.com/platinummonkey/orgportal/pkg/validation"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email is already taken by another user")
)

// Profile is the editable view of a user
type Profile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email,omitempty"`
	Name          string     `json:"name,omitempty"`
	Image         string     `json:"image,omitempty"`
	EmailVerified *time.Time `json:"emailVerified,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ProfileUpdate replaces the editable profile fields. Empty values clear the field.
type ProfileUpdate struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Image string `json:"image" validate:"omitempty,url"`
}

// Service manages user profiles
type Service struct {
	db        *sql.DB
	validator *validation.Validator
	now       func() time.Time
}

// NewService creates a new profile service
func NewService(db *sql.DB) *Service {
	return &Service{db: db, validator: validation.New(), now: time.Now}
}

// GetProfile returns the profile of userID
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	query := `
		SELECT id, email, name, image, email_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	p := &Profile{}
	var email, name, image sql.NullString
	var verified sql.NullTime
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.ID, &email, &name, &image, &verified, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	p.Email = email.String
	p.Name = name.String
	p.Image = image.String
	if verified.Valid {
		p.EmailVerified = &verified.Time
	}
	return p, nil
}

// UpdateProfile stores upd for userID and returns the updated profile
func (s *Service) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*Profile, error) {
	upd.Name = strings.TrimSpace(upd.Name)
	upd.Email = strings.TrimSpace(upd.Email)
	upd.Image = strings.TrimSpace(upd.Image)
	if err := s.validator.Struct(upd); err != nil {
		return nil, err
	}

	if upd.Email != "" {
		var holder string
		err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1 AND id <> $2`, upd.Email, userID).Scan(&holder)
		switch {
		case err == nil:
			return nil, ErrEmailTaken
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
	}

	query := `
		UPDATE users
		SET name = $1, email = $2, image = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.db.ExecContext(ctx, query,
		nullString(upd.Name), nullString(upd.Email), nullString(upd.Image), s.now().UTC(), userID)
	if storage.IsUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if rows == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetProfile(ctx, userID)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
