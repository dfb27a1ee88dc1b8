package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore reads sessions written by the authentication framework's
// database strategy.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLStore creates a new SQL-backed session store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// Lookup returns the user owning token
func (s *SQLStore) Lookup(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	query := `
		SELECT u.id, u.email, u.name, u.image, s.expires
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.session_token = $1
	`

	var user User
	var email, name, image sql.NullString
	var expires time.Time
	err := s.db.QueryRowContext(ctx, query, token).Scan(&user.ID, &email, &name, &image, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	if !s.now().Before(expires) {
		return nil, ErrNoSession
	}

	user.Email = email.String
	user.Name = name.String
	user.Image = image.String
	return &user, nil
}

// PurgeExpired deletes sessions that expired before now
func (s *SQLStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
