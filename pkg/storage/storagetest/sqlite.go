// Package storagetest provides migrated SQLite databases and seed helpers for tests.
package storagetest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/orgportal/pkg/storage"
)

// NewSQLite returns a handle to a fresh, fully migrated SQLite database
// stored in the test's temp directory. It is closed on cleanup.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	if err := storage.Migrate(storage.DriverSQLite, path, "up"); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	db, err := storage.Open(context.Background(), storage.Config{
		Driver: storage.DriverSQLite,
		DSN:    path,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// CreateUser inserts a user and returns its ID
func CreateUser(t testing.TB, db *sql.DB, email, name string) string {
	t.Helper()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO users (id, email, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, nullIfEmpty(email), nullIfEmpty(name), now, now)
	if err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return id
}

// CreateOrganization inserts an organization without memberships and returns its ID
func CreateOrganization(t testing.TB, db *sql.DB, name, slug string) string {
	t.Helper()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO organizations (id, name, slug, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, name, slug, now, now)
	if err != nil {
		t.Fatalf("Failed to create organization: %v", err)
	}
	return id
}

// AddMembership inserts a membership row with the given role and status
func AddMembership(t testing.TB, db *sql.DB, orgID, userID, role, status string) string {
	t.Helper()

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO memberships (id, user_id, org_id, role, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, userID, orgID, role, status, now, now)
	if err != nil {
		t.Fatalf("Failed to create membership: %v", err)
	}
	return id
}

// CreateSession inserts a session for userID and returns its token
func CreateSession(t testing.TB, db *sql.DB, userID string, expires time.Time) string {
	t.Helper()

	token := uuid.NewString()
	_, err := db.Exec(`INSERT INTO sessions (id, session_token, user_id, expires, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), token, userID, expires.UTC(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	return token
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
