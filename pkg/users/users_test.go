package users

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/orgportal/pkg/storage/storagetest"
	"github.com/platinummonkey/orgportal/pkg/validation"
)

func TestGetProfile(t *testing.T) {
	db := storagetest.NewSQLite(t)
	userID := storagetest.CreateUser(t, db, "ada@example.com", "Ada")
	svc := NewService(db)

	p, err := svc.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "Ada", p.Name)
	assert.Empty(t, p.Image)
	assert.Nil(t, p.EmailVerified)

	_, err = svc.GetProfile(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfile(t *testing.T) {
	db := storagetest.NewSQLite(t)
	userID := storagetest.CreateUser(t, db, "ada@example.com", "Ada")
	svc := NewService(db)

	p, err := svc.UpdateProfile(context.Background(), userID, ProfileUpdate{
		Name:  " Ada Lovelace ",
		Email: "ada@example.com",
		Image: "https://example.com/ada.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "https://example.com/ada.png", p.Image)
}

func TestUpdateProfile_EmptyFieldsAreCleared(t *testing.T) {
	db := storagetest.NewSQLite(t)
	userID := storagetest.CreateUser(t, db, "ada@example.com", "Ada")
	svc := NewService(db)

	p, err := svc.UpdateProfile(context.Background(), userID, ProfileUpdate{})
	require.NoError(t, err)
	assert.Empty(t, p.Name)
	assert.Empty(t, p.Email)

	var email *string
	require.NoError(t, db.QueryRow(`SELECT email FROM users WHERE id = $1`, userID).Scan(&email))
	assert.Nil(t, email, "empty email must be stored as NULL")
}

func TestUpdateProfile_Validation(t *testing.T) {
	db := storagetest.NewSQLite(t)
	userID := storagetest.CreateUser(t, db, "ada@example.com", "Ada")
	svc := NewService(db)

	tests := []struct {
		name    string
		upd     ProfileUpdate
		message string
	}{
		{"bad email", ProfileUpdate{Email: "not-an-email"}, "Invalid email format"},
		{"bad image", ProfileUpdate{Image: "ada.png"}, "Invalid image URL format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateProfile(context.Background(), userID, tt.upd)
			verr, ok := validation.AsError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tt.message, verr.Fields[0].Message)
		})
	}
}

func TestUpdateProfile_EmailTaken(t *testing.T) {
	db := storagetest.NewSQLite(t)
	userID := storagetest.CreateUser(t, db, "ada@example.com", "Ada")
	storagetest.CreateUser(t, db, "grace@example.com", "Grace")
	svc := NewService(db)

	_, err := svc.UpdateProfile(context.Background(), userID, ProfileUpdate{Email: "grace@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	p, err := svc.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
}

func TestUpdateProfile_UnknownUser(t *testing.T) {
	db := storagetest.NewSQLite(t)

	_, err := NewService(db).UpdateProfile(context.Background(), "missing", ProfileUpdate{Name: "Nobody"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfile_DatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id FROM users WHERE email").
		WithArgs("ada@example.com", "user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("UPDATE users").
		WillReturnError(errors.New("boom"))

	_, err = NewService(db).UpdateProfile(context.Background(), "user-1", ProfileUpdate{Email: "ada@example.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailTaken)
	assert.Contains(t, err.Error(), "failed to update user")
	assert.NoError(t, mock.ExpectationsWereMet())
}
