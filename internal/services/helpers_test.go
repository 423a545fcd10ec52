package services_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/isdelr/bookshelf-be/internal/database"
	"github.com/isdelr/bookshelf-be/internal/models"
	"github.com/isdelr/bookshelf-be/internal/services"
)

// newTestDB opens a migrated throwaway SQLite database.
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })
	return db
}

// registerTestUser registers a user through the real service.
func registerTestUser(t *testing.T, db *sqlx.DB, username, email string) models.User {
	t.Helper()
	user, err := services.NewUserService(db).Register(context.Background(), username, email, "secret123")
	require.NoError(t, err)
	return user
}
