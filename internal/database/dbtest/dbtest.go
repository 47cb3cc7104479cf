// Package dbtest provides throwaway SQLite databases with the service schema for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/victornm/coursequiz/internal/database"
)

// New opens a fresh SQLite database in a temp dir, closed when the test ends.
func New(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := filepath.Join(t.TempDir(), "coursequiz.db")
	db, err := database.Open(ctx, database.Config{
		Driver: string(database.DriverSQLite),
		DSN:    fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", p),
	})
	require.NoError(t, err, "should be able to open sqlite")
	t.Cleanup(func() { db.Close() })

	return db
}
