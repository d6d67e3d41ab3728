package database

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkguard/pkg/logger"
)

func openTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()

	db, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "nested", "linkguard.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateSQLite_IsRepeatable(t *testing.T) {
	db := openTestSQLite(t)

	require.NoError(t, MigrateSQLite(db, logger.NewNop()))
	require.NoError(t, MigrateSQLite(db, logger.NewNop()))

	for _, table := range []string{"flagged_links", "messages", "scan_watermark", "scan_settings"} {
		var name string
		err := db.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	// the handle is still usable after migrating
	assert.NoError(t, db.Ping(context.Background()))
}

func TestMigrateSQLite_MessageColumnDefaultsForExistingRows(t *testing.T) {
	db := openTestSQLite(t)

	src, err := iofs.New(migrationsFS, "migrations/sqlite")
	require.NoError(t, err)
	driver, err := sqlite.WithInstance(db.DB(), &sqlite.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	require.NoError(t, err)

	// schema as it was before the message column existed
	require.NoError(t, m.Migrate(1))
	_, err = db.DB().Exec(`
		INSERT INTO flagged_links (url, sender, message_timestamp, reason, threat_level)
		VALUES ('http://old.tk', '+1555', 1000, 'suspicious domain', 'HIGH')`)
	require.NoError(t, err)

	require.NoError(t, MigrateSQLite(db, logger.NewNop()))

	var message string
	require.NoError(t, db.DB().QueryRow(`SELECT message FROM flagged_links WHERE url = 'http://old.tk'`).Scan(&message))
	assert.Equal(t, "", message)
}

func TestPostgresMigrations_DedupOnDigests(t *testing.T) {
	up, err := fs.ReadFile(migrationsFS, "migrations/postgres/000004_hash_dedup_keys.up.sql")
	require.NoError(t, err)
	sql := string(up)

	assert.Contains(t, sql, "UNIQUE (url_sha256, sender, message_timestamp)")
	assert.Contains(t, sql, "UNIQUE (sender, received_at_millis, body_sha256)")

	ups, err := fs.Glob(migrationsFS, "migrations/postgres/*.up.sql")
	require.NoError(t, err)
	for _, name := range ups {
		_, err := fs.Stat(migrationsFS, strings.TrimSuffix(name, ".up.sql")+".down.sql")
		assert.NoError(t, err, name)
	}
}
