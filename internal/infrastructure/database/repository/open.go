package repository

import (
	"context"
	"fmt"

	"linkguard/internal/config"
	"linkguard/internal/infrastructure/database"
	"linkguard/pkg/logger"
)

// Store bundles the repositories with the connection that backs them
type Store struct {
	*Repositories
	Driver string

	ping  func(ctx context.Context) error
	close func()
}

// Open connects to the configured database, brings its schema up to date and
// builds the repositories. SQLite is always migrated; PostgreSQL only when
// migrate_on_start is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := database.NewSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateSQLite(db, log); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Store{
			Repositories: NewSQLiteRepositories(db.DB()),
			Driver:       cfg.Driver,
			ping:         db.Ping,
			close:        func() { _ = db.Close() },
		}, nil

	case config.DriverPostgres:
		if cfg.MigrateOnStart {
			if err := database.MigratePostgres(cfg.MigrationURL(), log); err != nil {
				return nil, err
			}
		}
		db, err := database.NewPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &Store{
			Repositories: NewPostgresRepositories(db.Pool()),
			Driver:       cfg.Driver,
			ping:         db.Ping,
			close:        db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Ping checks the underlying connection
func (s *Store) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the underlying connection
func (s *Store) Close() {
	s.close()
}
