package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"linkguard/internal/domain/models"
)

// FlaggedLinkRepository persists flagged links. InsertIfNew reports false when
// a row with the same (url, sender, timestamp) already exists.
type FlaggedLinkRepository interface {
	InsertIfNew(ctx context.Context, link *models.FlaggedLink) (bool, error)
	ListAll(ctx context.Context, filter models.LevelFilter) ([]*models.FlaggedLink, error)
	ClearAll(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// MessageRepository is the stored message inbox scanned by bulk scans and sweeps
type MessageRepository interface {
	Append(ctx context.Context, msg models.RawMessage) (bool, error)
	ListSince(ctx context.Context, fromMillis int64) ([]models.RawMessage, error)
}

// ScanStateRepository stores the sweep watermark and scan settings
type ScanStateRepository interface {
	Watermark(ctx context.Context) (int64, error)
	AdvanceWatermark(ctx context.Context, millis int64) error
	Settings(ctx context.Context) (models.ScanSettings, bool, error)
	SaveSettings(ctx context.Context, settings models.ScanSettings) error
}

// Repositories holds all repository instances
type Repositories struct {
	FlaggedLinks FlaggedLinkRepository
	Messages     MessageRepository
	ScanState    ScanStateRepository
}

// NewPostgresRepositories creates repositories backed by PostgreSQL
func NewPostgresRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		FlaggedLinks: NewPgFlaggedLinkRepository(pool),
		Messages:     NewPgMessageRepository(pool),
		ScanState:    NewPgScanStateRepository(pool),
	}
}

// NewSQLiteRepositories creates repositories backed by an embedded SQLite database
func NewSQLiteRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		FlaggedLinks: NewSQLiteFlaggedLinkRepository(db),
		Messages:     NewSQLiteMessageRepository(db),
		ScanState:    NewSQLiteScanStateRepository(db),
	}
}

// textDigest is the SHA-256 of s's UTF-8 bytes, matching
// sha256(convert_to(s, 'UTF8')) in PostgreSQL
func textDigest(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}
