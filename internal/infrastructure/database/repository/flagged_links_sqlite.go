package repository

import (
	"context"
	"database/sql"
	"fmt"

	"linkguard/internal/domain/models"
)

// SQLiteFlaggedLinkRepository stores flagged links in SQLite
type SQLiteFlaggedLinkRepository struct {
	db *sql.DB
}

// NewSQLiteFlaggedLinkRepository creates a new SQLite flagged link repository
func NewSQLiteFlaggedLinkRepository(db *sql.DB) *SQLiteFlaggedLinkRepository {
	return &SQLiteFlaggedLinkRepository{db: db}
}

// InsertIfNew inserts link unless its dedup key is already stored, and sets link.ID on insert
func (r *SQLiteFlaggedLinkRepository) InsertIfNew(ctx context.Context, link *models.FlaggedLink) (bool, error) {
	const query = `
		INSERT OR IGNORE INTO flagged_links (url, sender, message_timestamp, reason, threat_level, message)
		VALUES (?, ?, ?, ?, ?, ?)`

	res, err := r.db.ExecContext(ctx, query,
		link.URL, link.Sender, link.Timestamp, link.Reason, link.ThreatLevel.String(), link.Message,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert flagged link: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read inserted id: %w", err)
	}
	link.ID = id
	return true, nil
}

// ListAll returns the links matching filter, newest message first
func (r *SQLiteFlaggedLinkRepository) ListAll(ctx context.Context, filter models.LevelFilter) ([]*models.FlaggedLink, error) {
	query := `
		SELECT id, url, sender, message_timestamp, reason, threat_level, message
		FROM flagged_links`
	var args []any
	if level, ok := filter.Level(); ok {
		query += ` WHERE threat_level = ?`
		args = append(args, level.String())
	}
	query += ` ORDER BY message_timestamp DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged links: %w", err)
	}
	defer rows.Close()

	links := make([]*models.FlaggedLink, 0)
	for rows.Next() {
		var (
			link  models.FlaggedLink
			level string
		)
		if err := rows.Scan(&link.ID, &link.URL, &link.Sender, &link.Timestamp, &link.Reason, &level, &link.Message); err != nil {
			return nil, fmt.Errorf("failed to scan flagged link: %w", err)
		}
		if link.ThreatLevel, err = models.ParseThreatLevel(level); err != nil {
			return nil, fmt.Errorf("flagged link %d: %w", link.ID, err)
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list flagged links: %w", err)
	}

	return links, nil
}

// ClearAll deletes every flagged link
func (r *SQLiteFlaggedLinkRepository) ClearAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM flagged_links`); err != nil {
		return fmt.Errorf("failed to clear flagged links: %w", err)
	}
	return nil
}

// Count returns the number of stored links
func (r *SQLiteFlaggedLinkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flagged_links`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count flagged links: %w", err)
	}
	return count, nil
}
