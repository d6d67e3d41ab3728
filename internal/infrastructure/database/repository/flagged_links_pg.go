package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"linkguard/internal/domain/models"
	"linkguard/internal/infrastructure/database"
)

// PgFlaggedLinkRepository stores flagged links in PostgreSQL
type PgFlaggedLinkRepository struct {
	db database.DBTX
}

// NewPgFlaggedLinkRepository creates a new PostgreSQL flagged link repository
func NewPgFlaggedLinkRepository(db database.DBTX) *PgFlaggedLinkRepository {
	return &PgFlaggedLinkRepository{db: db}
}

// InsertIfNew inserts link unless its dedup key is already stored, and sets link.ID on insert
func (r *PgFlaggedLinkRepository) InsertIfNew(ctx context.Context, link *models.FlaggedLink) (bool, error) {
	const query = `
		INSERT INTO flagged_links (url, url_sha256, sender, message_timestamp, reason, threat_level, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url_sha256, sender, message_timestamp) DO NOTHING
		RETURNING id`

	var id int64
	err := r.db.QueryRow(ctx, query,
		link.URL, textDigest(link.URL), link.Sender, link.Timestamp, link.Reason, link.ThreatLevel.String(), link.Message,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert flagged link: %w", err)
	}

	link.ID = id
	return true, nil
}

// ListAll returns the links matching filter, newest message first
func (r *PgFlaggedLinkRepository) ListAll(ctx context.Context, filter models.LevelFilter) ([]*models.FlaggedLink, error) {
	query := `
		SELECT id, url, sender, message_timestamp, reason, threat_level, message
		FROM flagged_links`
	var args []any
	if level, ok := filter.Level(); ok {
		query += ` WHERE threat_level = $1`
		args = append(args, level.String())
	}
	query += ` ORDER BY message_timestamp DESC, id DESC`

	rows, err := r.db.Query(ctx, query, args...)
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
func (r *PgFlaggedLinkRepository) ClearAll(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM flagged_links`); err != nil {
		return fmt.Errorf("failed to clear flagged links: %w", err)
	}
	return nil
}

// Count returns the number of stored links
func (r *PgFlaggedLinkRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM flagged_links`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count flagged links: %w", err)
	}
	return count, nil
}
