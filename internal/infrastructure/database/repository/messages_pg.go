package repository

import (
	"context"
	"fmt"

	"linkguard/internal/domain/models"
	"linkguard/internal/infrastructure/database"
)

// PgMessageRepository stores the message inbox in PostgreSQL
type PgMessageRepository struct {
	db database.DBTX
}

// NewPgMessageRepository creates a new PostgreSQL message repository
func NewPgMessageRepository(db database.DBTX) *PgMessageRepository {
	return &PgMessageRepository{db: db}
}

// Append stores msg and reports false when the same message was already stored
func (r *PgMessageRepository) Append(ctx context.Context, msg models.RawMessage) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO messages (sender, body, body_sha256, received_at_millis)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sender, received_at_millis, body_sha256) DO NOTHING`,
		msg.Sender, msg.Body, textDigest(msg.Body), msg.ReceivedAtMillis,
	)
	if err != nil {
		return false, fmt.Errorf("failed to append message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListSince returns messages received at or after fromMillis, newest first
func (r *PgMessageRepository) ListSince(ctx context.Context, fromMillis int64) ([]models.RawMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT sender, body, received_at_millis
		FROM messages
		WHERE received_at_millis >= $1
		ORDER BY received_at_millis DESC, id DESC`,
		fromMillis,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.RawMessage, 0)
	for rows.Next() {
		var msg models.RawMessage
		if err := rows.Scan(&msg.Sender, &msg.Body, &msg.ReceivedAtMillis); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	return messages, nil
}
