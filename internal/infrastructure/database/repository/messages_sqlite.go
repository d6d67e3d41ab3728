package repository

import (
	"context"
	"database/sql"
	"fmt"

	"linkguard/internal/domain/models"
)

// SQLiteMessageRepository stores the message inbox in SQLite
type SQLiteMessageRepository struct {
	db *sql.DB
}

// NewSQLiteMessageRepository creates a new SQLite message repository
func NewSQLiteMessageRepository(db *sql.DB) *SQLiteMessageRepository {
	return &SQLiteMessageRepository{db: db}
}

// Append stores msg and reports false when the same message was already stored
func (r *SQLiteMessageRepository) Append(ctx context.Context, msg models.RawMessage) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (sender, body, received_at_millis)
		VALUES (?, ?, ?)`,
		msg.Sender, msg.Body, msg.ReceivedAtMillis,
	)
	if err != nil {
		return false, fmt.Errorf("failed to append message: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read append result: %w", err)
	}
	return affected == 1, nil
}

// ListSince returns messages received at or after fromMillis, newest first
func (r *SQLiteMessageRepository) ListSince(ctx context.Context, fromMillis int64) ([]models.RawMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender, body, received_at_millis
		FROM messages
		WHERE received_at_millis >= ?
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
