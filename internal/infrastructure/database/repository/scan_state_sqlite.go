package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"linkguard/internal/domain/models"
)

// SQLiteScanStateRepository stores sweep state in SQLite
type SQLiteScanStateRepository struct {
	db *sql.DB
}

// NewSQLiteScanStateRepository creates a new SQLite scan state repository
func NewSQLiteScanStateRepository(db *sql.DB) *SQLiteScanStateRepository {
	return &SQLiteScanStateRepository{db: db}
}

// Watermark returns the last sweep time in epoch millis, 0 if no sweep completed yet
func (r *SQLiteScanStateRepository) Watermark(ctx context.Context) (int64, error) {
	var millis int64
	err := r.db.QueryRowContext(ctx, `SELECT last_scan_time_millis FROM scan_watermark WHERE id = 1`).Scan(&millis)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read watermark: %w", err)
	}
	return millis, nil
}

// AdvanceWatermark moves the watermark to millis; it never moves backwards
func (r *SQLiteScanStateRepository) AdvanceWatermark(ctx context.Context, millis int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_watermark (id, last_scan_time_millis)
		VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE
		SET last_scan_time_millis = MAX(last_scan_time_millis, excluded.last_scan_time_millis)`,
		millis,
	)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}

// Settings returns the saved scan settings; found is false when none were saved
func (r *SQLiteScanStateRepository) Settings(ctx context.Context) (models.ScanSettings, bool, error) {
	var s models.ScanSettings
	err := r.db.QueryRowContext(ctx, `SELECT enabled, frequency_days FROM scan_settings WHERE id = 1`).Scan(&s.Enabled, &s.FrequencyDays)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScanSettings{}, false, nil
	}
	if err != nil {
		return models.ScanSettings{}, false, fmt.Errorf("failed to read scan settings: %w", err)
	}
	return s, true, nil
}

// SaveSettings replaces the scan settings
func (r *SQLiteScanStateRepository) SaveSettings(ctx context.Context, settings models.ScanSettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_settings (id, enabled, frequency_days)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET enabled = excluded.enabled, frequency_days = excluded.frequency_days`,
		settings.Enabled, settings.FrequencyDays,
	)
	if err != nil {
		return fmt.Errorf("failed to save scan settings: %w", err)
	}
	return nil
}
