package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"linkguard/internal/domain/models"
	"linkguard/internal/infrastructure/database"
)

// PgScanStateRepository stores sweep state in PostgreSQL
type PgScanStateRepository struct {
	db database.DBTX
}

// NewPgScanStateRepository creates a new PostgreSQL scan state repository
func NewPgScanStateRepository(db database.DBTX) *PgScanStateRepository {
	return &PgScanStateRepository{db: db}
}

// Watermark returns the last sweep time in epoch millis, 0 if no sweep completed yet
func (r *PgScanStateRepository) Watermark(ctx context.Context) (int64, error) {
	var millis int64
	err := r.db.QueryRow(ctx, `SELECT last_scan_time_millis FROM scan_watermark WHERE id = 1`).Scan(&millis)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read watermark: %w", err)
	}
	return millis, nil
}

// AdvanceWatermark moves the watermark to millis; it never moves backwards
func (r *PgScanStateRepository) AdvanceWatermark(ctx context.Context, millis int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO scan_watermark (id, last_scan_time_millis, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE
		SET last_scan_time_millis = GREATEST(scan_watermark.last_scan_time_millis, EXCLUDED.last_scan_time_millis),
		    updated_at = NOW()`,
		millis,
	)
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}

// Settings returns the saved scan settings; found is false when none were saved
func (r *PgScanStateRepository) Settings(ctx context.Context) (models.ScanSettings, bool, error) {
	var s models.ScanSettings
	err := r.db.QueryRow(ctx, `SELECT enabled, frequency_days FROM scan_settings WHERE id = 1`).Scan(&s.Enabled, &s.FrequencyDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ScanSettings{}, false, nil
	}
	if err != nil {
		return models.ScanSettings{}, false, fmt.Errorf("failed to read scan settings: %w", err)
	}
	return s, true, nil
}

// SaveSettings replaces the scan settings
func (r *PgScanStateRepository) SaveSettings(ctx context.Context, settings models.ScanSettings) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO scan_settings (id, enabled, frequency_days, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET enabled = EXCLUDED.enabled, frequency_days = EXCLUDED.frequency_days, updated_at = NOW()`,
		settings.Enabled, settings.FrequencyDays,
	)
	if err != nil {
		return fmt.Errorf("failed to save scan settings: %w", err)
	}
	return nil
}
