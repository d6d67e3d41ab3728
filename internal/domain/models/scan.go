package models

import (
	"time"

	"github.com/google/uuid"
)

// PassResult summarizes one scan pass
type PassResult struct {
	TotalMessages int `json:"total_messages"`
	// FlaggedCount counts links actually inserted; duplicates do not count
	FlaggedCount int `json:"flagged_count"`
	// Classified counts every positive classification, duplicates included
	Classified int `json:"classified"`
	// Failed counts messages with at least one insert that errored
	Failed int `json:"failed"`
}

// ScanSettings controls the periodic sweep
type ScanSettings struct {
	Enabled       bool `json:"enabled"`
	FrequencyDays int  `json:"frequency_days"`
}

// Interval returns the sweep period
func (s ScanSettings) Interval() time.Duration {
	days := s.FrequencyDays
	if days < 1 {
		days = 1
	}
	return time.Duration(days) * 24 * time.Hour
}

// SweepResult reports one periodic sweep
type SweepResult struct {
	Skipped    bool        `json:"skipped"`
	Pass       *PassResult `json:"pass,omitempty"`
	FromMillis int64       `json:"from_millis"`
	// Watermark is the value the scan watermark was advanced to
	Watermark int64 `json:"watermark"`
}

// BulkScanStatus is the lifecycle state of an on-demand bulk scan
type BulkScanStatus string

const (
	BulkScanRunning   BulkScanStatus = "running"
	BulkScanCompleted BulkScanStatus = "completed"
	BulkScanFailed    BulkScanStatus = "failed"
	BulkScanCancelled BulkScanStatus = "cancelled"
)

// BulkScanJob tracks an on-demand bulk scan started through the API
type BulkScanJob struct {
	ID          uuid.UUID      `json:"id"`
	FromMillis  int64          `json:"from_millis"`
	Status      BulkScanStatus `json:"status"`
	Processed   int            `json:"processed"`
	Total       int            `json:"total"`
	Result      *PassResult    `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
