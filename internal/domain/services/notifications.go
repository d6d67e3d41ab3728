package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"linkguard/internal/domain/models"
	"linkguard/pkg/logger"
)

// ErrAlertingUnavailable is returned by an Alerter that cannot post alerts,
// for example when the user has revoked notification permission
var ErrAlertingUnavailable = errors.New("alerting unavailable")

// AlertKind distinguishes summary alerts from per-link alerts
type AlertKind string

const (
	AlertKindScanSummary AlertKind = "scan_summary"
	AlertKindLinkFlagged AlertKind = "link_flagged"
)

// Alert is a user-visible notification
type Alert struct {
	ID        string             `json:"id"`
	Kind      AlertKind          `json:"kind"`
	ChannelID string             `json:"channel_id"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	Priority  string             `json:"priority"` // max, high, default, low
	Count     int                `json:"count,omitempty"`
	URL       string             `json:"url,omitempty"`
	Sender    string             `json:"sender,omitempty"`
	Level     models.ThreatLevel `json:"level,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Alerter posts alerts to the user
type Alerter interface {
	PostAlert(ctx context.Context, alert *Alert) error
}

// NotificationDispatcher turns scan outcomes into alerts. Delivery is best
// effort: failures are logged and never reach the caller.
type NotificationDispatcher struct {
	alerter Alerter
	enabled bool
	logger  *logger.Logger
	now     func() time.Time
}

// NewNotificationDispatcher creates a new dispatcher. A nil alerter means alerts are only logged.
func NewNotificationDispatcher(alerter Alerter, enabled bool, log *logger.Logger) *NotificationDispatcher {
	if alerter == nil {
		alerter = NewLogAlerter(log)
	}
	return &NotificationDispatcher{
		alerter: alerter,
		enabled: enabled,
		logger:  log.WithComponent("notifications"),
		now:     time.Now,
	}
}

// Notify raises one summary alert for a completed sweep. Zero flagged links raise nothing.
func (d *NotificationDispatcher) Notify(ctx context.Context, flaggedCount int) {
	if flaggedCount <= 0 {
		return
	}

	d.dispatch(ctx, &Alert{
		ID:        uuid.New().String(),
		Kind:      AlertKindScanSummary,
		ChannelID: "scan_results",
		Title:     "Scan Complete",
		Body:      fmt.Sprintf("%d suspicious link(s) found in background scan.", flaggedCount),
		Priority:  "high",
		Count:     flaggedCount,
		CreatedAt: d.now(),
	})
}

// NotifyLink raises an immediate alert for a single newly flagged link
func (d *NotificationDispatcher) NotifyLink(ctx context.Context, link *models.FlaggedLink) {
	if link == nil {
		return
	}

	tmpl := LinkAlertTemplate(link.ThreatLevel)
	d.dispatch(ctx, &Alert{
		ID:        uuid.New().String(),
		Kind:      AlertKindLinkFlagged,
		ChannelID: tmpl.ChannelID,
		Title:     tmpl.Title,
		Body:      fmt.Sprintf("%s from %s: %s", link.Reason, link.Sender, truncateURL(link.URL, 80)),
		Priority:  tmpl.Priority,
		Count:     1,
		URL:       link.URL,
		Sender:    link.Sender,
		Level:     link.ThreatLevel,
		CreatedAt: d.now(),
	})
}

func (d *NotificationDispatcher) dispatch(ctx context.Context, alert *Alert) {
	if !d.enabled {
		d.logger.Debug().Str("kind", string(alert.Kind)).Msg("notifications disabled, alert dropped")
		return
	}

	if err := d.alerter.PostAlert(ctx, alert); err != nil {
		if errors.Is(err, ErrAlertingUnavailable) {
			d.logger.Warn().Str("kind", string(alert.Kind)).Msg("alerting unavailable, alert dropped")
			return
		}
		d.logger.Error().Err(err).Str("alert_id", alert.ID).Str("kind", string(alert.Kind)).Msg("failed to post alert")
		return
	}

	d.logger.Info().
		Str("alert_id", alert.ID).
		Str("kind", string(alert.Kind)).
		Int("count", alert.Count).
		Msg("alert posted")
}

// AlertTemplate is the display template for a per-link alert
type AlertTemplate struct {
	ChannelID string
	Title     string
	Priority  string
}

// LinkAlertTemplate returns the display template for a flagged link of the given level
func LinkAlertTemplate(level models.ThreatLevel) AlertTemplate {
	tmpl := AlertTemplate{ChannelID: "flagged_links"}

	switch level {
	case models.ThreatLevelHigh:
		tmpl.Title = "Warning: Dangerous Link Detected"
		tmpl.Priority = "max"
	case models.ThreatLevelMedium:
		tmpl.Title = "Caution: Suspicious Link Detected"
		tmpl.Priority = "high"
	default:
		tmpl.Title = "Link Security Alert"
		tmpl.Priority = "default"
	}

	return tmpl
}

func truncateURL(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// LogAlerter writes alerts to the log. Used when no alert transport is configured.
type LogAlerter struct {
	logger *logger.Logger
}

// NewLogAlerter creates a new LogAlerter
func NewLogAlerter(log *logger.Logger) *LogAlerter {
	return &LogAlerter{logger: log.WithComponent("log-alerter")}
}

// PostAlert implements Alerter
func (a *LogAlerter) PostAlert(_ context.Context, alert *Alert) error {
	a.logger.Info().
		Str("alert_id", alert.ID).
		Str("kind", string(alert.Kind)).
		Str("title", alert.Title).
		Str("body", alert.Body).
		Msg("alert")
	return nil
}
