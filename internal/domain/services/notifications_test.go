package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkguard/internal/domain/models"
	"linkguard/pkg/logger"
)

func TestNotify_ZeroRaisesNothing(t *testing.T) {
	alerter := &recordingAlerter{}
	d := NewNotificationDispatcher(alerter, true, logger.NewNop())

	d.Notify(context.Background(), 0)
	d.Notify(context.Background(), -2)

	assert.Empty(t, alerter.posted())
}

func TestNotify_SummaryAlert(t *testing.T) {
	alerter := &recordingAlerter{}
	d := NewNotificationDispatcher(alerter, true, logger.NewNop())

	d.Notify(context.Background(), 3)

	alerts := alerter.posted()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertKindScanSummary, alerts[0].Kind)
	assert.Equal(t, "Scan Complete", alerts[0].Title)
	assert.Equal(t, "3 suspicious link(s) found in background scan.", alerts[0].Body)
	assert.Equal(t, 3, alerts[0].Count)
	assert.Equal(t, "scan_results", alerts[0].ChannelID)
	assert.NotEmpty(t, alerts[0].ID)
}

func TestNotify_DeliveryErrorsAreSwallowed(t *testing.T) {
	for _, err := range []error{
		ErrAlertingUnavailable,
		fmt.Errorf("post: %w", ErrAlertingUnavailable),
		errors.New("broker down"),
	} {
		alerter := &recordingAlerter{err: err}
		d := NewNotificationDispatcher(alerter, true, logger.NewNop())

		assert.NotPanics(t, func() { d.Notify(context.Background(), 1) })
		assert.Empty(t, alerter.posted())
	}
}

func TestNotify_DisabledDropsAlerts(t *testing.T) {
	alerter := &recordingAlerter{}
	d := NewNotificationDispatcher(alerter, false, logger.NewNop())

	d.Notify(context.Background(), 5)
	d.NotifyLink(context.Background(), &models.FlaggedLink{URL: "http://x.tk"})

	assert.Empty(t, alerter.posted())
}

func TestNotify_NilAlerterLogsOnly(t *testing.T) {
	d := NewNotificationDispatcher(nil, true, logger.NewNop())
	assert.NotPanics(t, func() { d.Notify(context.Background(), 2) })
}

func TestNotifyLink_UsesLevelTemplate(t *testing.T) {
	alerter := &recordingAlerter{}
	d := NewNotificationDispatcher(alerter, true, logger.NewNop())

	d.NotifyLink(context.Background(), &models.FlaggedLink{
		URL:         "http://192.168.1.1/login",
		Sender:      "+15550001",
		Reason:      ReasonKeywordRawIP,
		ThreatLevel: models.ThreatLevelHigh,
	})
	d.NotifyLink(context.Background(), nil)

	alerts := alerter.posted()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertKindLinkFlagged, alerts[0].Kind)
	assert.Equal(t, "max", alerts[0].Priority)
	assert.Equal(t, "flagged_links", alerts[0].ChannelID)
	assert.Equal(t, "keyword + raw IP from +15550001: http://192.168.1.1/login", alerts[0].Body)
	assert.Equal(t, models.ThreatLevelHigh, alerts[0].Level)
}

func TestLinkAlertTemplate(t *testing.T) {
	assert.Equal(t, "max", LinkAlertTemplate(models.ThreatLevelHigh).Priority)
	assert.Equal(t, "high", LinkAlertTemplate(models.ThreatLevelMedium).Priority)
	assert.Equal(t, "default", LinkAlertTemplate(models.ThreatLevelLow).Priority)
}

func TestTruncateURL(t *testing.T) {
	assert.Equal(t, "short", truncateURL("short", 10))

	long := "http://" + strings.Repeat("é", 100)
	out := truncateURL(long, 20)
	assert.Equal(t, 20, len([]rune(out)))
	assert.True(t, strings.HasSuffix(out, "..."))
}
