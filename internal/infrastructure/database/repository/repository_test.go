package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkguard/internal/config"
	"linkguard/internal/domain/models"
	"linkguard/internal/infrastructure/database"
	"linkguard/pkg/logger"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()

	log := logger.NewNop()
	db, err := database.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "linkguard.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.MigrateSQLite(db, log))
	return NewSQLiteRepositories(db.DB())
}

func flaggedLink(url, sender string, ts int64, level models.ThreatLevel) *models.FlaggedLink {
	return &models.FlaggedLink{
		URL:         url,
		Sender:      sender,
		Timestamp:   ts,
		Reason:      "suspicious domain",
		ThreatLevel: level,
		Message:     "Verify now: " + url,
	}
}

func TestFlaggedLinks_InsertIfNewIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	first := flaggedLink("http://secure-bank.tk/login", "+15551234", 1000, models.ThreatLevelHigh)
	inserted, err := repos.FlaggedLinks.InsertIfNew(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, first.ID)

	again := flaggedLink("http://secure-bank.tk/login", "+15551234", 1000, models.ThreatLevelHigh)
	inserted, err = repos.FlaggedLinks.InsertIfNew(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Zero(t, again.ID)

	count, err := repos.FlaggedLinks.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	links, err := repos.FlaggedLinks.ListAll(ctx, models.LevelAll)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, first.ID, links[0].ID)
	assert.Equal(t, int64(1000), links[0].Timestamp)
	assert.Equal(t, models.ThreatLevelHigh, links[0].ThreatLevel)
	assert.Equal(t, "Verify now: http://secure-bank.tk/login", links[0].Message)
}

func TestFlaggedLinks_DedupKeyComponentsAreIndependent(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	for _, link := range []*models.FlaggedLink{
		flaggedLink("http://a.tk", "s1", 1, models.ThreatLevelHigh),
		flaggedLink("http://b.tk", "s1", 1, models.ThreatLevelHigh),
		flaggedLink("http://a.tk", "s2", 1, models.ThreatLevelHigh),
		flaggedLink("http://a.tk", "s1", 2, models.ThreatLevelHigh),
	} {
		inserted, err := repos.FlaggedLinks.InsertIfNew(ctx, link)
		require.NoError(t, err)
		assert.True(t, inserted, link.Key())
	}

	count, err := repos.FlaggedLinks.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}

func TestFlaggedLinks_ListAllOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	_, err := repos.FlaggedLinks.InsertIfNew(ctx, flaggedLink("http://old.tk", "s", 100, models.ThreatLevelHigh))
	require.NoError(t, err)
	_, err = repos.FlaggedLinks.InsertIfNew(ctx, flaggedLink("http://example.com:8080", "s", 300, models.ThreatLevelMedium))
	require.NoError(t, err)
	_, err = repos.FlaggedLinks.InsertIfNew(ctx, flaggedLink("http://new.tk", "s", 200, models.ThreatLevelHigh))
	require.NoError(t, err)

	all, err := repos.FlaggedLinks.ListAll(ctx, models.LevelAll)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{300, 200, 100}, []int64{all[0].Timestamp, all[1].Timestamp, all[2].Timestamp})

	high, err := repos.FlaggedLinks.ListAll(ctx, models.OnlyLevel(models.ThreatLevelHigh))
	require.NoError(t, err)
	require.Len(t, high, 2)
	for _, link := range high {
		assert.Equal(t, models.ThreatLevelHigh, link.ThreatLevel)
	}

	low, err := repos.FlaggedLinks.ListAll(ctx, models.OnlyLevel(models.ThreatLevelLow))
	require.NoError(t, err)
	assert.NotNil(t, low)
	assert.Empty(t, low)
}

func TestFlaggedLinks_ClearAll(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	_, err := repos.FlaggedLinks.InsertIfNew(ctx, flaggedLink("http://x.tk", "s", 1, models.ThreatLevelHigh))
	require.NoError(t, err)

	require.NoError(t, repos.FlaggedLinks.ClearAll(ctx))

	links, err := repos.FlaggedLinks.ListAll(ctx, models.LevelAll)
	require.NoError(t, err)
	assert.Empty(t, links)

	// a cleared occurrence can be flagged again
	inserted, err := repos.FlaggedLinks.InsertIfNew(ctx, flaggedLink("http://x.tk", "s", 1, models.ThreatLevelHigh))
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestFlaggedLinks_ConcurrentInsertsKeepOneRowPerKey(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				ok, err := repos.FlaggedLinks.InsertIfNew(ctx, flaggedLink(fmt.Sprintf("http://race%d.tk", i), "s", 42, models.ThreatLevelHigh))
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					inserted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, inserted)
	count, err := repos.FlaggedLinks.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 10, count)
}

func TestMessages_AppendAndListSince(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	for _, msg := range []models.RawMessage{
		{Sender: "a", Body: "first", ReceivedAtMillis: 400},
		{Sender: "b", Body: "second", ReceivedAtMillis: 600},
		{Sender: "c", Body: "third", ReceivedAtMillis: 500},
	} {
		added, err := repos.Messages.Append(ctx, msg)
		require.NoError(t, err)
		assert.True(t, added)
	}

	added, err := repos.Messages.Append(ctx, models.RawMessage{Sender: "a", Body: "first", ReceivedAtMillis: 400})
	require.NoError(t, err)
	assert.False(t, added)

	all, err := repos.Messages.ListSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "second", all[0].Body)
	assert.Equal(t, "third", all[1].Body)
	assert.Equal(t, "first", all[2].Body)

	since, err := repos.Messages.ListSince(ctx, 500)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(600), since[0].ReceivedAtMillis)
	assert.Equal(t, int64(500), since[1].ReceivedAtMillis)
}

func TestScanState_WatermarkIsMonotonic(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	wm, err := repos.ScanState.Watermark(ctx)
	require.NoError(t, err)
	assert.Zero(t, wm)

	require.NoError(t, repos.ScanState.AdvanceWatermark(ctx, 500))
	require.NoError(t, repos.ScanState.AdvanceWatermark(ctx, 300))

	wm, err = repos.ScanState.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), wm)

	require.NoError(t, repos.ScanState.AdvanceWatermark(ctx, 900))
	wm, err = repos.ScanState.Watermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(900), wm)
}

func TestScanState_Settings(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	_, found, err := repos.ScanState.Settings(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repos.ScanState.SaveSettings(ctx, models.ScanSettings{Enabled: true, FrequencyDays: 3}))
	require.NoError(t, repos.ScanState.SaveSettings(ctx, models.ScanSettings{Enabled: false, FrequencyDays: 7}))

	settings, found, err := repos.ScanState.Settings(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, models.ScanSettings{Enabled: false, FrequencyDays: 7}, settings)
}

func TestOpen_SQLiteMigratesAndServes(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "nested", "lg.db")}

	store, err := Open(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))
	inserted, err := store.FlaggedLinks.InsertIfNew(ctx, flaggedLink("http://a.tk", "s", 1, models.ThreatLevelHigh))
	require.NoError(t, err)
	assert.True(t, inserted)

	_, err = Open(ctx, config.DatabaseConfig{Driver: "mysql"}, logger.NewNop())
	assert.Error(t, err)
}

// longInputs returns a URL and a message body well past a B-tree key's size limit
func longInputs() (string, string) {
	url := "http://secure-bank.tk/login?session=" + strings.Repeat("a9Zq", 1200)
	return url, "Your account is locked, verify at " + url + " " + strings.Repeat("x", 4096)
}

func assertLongInputsDedup(t *testing.T, repos *Repositories) {
	t.Helper()
	ctx := context.Background()
	url, body := longInputs()

	link := flaggedLink(url, "+15551234", 1000, models.ThreatLevelMedium)
	inserted, err := repos.FlaggedLinks.InsertIfNew(ctx, link)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repos.FlaggedLinks.InsertIfNew(ctx, flaggedLink(url, "+15551234", 1000, models.ThreatLevelMedium))
	require.NoError(t, err)
	assert.False(t, inserted)

	// same prefix, different tail
	inserted, err = repos.FlaggedLinks.InsertIfNew(ctx, flaggedLink(url+"b", "+15551234", 1000, models.ThreatLevelMedium))
	require.NoError(t, err)
	assert.True(t, inserted)

	links, err := repos.FlaggedLinks.ListAll(ctx, models.LevelAll)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Contains(t, []string{links[0].URL, links[1].URL}, url)

	msg := models.RawMessage{Sender: "+15551234", Body: body, ReceivedAtMillis: 1000}
	added, err := repos.Messages.Append(ctx, msg)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repos.Messages.Append(ctx, msg)
	require.NoError(t, err)
	assert.False(t, added)

	stored, err := repos.Messages.ListSince(ctx, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, body, stored[0].Body)
}

func TestSQLite_LongURLAndBodyDedup(t *testing.T) {
	assertLongInputsDedup(t, newTestRepos(t))
}
