package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkguard/internal/domain/models"
	"linkguard/pkg/logger"
)

// gatedSource blocks ListSince until released
type gatedSource struct {
	inner   MessageSource
	release chan struct{}
}

func (g *gatedSource) ListSince(ctx context.Context, fromMillis int64) ([]models.RawMessage, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.inner.ListSince(ctx, fromMillis)
}

func waitForStatus(t *testing.T, jobs *BulkScanJobs, id uuid.UUID, status models.BulkScanStatus) models.BulkScanJob {
	t.Helper()
	var job models.BulkScanJob
	require.Eventually(t, func() bool {
		var err error
		job, err = jobs.Get(id)
		return err == nil && job.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestBulkScanJobs_CompletesWithResult(t *testing.T) {
	ctx := context.Background()
	inbox := &memInbox{}
	for i := range 4 {
		inbox.messages = append(inbox.messages, models.RawMessage{
			Sender:           "bank",
			Body:             fmt.Sprintf("verify at http://pay%d.tk", i),
			ReceivedAtMillis: int64(100 + i),
		})
	}
	jobs := NewBulkScanJobs(NewBulkScanner(newTestCoordinator(newMemStore()), inbox, logger.NewNop()), logger.NewNop())

	started := jobs.Start(ctx, 0)
	assert.Equal(t, models.BulkScanRunning, started.Status)

	job := waitForStatus(t, jobs, started.ID, models.BulkScanCompleted)
	require.NotNil(t, job.Result)
	assert.Equal(t, 4, job.Result.TotalMessages)
	assert.Equal(t, 4, job.Result.FlaggedCount)
	assert.Equal(t, 4, job.Processed)
	assert.Equal(t, 4, job.Total)
	assert.NotNil(t, job.CompletedAt)

	require.NoError(t, jobs.Cancel(started.ID))
	assert.Len(t, jobs.List(), 1)
}

func TestBulkScanJobs_Cancel(t *testing.T) {
	ctx := context.Background()
	source := &gatedSource{inner: &memInbox{}, release: make(chan struct{})}
	jobs := NewBulkScanJobs(NewBulkScanner(newTestCoordinator(newMemStore()), source, logger.NewNop()), logger.NewNop())

	started := jobs.Start(ctx, 0)
	require.NoError(t, jobs.Cancel(started.ID))

	job := waitForStatus(t, jobs, started.ID, models.BulkScanCancelled)
	assert.NotEmpty(t, job.Error)
	assert.Nil(t, job.Result)
}

func TestBulkScanJobs_FailedSource(t *testing.T) {
	inbox := &memInbox{listErr: errors.New("inbox locked")}
	jobs := NewBulkScanJobs(NewBulkScanner(newTestCoordinator(newMemStore()), inbox, logger.NewNop()), logger.NewNop())

	started := jobs.Start(context.Background(), 0)
	job := waitForStatus(t, jobs, started.ID, models.BulkScanFailed)
	assert.Contains(t, job.Error, "inbox locked")
}

func TestBulkScanJobs_UnknownID(t *testing.T) {
	jobs := NewBulkScanJobs(NewBulkScanner(newTestCoordinator(newMemStore()), &memInbox{}, logger.NewNop()), logger.NewNop())

	_, err := jobs.Get(uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, jobs.Cancel(uuid.New()), ErrJobNotFound)
}

func TestBulkScanJobs_ShutdownStopsRunningJobs(t *testing.T) {
	source := &gatedSource{inner: &memInbox{}, release: make(chan struct{})}
	jobs := NewBulkScanJobs(NewBulkScanner(newTestCoordinator(newMemStore()), source, logger.NewNop()), logger.NewNop())

	started := jobs.Start(context.Background(), 0)
	jobs.Shutdown()

	job, err := jobs.Get(started.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkScanCancelled, job.Status)
}

// fromMillisSource routes ListSince to gated for gateAt and to inner otherwise
type fromMillisSource struct {
	gated  MessageSource
	inner  MessageSource
	gateAt int64
}

func (f *fromMillisSource) ListSince(ctx context.Context, fromMillis int64) ([]models.RawMessage, error) {
	if fromMillis == f.gateAt {
		return f.gated.ListSince(ctx, fromMillis)
	}
	return f.inner.ListSince(ctx, fromMillis)
}

func TestBulkScanJobs_EvictsOldestFinishedJobs(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	log := logger.NewNop()

	gated := &gatedSource{inner: &memInbox{}, release: make(chan struct{})}
	jobs := NewBulkScanJobs(NewBulkScanner(newTestCoordinator(store), &fromMillisSource{
		gated:  gated,
		inner:  &memInbox{},
		gateAt: 1,
	}, log), log).WithRetention(2)
	running := jobs.Start(ctx, 1)

	var ids []uuid.UUID
	for range 3 {
		started := jobs.Start(ctx, 0)
		waitForStatus(t, jobs, started.ID, models.BulkScanCompleted)
		ids = append(ids, started.ID)
	}

	_, err := jobs.Get(ids[0])
	assert.ErrorIs(t, err, ErrJobNotFound)
	for _, id := range ids[1:] {
		_, err := jobs.Get(id)
		assert.NoError(t, err)
	}

	// the running job is never evicted
	job, err := jobs.Get(running.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BulkScanRunning, job.Status)
	assert.Len(t, jobs.List(), 3)

	close(gated.release)
	waitForStatus(t, jobs, running.ID, models.BulkScanCompleted)
	_, err = jobs.Get(ids[1])
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.Len(t, jobs.List(), 2)
}
