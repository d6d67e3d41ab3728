package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"linkguard/internal/domain/models"
	"linkguard/pkg/logger"
)

// ErrJobNotFound is returned for an unknown bulk scan job ID
var ErrJobNotFound = errors.New("bulk scan job not found")

// DefaultFinishedJobRetention is how many finished jobs stay queryable
const DefaultFinishedJobRetention = 100

// BulkScanJobs runs bulk scans in the background for callers that cannot
// wait for them, and tracks their progress
type BulkScanJobs struct {
	scanner *BulkScanner
	logger  *logger.Logger

	mu      sync.RWMutex
	jobs    map[uuid.UUID]*models.BulkScanJob
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup

	// finished holds finished job IDs, oldest first; only the last retain are kept
	finished []uuid.UUID
	retain   int
}

// NewBulkScanJobs creates a new job tracker
func NewBulkScanJobs(scanner *BulkScanner, log *logger.Logger) *BulkScanJobs {
	return &BulkScanJobs{
		scanner: scanner,
		logger:  log.WithComponent("bulk-jobs"),
		jobs:    make(map[uuid.UUID]*models.BulkScanJob),
		cancels: make(map[uuid.UUID]context.CancelFunc),
		retain:  DefaultFinishedJobRetention,
	}
}

// WithRetention sets how many finished jobs are kept; running jobs are never evicted
func (j *BulkScanJobs) WithRetention(n int) *BulkScanJobs {
	if n < 1 {
		n = 1
	}
	j.retain = n
	return j
}

// Start launches a bulk scan from fromMillis and returns a snapshot of the new job
func (j *BulkScanJobs) Start(ctx context.Context, fromMillis int64) models.BulkScanJob {
	job := &models.BulkScanJob{
		ID:         uuid.New(),
		FromMillis: fromMillis,
		Status:     models.BulkScanRunning,
		StartedAt:  time.Now(),
	}

	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	j.mu.Lock()
	j.jobs[job.ID] = job
	j.cancels[job.ID] = cancel
	snapshot := *job
	j.mu.Unlock()

	j.logger.Info().Str("job_id", job.ID.String()).Int64("from_millis", fromMillis).Msg("bulk scan job started")

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		defer cancel()
		j.run(jobCtx, job.ID, fromMillis)
	}()

	return snapshot
}

// Get returns a snapshot of the job
func (j *BulkScanJobs) Get(id uuid.UUID) (models.BulkScanJob, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	job, ok := j.jobs[id]
	if !ok {
		return models.BulkScanJob{}, ErrJobNotFound
	}
	return *job, nil
}

// List returns snapshots of all known jobs
func (j *BulkScanJobs) List() []models.BulkScanJob {
	j.mu.RLock()
	defer j.mu.RUnlock()

	jobs := make([]models.BulkScanJob, 0, len(j.jobs))
	for _, job := range j.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}

// Cancel abandons a running job. Links already flagged stay stored.
// Cancelling a finished job is a no-op.
func (j *BulkScanJobs) Cancel(id uuid.UUID) error {
	j.mu.RLock()
	_, known := j.jobs[id]
	cancel, running := j.cancels[id]
	j.mu.RUnlock()

	if !known {
		return ErrJobNotFound
	}
	if running {
		cancel()
	}
	return nil
}

// Shutdown cancels all running jobs and waits for them to stop
func (j *BulkScanJobs) Shutdown() {
	j.mu.RLock()
	for _, cancel := range j.cancels {
		cancel()
	}
	j.mu.RUnlock()

	j.wg.Wait()
}

func (j *BulkScanJobs) run(ctx context.Context, id uuid.UUID, fromMillis int64) {
	result, err := j.scanner.Scan(ctx, fromMillis, func(processed, total int) {
		j.mu.Lock()
		if job, ok := j.jobs[id]; ok {
			job.Processed = processed
			job.Total = total
		}
		j.mu.Unlock()
	})

	completed := time.Now()

	j.mu.Lock()
	defer j.mu.Unlock()

	job := j.jobs[id]
	job.CompletedAt = &completed
	delete(j.cancels, id)
	j.retire(id)

	switch {
	case err == nil:
		job.Status = models.BulkScanCompleted
		job.Result = result
		job.Total = result.TotalMessages
	case errors.Is(err, context.Canceled):
		job.Status = models.BulkScanCancelled
		job.Error = err.Error()
	default:
		job.Status = models.BulkScanFailed
		job.Error = err.Error()
	}

	j.logger.Info().
		Str("job_id", id.String()).
		Str("status", string(job.Status)).
		Int("processed", job.Processed).
		Msg("bulk scan job finished")
}

// retire records id as finished and evicts the oldest finished jobs over the
// retention limit. Callers hold j.mu.
func (j *BulkScanJobs) retire(id uuid.UUID) {
	j.finished = append(j.finished, id)
	for len(j.finished) > j.retain {
		delete(j.jobs, j.finished[0])
		j.finished = j.finished[1:]
	}
}
