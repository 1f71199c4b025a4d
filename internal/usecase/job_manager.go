package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"HistFill/internal/domain/models"
	drepo "HistFill/internal/domain/repository"
	applogger "HistFill/pkg/logger"
)

// JobManager owns job records: creation, chunk slicing and the counter
// bookkeeping after each chunk. All mutation goes through JobStore.Save, so
// a concurrent writer with a stale version is rejected there.
type JobManager struct {
	jobs     drepo.JobStore
	coverage *CoverageChecker
	events   drepo.Events
	logger   *applogger.Logger
	now      func() time.Time
	newID    func() string
}

func NewJobManager(jobs drepo.JobStore, coverage *CoverageChecker, events drepo.Events, logger *applogger.Logger) *JobManager {
	return &JobManager{
		jobs:     jobs,
		coverage: coverage,
		events:   events,
		logger:   logger,
		now:      time.Now,
		newID:    newJobID,
	}
}

func newJobID() string {
	frag := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("fill_%s_%s", time.Now().UTC().Format("20060102"), frag)
}

// Create runs the coverage check over the requested symbols and persists a
// pending job for the missing ones. Cached and eliminated symbols count as
// processed from the start so the progress view reflects the whole request.
func (m *JobManager) Create(ctx context.Context, symbols []string, chunkSize int) (*models.Job, *models.Coverage, error) {
	cov, err := m.coverage.Check(ctx, symbols)
	if err != nil {
		return nil, nil, err
	}

	chunks, err := models.ChunkCount(len(cov.Missing), chunkSize)
	if err != nil {
		return nil, nil, err
	}

	total := len(cov.Cached) + len(cov.Eliminated) + len(cov.Missing)
	now := m.now().UTC()
	job := &models.Job{
		ID:               m.newID(),
		TotalSymbols:     total,
		SymbolsToProcess: cov.Missing,
		ChunkSize:        chunkSize,
		TotalChunks:      chunks,
		CurrentChunk:     0,
		Processed:        len(cov.Cached) + len(cov.Eliminated),
		Successful:       len(cov.Cached),
		Failed:           len(cov.Eliminated),
		Status:           models.JobPending,
		StartedAt:        now,
		LastUpdatedAt:    now,
	}
	if len(cov.Missing) == 0 {
		job.Status = models.JobCompleted
	}

	if err := m.jobs.Save(ctx, job); err != nil {
		return nil, nil, err
	}
	m.events.JobCreated(ctx, job)
	m.logger.Info("job created",
		applogger.String("job_id", job.ID),
		applogger.Int("symbols", total),
		applogger.Int("to_process", len(cov.Missing)),
		applogger.Int("chunks", chunks),
	)
	return job, cov, nil
}

// Get loads a job record.
func (m *JobManager) Get(ctx context.Context, jobID string) (*models.Job, error) {
	return m.jobs.Get(ctx, jobID)
}

// NextChunk returns the symbol slice for the next unprocessed chunk, or an
// empty slice when the job is exhausted.
func (m *JobManager) NextChunk(job *models.Job) []string {
	start := job.CurrentChunk * job.ChunkSize
	if start >= len(job.SymbolsToProcess) {
		return nil
	}
	end := start + job.ChunkSize
	if end > len(job.SymbolsToProcess) {
		end = len(job.SymbolsToProcess)
	}
	return job.SymbolsToProcess[start:end]
}

// Transition moves the job to a new status, enforcing the state machine, and
// persists it.
func (m *JobManager) Transition(ctx context.Context, job *models.Job, to models.JobStatus) error {
	if !job.Status.CanTransition(to) {
		return fmt.Errorf("job %s: illegal transition %s -> %s", job.ID, job.Status, to)
	}
	job.Status = to
	return m.jobs.Save(ctx, job)
}

// RecordChunk folds one chunk's result into the job counters, advances the
// chunk pointer, recomputes the ETA and persists unconditionally. The last
// chunk also flips the job to completed.
func (m *JobManager) RecordChunk(ctx context.Context, job *models.Job, result *models.FillResult) error {
	job.CurrentChunk++
	job.Processed += len(result.Success) + len(result.Errors)
	job.Successful += len(result.Success)
	job.Failed += len(result.Errors)
	job.Errors = append(job.Errors, result.Errors...)
	job.Warnings = append(job.Warnings, result.Warnings...)

	elapsed := m.now().UTC().Sub(job.StartedAt).Seconds()
	if job.CurrentChunk > 0 && job.CurrentChunk < job.TotalChunks {
		perChunk := elapsed / float64(job.CurrentChunk)
		job.ETASeconds = int64(perChunk * float64(job.TotalChunks-job.CurrentChunk))
	} else {
		job.ETASeconds = 0
	}

	if job.CurrentChunk >= job.TotalChunks {
		job.Status = models.JobCompleted
	}

	if err := m.jobs.Save(ctx, job); err != nil {
		return err
	}

	m.events.ChunkCompleted(ctx, job.ID, job.CurrentChunk, result)
	if job.Status == models.JobCompleted {
		m.events.JobFinished(ctx, job)
		m.logger.Info("job completed",
			applogger.String("job_id", job.ID),
			applogger.Int("successful", job.Successful),
			applogger.Int("failed", job.Failed),
		)
	}
	return nil
}

// MarkFailed moves the job to the terminal failed state with a reason.
// Infrastructure faults land here; per-symbol no-data failures never do.
func (m *JobManager) MarkFailed(ctx context.Context, job *models.Job, reason string) error {
	if job.Status.Terminal() {
		return nil
	}
	job.Status = models.JobFailed
	job.FailureReason = reason
	job.ETASeconds = 0
	if err := m.jobs.Save(ctx, job); err != nil {
		return err
	}
	m.events.JobFinished(ctx, job)
	m.logger.Error("job failed",
		applogger.String("job_id", job.ID),
		applogger.String("reason", reason),
	)
	return nil
}
