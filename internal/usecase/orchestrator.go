package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"HistFill/internal/domain/models"
	drepo "HistFill/internal/domain/repository"
	applogger "HistFill/pkg/logger"
)

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithParallelism bounds the number of symbols fetched concurrently inside a
// chunk.
func WithParallelism(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithChunkDelay sets the pause between chunks, giving the upstream provider
// breathing room.
func WithChunkDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.chunkDelay = d }
}

// WithLockTTL sets how long a run holds the per-job lock before it expires on
// its own.
func WithLockTTL(ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithOrchestratorClock overrides the time source for tests.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// RunReport summarizes one bounded run over a job. Completed=false with no
// error means the wall-clock budget ran out and the job was paused for a
// later continuation.
type RunReport struct {
	Completed       bool
	ChunksProcessed int
	Job             *models.Job
}

// Orchestrator drives a job through its chunks inside a wall-clock budget.
// Exactly one run can hold a job at a time; the per-job lock rejects a second
// runner outright instead of queueing it.
type Orchestrator struct {
	manager *JobManager
	worker  *FillWorker
	jobs    drepo.JobStore
	metrics drepo.Metrics
	logger  *applogger.Logger

	parallelism int
	chunkDelay  time.Duration
	lockTTL     time.Duration
	now         func() time.Time
}

func NewOrchestrator(
	manager *JobManager,
	worker *FillWorker,
	jobs drepo.JobStore,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		manager:     manager,
		worker:      worker,
		jobs:        jobs,
		metrics:     metrics,
		logger:      logger,
		parallelism: 4,
		chunkDelay:  0,
		lockTTL:     10 * time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ErrJobLocked is returned when another run already holds the job.
var ErrJobLocked = errors.New("job is already being processed")

// Run processes chunks until the job is done or the budget expires. A
// budget-expired job is left paused and resumable; an infrastructure fault
// marks the job failed and is returned. Per-symbol no-data failures only
// increment the job's failed counter.
func (o *Orchestrator) Run(ctx context.Context, jobID string, budget time.Duration) (*RunReport, error) {
	locked, err := o.jobs.Lock(ctx, jobID, o.lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrJobLocked)
	}
	defer func() {
		if err := o.jobs.Unlock(context.WithoutCancel(ctx), jobID); err != nil {
			o.logger.Warn("job unlock failed", applogger.String("job_id", jobID), applogger.Error(err))
		}
	}()

	job, err := o.manager.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return &RunReport{Completed: job.Status == models.JobCompleted, Job: job}, nil
	}

	if err := o.manager.Transition(ctx, job, models.JobRunning); err != nil {
		return nil, err
	}

	deadline := o.now().Add(budget)
	report := &RunReport{Job: job}

	for {
		chunk := o.manager.NextChunk(job)
		if len(chunk) == 0 {
			break
		}

		result, err := o.processChunk(ctx, chunk)
		if err != nil {
			if ferr := o.manager.MarkFailed(ctx, job, err.Error()); ferr != nil {
				o.logger.Error("could not persist job failure",
					applogger.String("job_id", jobID), applogger.Error(ferr))
			}
			return report, err
		}

		if err := o.manager.RecordChunk(ctx, job, result); err != nil {
			return report, err
		}
		report.ChunksProcessed++
		o.metrics.RecordChunkProcessed(jobID)

		if job.Status == models.JobCompleted {
			break
		}
		if ctx.Err() != nil || !o.now().Before(deadline) {
			if err := o.manager.Transition(ctx, job, models.JobPaused); err != nil {
				return report, err
			}
			o.logger.Info("budget exhausted, job paused",
				applogger.String("job_id", jobID),
				applogger.Int("current_chunk", job.CurrentChunk),
				applogger.Int("total_chunks", job.TotalChunks),
			)
			return report, nil
		}
		if o.chunkDelay > 0 {
			select {
			case <-time.After(o.chunkDelay):
			case <-ctx.Done():
			}
		}
	}

	report.Completed = job.Status == models.JobCompleted
	return report, nil
}

// processChunk fetches every symbol in the chunk with bounded concurrency.
// No-data symbols become entries in the result's error list; anything else
// aborts the chunk.
func (o *Orchestrator) processChunk(ctx context.Context, symbols []string) (*models.FillResult, error) {
	var mu sync.Mutex
	result := &models.FillResult{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.parallelism)
	for _, symbol := range symbols {
		g.Go(func() error {
			_, warnings, err := o.worker.FetchSymbol(gctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			result.Warnings = append(result.Warnings, warnings...)
			switch {
			case err == nil:
				result.Success = append(result.Success, symbol)
			case IsNoData(err):
				result.Errors = append(result.Errors, models.SymbolError{Ticker: symbol, Error: err.Error()})
			default:
				return fmt.Errorf("symbol %s: %w", symbol, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
