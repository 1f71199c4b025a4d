package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	applogger "HistFill/pkg/logger"
	"HistFill/pkg/queue"
)

// RunMessageType is the queue message type for job continuations.
const RunMessageType = "job.run"

// RunPayload is the queued instruction to process a job for one budget window.
type RunPayload struct {
	JobID         string `json:"jobId"`
	BudgetSeconds int    `json:"budgetSeconds"`
}

// JobRunner consumes job.run messages: it drives the orchestrator for one
// budget window and, when the job pauses on budget exhaustion, enqueues its
// own continuation. A job therefore walks itself to completion through the
// queue without anyone re-invoking the API.
type JobRunner struct {
	orchestrator *Orchestrator
	publisher    queue.Service
	logger       *applogger.Logger

	defaultBudget time.Duration
}

func NewJobRunner(orchestrator *Orchestrator, publisher queue.Service, logger *applogger.Logger, defaultBudget time.Duration) *JobRunner {
	if defaultBudget <= 0 {
		defaultBudget = 4 * time.Minute
	}
	return &JobRunner{
		orchestrator:  orchestrator,
		publisher:     publisher,
		logger:        logger,
		defaultBudget: defaultBudget,
	}
}

func (r *JobRunner) Name() string { return "job_runner" }
func (r *JobRunner) Type() string { return RunMessageType }

// Handle processes one continuation message. A locked job is dropped without
// retry: whoever holds the lock is already making progress.
func (r *JobRunner) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RunPayload](payload)
	if err != nil {
		return err
	}

	budget := r.defaultBudget
	if p.BudgetSeconds > 0 {
		budget = time.Duration(p.BudgetSeconds) * time.Second
	}

	report, err := r.orchestrator.Run(ctx, p.JobID, budget)
	if err != nil {
		if errors.Is(err, ErrJobLocked) {
			r.logger.Warn("continuation skipped, job locked", applogger.String("job_id", p.JobID))
			return nil
		}
		return fmt.Errorf("run job %s: %w", p.JobID, err)
	}

	if !report.Completed && report.Job != nil && !report.Job.Status.Terminal() {
		return r.Enqueue(ctx, p.JobID, p.BudgetSeconds)
	}
	return nil
}

// Enqueue schedules a run (or continuation) of the job.
func (r *JobRunner) Enqueue(ctx context.Context, jobID string, budgetSeconds int) error {
	err := r.publisher.PublishMessage(ctx, RunMessageType, RunPayload{
		JobID:         jobID,
		BudgetSeconds: budgetSeconds,
	})
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	r.logger.Info("job run enqueued", applogger.String("job_id", jobID))
	return nil
}
