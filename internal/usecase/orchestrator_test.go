package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"HistFill/internal/domain/models"
	"HistFill/internal/repository"
	"HistFill/pkg/logger"
	"HistFill/pkg/metrics"
)

func (h *harness) orchestrator(w *FillWorker, opts ...OrchestratorOption) *Orchestrator {
	return NewOrchestrator(h.manager(), w, h.jobs, metrics.Noop{}, logger.Nop(), opts...)
}

// steppingClock advances a fixed amount on every reading.
type steppingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func TestRunProcessesJobToCompletion(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.market.setPrice("AAPL", 2002, 20)
	h.market.setShares("AAPL", 2002, 1e9)
	h.market.dir = &models.SymbolDirectory{Active: map[string]bool{"AAPL": true}}

	job, _, err := h.manager().Create(ctx, []string{"AAPL", "ZZZZFAIL"}, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	report, err := h.orchestrator(h.worker()).Run(ctx, job.ID, time.Hour)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Completed {
		t.Fatalf("report = %+v, want completed", report)
	}
	if report.ChunksProcessed != 2 {
		t.Fatalf("chunks processed = %d, want 2", report.ChunksProcessed)
	}

	final, err := h.jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != models.JobCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}
	if final.Successful != 1 || final.Failed != 1 || final.Processed != 2 {
		t.Fatalf("counters: %+v", final)
	}
	if len(final.Errors) != 1 || final.Errors[0].Ticker != "ZZZZFAIL" {
		t.Fatalf("errors = %v", final.Errors)
	}

	// The no-data symbol landed in the negative cache, not in job failure.
	registry, err := h.failed.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if _, ok := registry["ZZZZFAIL"]; !ok {
		t.Fatalf("registry = %v", registry)
	}
	if data, err := h.tickers.Get(ctx, "AAPL"); err != nil || len(data) == 0 {
		t.Fatalf("AAPL not stored: data=%v err=%v", data, err)
	}
}

func TestRunPausesOnBudgetAndResumes(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	for _, sym := range []string{"AAA", "BBB"} {
		h.market.setPrice(sym, 2002, 10)
		h.market.setShares(sym, 2002, 1e8)
	}

	job, _, err := h.manager().Create(ctx, []string{"AAA", "BBB"}, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	clock := &steppingClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: 10 * time.Second}
	orch := h.orchestrator(h.worker(), WithOrchestratorClock(clock.Now))

	report, err := orch.Run(ctx, job.ID, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Completed {
		t.Fatal("budget of one clock step must not complete a two-chunk job")
	}
	if report.ChunksProcessed != 1 {
		t.Fatalf("chunks processed = %d, want 1", report.ChunksProcessed)
	}

	paused, err := h.jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if paused.Status != models.JobPaused {
		t.Fatalf("status = %s, want paused", paused.Status)
	}
	if paused.CurrentChunk != 1 {
		t.Fatalf("current chunk = %d, want 1", paused.CurrentChunk)
	}

	// A later run picks up where the first left off.
	report, err = orch.Run(ctx, job.ID, 5*time.Second)
	if err != nil {
		t.Fatalf("resume Run: %v", err)
	}
	if !report.Completed {
		t.Fatalf("resume report = %+v, want completed", report)
	}
	final, err := h.jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != models.JobCompleted || final.Successful != 2 {
		t.Fatalf("final job: %+v", final)
	}
}

func TestRunRejectsLockedJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	job, _, err := h.manager().Create(ctx, []string{"AAA"}, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	locked, err := h.jobs.Lock(ctx, job.ID, time.Minute)
	if err != nil || !locked {
		t.Fatalf("Lock: locked=%v err=%v", locked, err)
	}

	_, err = h.orchestrator(h.worker()).Run(ctx, job.ID, time.Hour)
	if !errors.Is(err, ErrJobLocked) {
		t.Fatalf("err = %v, want ErrJobLocked", err)
	}
}

func TestRunStoreFaultFailsJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.market.setPrice("AAA", 2002, 10)
	h.market.setShares("AAA", 2002, 1e8)

	worker := NewFillWorker(
		h.market, brokenTickerStore{h.tickers}, h.failed,
		repository.NoopArchive{}, metrics.Noop{}, logger.Nop(),
		WithMinYear(2000),
		WithClock(func() time.Time { return time.Date(2003, 6, 15, 0, 0, 0, 0, time.UTC) }),
	)

	job, _, err := h.manager().Create(ctx, []string{"AAA"}, 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = h.orchestrator(worker).Run(ctx, job.ID, time.Hour)
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("err = %v, want store fault", err)
	}

	failed, err := h.jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if failed.Status != models.JobFailed {
		t.Fatalf("status = %s, want failed on infrastructure fault", failed.Status)
	}
	if failed.FailureReason == "" {
		t.Fatal("failure reason must be recorded")
	}
}
