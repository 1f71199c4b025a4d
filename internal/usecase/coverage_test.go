package usecase

import (
	"context"
	"testing"
	"time"

	"HistFill/internal/domain/models"
)

func TestCoveragePartitionsDisjoint(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	if err := h.tickers.Put(ctx, "AAPL", models.TickerData{"2005": {Price: 10}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := h.failed.Mark(ctx, models.FailedTicker{
		Ticker: "BADCO", Reason: "symbol unknown to provider", FailedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	checker := NewCoverageChecker(h.tickers, h.failed)
	cov, err := checker.Check(ctx, []string{"AAPL", "BADCO", "MSFT", "NVDA"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if len(cov.Cached) != 1 || cov.Cached[0] != "AAPL" {
		t.Fatalf("cached = %v", cov.Cached)
	}
	if len(cov.Eliminated) != 1 || cov.Eliminated[0].Symbol != "BADCO" {
		t.Fatalf("eliminated = %v", cov.Eliminated)
	}
	if cov.Eliminated[0].Reason != "symbol unknown to provider" {
		t.Fatalf("reason = %q", cov.Eliminated[0].Reason)
	}
	if len(cov.Missing) != 2 {
		t.Fatalf("missing = %v", cov.Missing)
	}
	if total := len(cov.Cached) + len(cov.Eliminated) + len(cov.Missing); total != 4 {
		t.Fatalf("partition total = %d, want 4", total)
	}
}

func TestCoverageDeduplicatesInput(t *testing.T) {
	ctx := context.Background()
	h := newHarness()

	checker := NewCoverageChecker(h.tickers, h.failed)
	cov, err := checker.Check(ctx, []string{"MSFT", "MSFT", "", "NVDA", "MSFT"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(cov.Missing) != 2 {
		t.Fatalf("missing = %v, want [MSFT NVDA]", cov.Missing)
	}
	if cov.Missing[0] != "MSFT" || cov.Missing[1] != "NVDA" {
		t.Fatalf("input order not preserved: %v", cov.Missing)
	}
}

func TestCoverageEliminatedBeatsCachedOnlyWhenUncached(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	// A symbol that failed once but has since been cached counts as cached.
	if err := h.tickers.Put(ctx, "TSLA", models.TickerData{"2020": {Price: 700}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := h.failed.Mark(ctx, models.FailedTicker{
		Ticker: "TSLA", Reason: "no price data for any year in range", FailedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	cov, err := NewCoverageChecker(h.tickers, h.failed).Check(ctx, []string{"TSLA"})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(cov.Cached) != 1 || len(cov.Eliminated) != 0 {
		t.Fatalf("cached data must win over a stale failed mark: %+v", cov)
	}
}
