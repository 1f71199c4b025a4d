package usecase

import (
	"context"
	"fmt"

	"HistFill/internal/domain/models"
	drepo "HistFill/internal/domain/repository"
)

// CoverageChecker partitions a requested symbol list into already-cached,
// needs-fetch and permanently-failed. It is read-only and idempotent: it is
// called both when creating a job and when validating readiness before a
// simulation run.
type CoverageChecker struct {
	tickers drepo.TickerStore
	failed  drepo.FailedRegistry
}

func NewCoverageChecker(tickers drepo.TickerStore, failed drepo.FailedRegistry) *CoverageChecker {
	return &CoverageChecker{tickers: tickers, failed: failed}
}

// Check classifies each symbol exactly once, preserving input order.
// Duplicates in the input are collapsed.
func (c *CoverageChecker) Check(ctx context.Context, symbols []string) (*models.Coverage, error) {
	unique := dedupe(symbols)

	cached, err := c.tickers.GetBulk(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("coverage: %w", err)
	}
	registry, err := c.failed.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("coverage: %w", err)
	}

	cov := &models.Coverage{
		Missing:    []string{},
		Eliminated: []models.EliminatedSymbol{},
		Cached:     []string{},
	}
	for _, sym := range unique {
		if data, ok := cached[sym]; ok && len(data) > 0 {
			cov.Cached = append(cov.Cached, sym)
			continue
		}
		if ft, ok := registry[sym]; ok {
			cov.Eliminated = append(cov.Eliminated, models.EliminatedSymbol{Symbol: sym, Reason: ft.Reason})
			continue
		}
		cov.Missing = append(cov.Missing, sym)
	}
	return cov, nil
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
