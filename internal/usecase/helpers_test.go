package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"HistFill/internal/domain/models"
	drepo "HistFill/internal/domain/repository"
	"HistFill/internal/repository"
	"HistFill/pkg/cache"
	"HistFill/pkg/logger"
	"HistFill/pkg/metrics"
)

// fakeMarket serves canned prices and shares keyed by ticker format and year.
type fakeMarket struct {
	mu         sync.Mutex
	prices     map[string]map[int]float64
	shares     map[string]map[int]float64
	dir        *models.SymbolDirectory
	gotFormats [][]string
	priceErr   error
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		prices: map[string]map[int]float64{},
		shares: map[string]map[int]float64{},
	}
}

func (f *fakeMarket) setPrice(format string, year int, price float64) {
	if f.prices[format] == nil {
		f.prices[format] = map[int]float64{}
	}
	f.prices[format][year] = price
}

func (f *fakeMarket) setShares(symbol string, year int, shares float64) {
	if f.shares[symbol] == nil {
		f.shares[symbol] = map[int]float64{}
	}
	f.shares[symbol][year] = shares
}

func (f *fakeMarket) PriceNear(_ context.Context, formats []string, target time.Time) (*models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	f.gotFormats = append(f.gotFormats, formats)
	for _, format := range formats {
		if price, ok := f.prices[format][target.Year()]; ok {
			return &models.Bar{Date: target, AdjClose: price}, nil
		}
	}
	return nil, nil
}

func (f *fakeMarket) SharesOutstanding(_ context.Context, symbol string, asOf time.Time) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	shares, ok := f.shares[symbol][asOf.Year()]
	return shares, ok, nil
}

func (f *fakeMarket) KnownSymbols(context.Context) (*models.SymbolDirectory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dir == nil {
		return &models.SymbolDirectory{Active: map[string]bool{}, Delisted: map[string]bool{}}, nil
	}
	return f.dir, nil
}

var _ drepo.MarketData = (*fakeMarket)(nil)

// brokenTickerStore fails every write; reads pass through.
type brokenTickerStore struct {
	drepo.TickerStore
}

var errStoreDown = errors.New("store unavailable")

func (b brokenTickerStore) Put(context.Context, string, models.TickerData) error {
	return errStoreDown
}

// harness wires real cache-backed repositories around the fake provider.
type harness struct {
	market  *fakeMarket
	tickers drepo.TickerStore
	failed  drepo.FailedRegistry
	jobs    drepo.JobStore
}

func newHarness() *harness {
	mem := cache.NewMemoryCache()
	return &harness{
		market:  newFakeMarket(),
		tickers: repository.NewCacheTickerStore(mem),
		failed:  repository.NewCacheFailedRegistry(mem),
		jobs:    repository.NewCacheJobStore(mem),
	}
}

func (h *harness) worker(opts ...FillWorkerOption) *FillWorker {
	base := []FillWorkerOption{
		WithMinYear(2000),
		WithClock(func() time.Time { return time.Date(2003, 6, 15, 0, 0, 0, 0, time.UTC) }),
	}
	return NewFillWorker(
		h.market, h.tickers, h.failed,
		repository.NoopArchive{}, metrics.Noop{}, logger.Nop(),
		append(base, opts...)...,
	)
}

func (h *harness) manager() *JobManager {
	return NewJobManager(h.jobs, NewCoverageChecker(h.tickers, h.failed), repository.NoopEvents{}, logger.Nop())
}
