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
	"HistFill/pkg/util"
)

// FillWorkerOption configures FillWorker.
type FillWorkerOption func(*FillWorker)

// WithMinYear sets the first year to backfill.
func WithMinYear(year int) FillWorkerOption {
	return func(w *FillWorker) {
		if year > 0 {
			w.minYear = year
		}
	}
}

// WithIndexFunds sets the allow-list of index-fund-like instruments for
// which shares outstanding and market cap are skipped entirely.
func WithIndexFunds(symbols []string) FillWorkerOption {
	return func(w *FillWorker) {
		w.indexFunds = make(map[string]bool, len(symbols))
		for _, s := range symbols {
			w.indexFunds[s] = true
		}
	}
}

// WithSymbolFormats sets the ticker-format expansion used for price lookups.
func WithSymbolFormats(fn func(string) []string) FillWorkerOption {
	return func(w *FillWorker) {
		if fn != nil {
			w.formats = fn
		}
	}
}

// WithClock overrides the time source; tests pin the current year with it.
func WithClock(now func() time.Time) FillWorkerOption {
	return func(w *FillWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// FillWorker fetches one symbol's full multi-year history, enforces the
// data-quality rules and persists the result. It writes only to the ticker
// cache and the failed registry; job state belongs to the JobManager.
type FillWorker struct {
	data    drepo.MarketData
	tickers drepo.TickerStore
	failed  drepo.FailedRegistry
	archive drepo.Archive
	metrics drepo.Metrics
	logger  *applogger.Logger

	minYear    int
	indexFunds map[string]bool
	formats    func(string) []string
	now        func() time.Time

	dirMu  sync.Mutex
	dir    *models.SymbolDirectory
	dirSet bool
}

func NewFillWorker(
	data drepo.MarketData,
	tickers drepo.TickerStore,
	failed drepo.FailedRegistry,
	archive drepo.Archive,
	metrics drepo.Metrics,
	logger *applogger.Logger,
	opts ...FillWorkerOption,
) *FillWorker {
	w := &FillWorker{
		data:       data,
		tickers:    tickers,
		failed:     failed,
		archive:    archive,
		metrics:    metrics,
		logger:     logger,
		minYear:    util.MinYear,
		indexFunds: map[string]bool{},
		formats:    func(s string) []string { return []string{s} },
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FetchSymbol walks every year in [minYear, currentYear], fetching the
// adjusted close near January 2nd and, for non-index instruments, the shares
// outstanding as of that date. Years that fail the data-quality gate are
// dropped with a warning. Zero usable years is a total failure recorded in
// the failed registry and reported as models.ErrNoData; any store error is
// returned as-is so the caller can escalate it.
func (w *FillWorker) FetchSymbol(ctx context.Context, symbol string) (models.TickerData, []models.DataWarning, error) {
	start := time.Now()
	isIndex := w.indexFunds[symbol]
	formats := w.formats(symbol)
	currentYear := w.now().UTC().Year()

	data := make(models.TickerData)
	var warnings []models.DataWarning

	for _, year := range util.Years(w.minYear, currentYear) {
		target := util.YearTarget(year)
		yearKey := util.YearKey(year)

		var bar *models.Bar
		var shares float64
		var hasShares bool

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			b, err := w.data.PriceNear(gctx, formats, target)
			if err != nil {
				return fmt.Errorf("price %s: %w", yearKey, err)
			}
			bar = b
			return nil
		})
		if !isIndex {
			g.Go(func() error {
				s, ok, err := w.data.SharesOutstanding(gctx, symbol, target)
				if err != nil {
					return fmt.Errorf("shares %s: %w", yearKey, err)
				}
				shares, hasShares = s, ok
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			// One year's upstream error never aborts the symbol.
			w.logger.Warn("year fetch failed",
				applogger.String("symbol", symbol),
				applogger.String("year", yearKey),
				applogger.Error(err),
			)
			w.metrics.RecordError("year_fetch")
			continue
		}

		if bar == nil {
			continue // no trade price near the target date, no entry
		}

		if isIndex {
			data[yearKey] = models.YearRecord{Price: bar.AdjClose}
			continue
		}

		if !hasShares || shares <= 0 {
			warnings = append(warnings, models.DataWarning{
				Ticker: symbol,
				Year:   yearKey,
				Issue:  "price present but shares outstanding missing",
			})
			w.metrics.RecordWarning("missing_shares")
			continue
		}

		marketCap := bar.AdjClose * shares
		if marketCap <= 0 {
			warnings = append(warnings, models.DataWarning{
				Ticker: symbol,
				Year:   yearKey,
				Issue:  "derived market cap is not positive",
			})
			w.metrics.RecordWarning("bad_market_cap")
			continue
		}

		mc, sh := marketCap, shares
		data[yearKey] = models.YearRecord{Price: bar.AdjClose, MarketCap: &mc, SharesOutstanding: &sh}
	}

	w.metrics.RecordLatency("fetch_symbol", time.Since(start).Seconds())

	if len(data) == 0 {
		reason := w.failureReason(ctx, symbol)
		now := w.now().UTC()
		if err := w.failed.Mark(ctx, models.FailedTicker{
			Ticker:      symbol,
			Reason:      reason,
			FailedAt:    now,
			LastAttempt: now,
		}); err != nil {
			return nil, warnings, err
		}
		w.metrics.RecordSymbolResult("failed")
		return nil, warnings, fmt.Errorf("%s: %s: %w", symbol, reason, models.ErrNoData)
	}

	// A successful fetch replaces the whole record and lifts any prior
	// failed-ticker mark.
	if err := w.tickers.Put(ctx, symbol, data); err != nil {
		return nil, warnings, err
	}
	if err := w.failed.Clear(ctx, symbol); err != nil {
		return nil, warnings, err
	}
	if err := w.archive.StoreYears(ctx, symbol, data); err != nil {
		w.logger.Warn("archive write failed", applogger.String("symbol", symbol), applogger.Error(err))
		w.metrics.RecordError("archive")
	}

	w.metrics.RecordSymbolResult("success")
	w.metrics.RecordYearsStored(len(data))
	w.logger.Info("symbol filled",
		applogger.String("symbol", symbol),
		applogger.Int("years", len(data)),
		applogger.Int("warnings", len(warnings)),
	)
	return data, warnings, nil
}

// failureReason distinguishes "provider does not know the symbol" from
// "known but no data near the target dates", using a directory fetched at
// most once per worker lifetime.
func (w *FillWorker) failureReason(ctx context.Context, symbol string) string {
	w.dirMu.Lock()
	defer w.dirMu.Unlock()

	if !w.dirSet {
		dir, err := w.data.KnownSymbols(ctx)
		if err != nil {
			w.logger.Warn("symbol directory unavailable", applogger.Error(err))
		} else {
			w.dir = dir
		}
		w.dirSet = true
	}

	if w.dir != nil && !w.dir.Known(symbol) {
		return "symbol unknown to provider"
	}
	return "no price data for any year in range"
}

// IsNoData reports whether an error is a total symbol failure rather than an
// infrastructure fault.
func IsNoData(err error) bool {
	return errors.Is(err, models.ErrNoData)
}
