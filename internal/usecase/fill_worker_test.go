package usecase

import (
	"context"
	"testing"
	"time"

	"HistFill/internal/domain/models"
)

func TestFetchSymbolFullHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	for year := 2000; year <= 2003; year++ {
		h.market.setPrice("AAPL", year, float64(year))
		h.market.setShares("AAPL", year, 1e9)
	}

	data, warnings, err := h.worker().FetchSymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("FetchSymbol: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	if len(data) != 4 {
		t.Fatalf("expected 4 years, got %d", len(data))
	}
	rec, ok := data["2002"]
	if !ok {
		t.Fatalf("missing year 2002: %v", data)
	}
	if rec.Price != 2002 {
		t.Fatalf("price = %v, want 2002", rec.Price)
	}
	if rec.MarketCap == nil || *rec.MarketCap != 2002*1e9 {
		t.Fatalf("market cap = %v, want %v", rec.MarketCap, 2002*1e9)
	}

	stored, err := h.tickers.Get(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Get after fetch: %v", err)
	}
	if len(stored) != 4 {
		t.Fatalf("stored %d years, want 4", len(stored))
	}
}

func TestFetchSymbolDropsYearWithoutShares(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	for year := 2000; year <= 2002; year++ {
		h.market.setPrice("MSFT", year, 50)
	}
	h.market.setShares("MSFT", 2000, 5e9)
	h.market.setShares("MSFT", 2002, 5e9)

	data, warnings, err := h.worker().FetchSymbol(ctx, "MSFT")
	if err != nil {
		t.Fatalf("FetchSymbol: %v", err)
	}
	if _, ok := data["2001"]; ok {
		t.Fatal("year 2001 should have been dropped, shares missing")
	}
	if len(data) != 2 {
		t.Fatalf("expected 2 years, got %d", len(data))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	if warnings[0].Year != "2001" || warnings[0].Ticker != "MSFT" {
		t.Fatalf("unexpected warning: %+v", warnings[0])
	}

	// A dropped year is a warning, never a failed-ticker mark.
	registry, err := h.failed.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(registry) != 0 {
		t.Fatalf("registry should be empty, got %v", registry)
	}
}

func TestFetchSymbolIndexFundSkipsFundamentals(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	for year := 2000; year <= 2003; year++ {
		h.market.setPrice("SPY", year, 100)
	}

	data, warnings, err := h.worker(WithIndexFunds([]string{"SPY"})).FetchSymbol(ctx, "SPY")
	if err != nil {
		t.Fatalf("FetchSymbol: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("index fund should produce no warnings, got %v", warnings)
	}
	if len(data) != 4 {
		t.Fatalf("expected 4 years, got %d", len(data))
	}
	for year, rec := range data {
		if rec.MarketCap != nil || rec.SharesOutstanding != nil {
			t.Fatalf("year %s: index fund must not carry fundamentals: %+v", year, rec)
		}
	}
}

func TestFetchSymbolTriesFallbackFormats(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	// Price only exists under the exchange-suffixed format.
	h.market.setPrice("BRK.B.US", 2001, 70)
	h.market.setShares("BRK.B", 2001, 2e9)

	worker := h.worker(WithSymbolFormats(func(s string) []string {
		return []string{s, s + ".US", s + "-DELISTED"}
	}))
	data, _, err := worker.FetchSymbol(ctx, "BRK.B")
	if err != nil {
		t.Fatalf("FetchSymbol: %v", err)
	}
	if _, ok := data["2001"]; !ok {
		t.Fatalf("expected year 2001 via suffixed format, got %v", data)
	}
}

func TestFetchSymbolTotalFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	h.market.dir = &models.SymbolDirectory{Active: map[string]bool{"AAPL": true}}

	_, _, err := h.worker().FetchSymbol(ctx, "ZZZZFAIL")
	if err == nil {
		t.Fatal("expected error for symbol with no data")
	}
	if !IsNoData(err) {
		t.Fatalf("expected a no-data error, got %v", err)
	}

	registry, err := h.failed.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	ft, ok := registry["ZZZZFAIL"]
	if !ok {
		t.Fatalf("symbol not in failed registry: %v", registry)
	}
	if ft.Reason != "symbol unknown to provider" {
		t.Fatalf("reason = %q", ft.Reason)
	}
}

func TestFetchSymbolSuccessClearsFailedMark(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	if err := h.failed.Mark(ctx, models.FailedTicker{
		Ticker:   "NVDA",
		Reason:   "no price data for any year in range",
		FailedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	h.market.setPrice("NVDA", 2002, 12)
	h.market.setShares("NVDA", 2002, 1e9)

	if _, _, err := h.worker().FetchSymbol(ctx, "NVDA"); err != nil {
		t.Fatalf("FetchSymbol: %v", err)
	}

	registry, err := h.failed.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if _, ok := registry["NVDA"]; ok {
		t.Fatal("successful fetch must clear the failed mark")
	}
}
