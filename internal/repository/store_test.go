package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"HistFill/internal/domain/models"
	"HistFill/pkg/cache"
)

func fp(v float64) *float64 { return &v }

func TestTickerStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewCacheTickerStore(cache.NewMemoryCache())

	data := models.TickerData{
		"2005": {Price: 10.5, MarketCap: fp(1e9), SharesOutstanding: fp(9.5e7)},
	}
	if err := store.Put(ctx, "AAPL", data); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "AAPL")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rec, ok := got["2005"]
	if !ok || rec.Price != 10.5 || rec.MarketCap == nil || *rec.MarketCap != 1e9 {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestTickerStoreGetAbsent(t *testing.T) {
	store := NewCacheTickerStore(cache.NewMemoryCache())
	got, err := store.Get(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent symbol, got %v", got)
	}
}

func TestTickerStorePutReplacesWholesale(t *testing.T) {
	ctx := context.Background()
	store := NewCacheTickerStore(cache.NewMemoryCache())

	_ = store.Put(ctx, "AAPL", models.TickerData{"2004": {Price: 1}, "2005": {Price: 2}})
	_ = store.Put(ctx, "AAPL", models.TickerData{"2006": {Price: 3}})

	got, _ := store.Get(ctx, "AAPL")
	if len(got) != 1 {
		t.Fatalf("expected wholesale replace, got %v", got)
	}
	if _, ok := got["2004"]; ok {
		t.Fatalf("old year survived replace: %v", got)
	}
}

func TestTickerStoreGetBulk(t *testing.T) {
	ctx := context.Background()
	store := NewCacheTickerStore(cache.NewMemoryCache())

	_ = store.Put(ctx, "AAPL", models.TickerData{"2005": {Price: 1}})
	_ = store.Put(ctx, "MSFT", models.TickerData{"2005": {Price: 2}})

	got, err := store.GetBulk(ctx, []string{"AAPL", "MSFT", "GONE"})
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if _, ok := got["GONE"]; ok {
		t.Fatalf("absent symbol should not appear")
	}
}

func TestFailedRegistryMarkClear(t *testing.T) {
	ctx := context.Background()
	reg := NewCacheFailedRegistry(cache.NewMemoryCache())

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = reg.Mark(ctx, models.FailedTicker{Ticker: "ZZZZ", Reason: "no data", FailedAt: first, LastAttempt: first})

	later := first.Add(48 * time.Hour)
	_ = reg.Mark(ctx, models.FailedTicker{Ticker: "ZZZZ", Reason: "still no data", FailedAt: later, LastAttempt: later})

	all, err := reg.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	ft := all["ZZZZ"]
	if !ft.FailedAt.Equal(first) {
		t.Fatalf("FailedAt should be preserved across re-marks, got %v", ft.FailedAt)
	}
	if !ft.LastAttempt.Equal(later) {
		t.Fatalf("LastAttempt should advance, got %v", ft.LastAttempt)
	}

	if err := reg.Clear(ctx, "ZZZZ"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := reg.Clear(ctx, "ZZZZ"); err != nil {
		t.Fatalf("clearing absent symbol should be a no-op, got %v", err)
	}
	all, _ = reg.All(ctx)
	if len(all) != 0 {
		t.Fatalf("registry should be empty, got %v", all)
	}
}

func TestJobStoreSaveIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	store := NewCacheJobStore(cache.NewMemoryCache())

	job := &models.Job{ID: "j1", Status: models.JobPending}
	if err := store.Save(ctx, job); err != nil {
		t.Fatalf("save: %v", err)
	}
	if job.Version != 1 {
		t.Fatalf("expected version 1, got %d", job.Version)
	}

	got, err := store.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("persisted version mismatch: %d", got.Version)
	}
}

func TestJobStoreRejectsStaleSave(t *testing.T) {
	ctx := context.Background()
	store := NewCacheJobStore(cache.NewMemoryCache())

	job := &models.Job{ID: "j1", Status: models.JobPending}
	_ = store.Save(ctx, job)

	// A second runner loads the same version and saves first.
	other, _ := store.Get(ctx, "j1")
	if err := store.Save(ctx, other); err != nil {
		t.Fatalf("other save: %v", err)
	}

	job.Processed = 5
	err := store.Save(ctx, job)
	if !errors.Is(err, ErrStaleJob) {
		t.Fatalf("expected ErrStaleJob, got %v", err)
	}
}

func TestJobStoreGetUnknown(t *testing.T) {
	store := NewCacheJobStore(cache.NewMemoryCache())
	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobStoreLock(t *testing.T) {
	ctx := context.Background()
	store := NewCacheJobStore(cache.NewMemoryCache())

	ok, err := store.Lock(ctx, "j1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	ok, _ = store.Lock(ctx, "j1", time.Minute)
	if ok {
		t.Fatalf("second lock should be rejected")
	}
	_ = store.Unlock(ctx, "j1")
	ok, _ = store.Lock(ctx, "j1", time.Minute)
	if !ok {
		t.Fatalf("lock after unlock should succeed")
	}
}

// slowStore adds per-operation latency so the read-modify-write windows of
// concurrent registry mutations actually overlap, as they do against a
// remote Redis.
type slowStore struct {
	cache.Service
	delay time.Duration
}

func (s slowStore) Get(ctx context.Context, key string, dest interface{}) error {
	time.Sleep(s.delay)
	return s.Service.Get(ctx, key, dest)
}

func (s slowStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	time.Sleep(s.delay)
	return s.Service.Set(ctx, key, value, expiration)
}

func TestFailedRegistryConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	reg := NewCacheFailedRegistry(slowStore{Service: cache.NewMemoryCache(), delay: 2 * time.Millisecond})

	if err := reg.Mark(ctx, models.FailedTicker{Ticker: "GONE", Reason: "no data"}); err != nil {
		t.Fatalf("seed mark: %v", err)
	}

	symbols := []string{"AAAA", "BBBB", "CCCC", "DDDD"}
	var wg sync.WaitGroup
	for _, sym := range symbols {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.Mark(ctx, models.FailedTicker{Ticker: sym, Reason: "no data"}); err != nil {
				t.Errorf("mark %s: %v", sym, err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reg.Clear(ctx, "GONE"); err != nil {
			t.Errorf("clear: %v", err)
		}
	}()
	wg.Wait()

	all, err := reg.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != len(symbols) {
		t.Fatalf("registry holds %d of %d concurrently marked symbols: %v", len(all), len(symbols), all)
	}
	for _, sym := range symbols {
		if _, ok := all[sym]; !ok {
			t.Fatalf("mark for %s was lost: %v", sym, all)
		}
	}
	if _, ok := all["GONE"]; ok {
		t.Fatalf("cleared symbol survived: %v", all)
	}
}
