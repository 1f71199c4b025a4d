package repository

import (
	"context"
	"errors"
	"fmt"

	"HistFill/internal/domain/models"
	"HistFill/pkg/cache"
)

const tickerKeyPrefix = "ticker"

// CacheTickerStore persists TickerData records in the key-value store, one
// key per symbol, without expiry: financial history does not change
// retroactively.
type CacheTickerStore struct {
	store cache.Service
}

func NewCacheTickerStore(store cache.Service) *CacheTickerStore {
	return &CacheTickerStore{store: store}
}

func tickerKey(symbol string) string {
	return cache.GenerateKey(tickerKeyPrefix, symbol)
}

// Get returns the record for a symbol, or nil when absent.
func (s *CacheTickerStore) Get(ctx context.Context, symbol string) (models.TickerData, error) {
	var data models.TickerData
	err := s.store.Get(ctx, tickerKey(symbol), &data)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ticker %s: %w", symbol, err)
	}
	return data, nil
}

// GetBulk returns the records present for the given symbols, keyed by bare
// symbol. Absent symbols are simply missing from the map.
func (s *CacheTickerStore) GetBulk(ctx context.Context, symbols []string) (map[string]models.TickerData, error) {
	if len(symbols) == 0 {
		return map[string]models.TickerData{}, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = tickerKey(sym)
	}

	byKey, err := cache.MGetTyped[models.TickerData](ctx, s.store, keys...)
	if err != nil {
		return nil, fmt.Errorf("bulk get tickers: %w", err)
	}

	out := make(map[string]models.TickerData, len(byKey))
	for i, sym := range symbols {
		if data, ok := byKey[keys[i]]; ok {
			out[sym] = data
		}
	}
	return out, nil
}

// Put replaces the whole record for a symbol. Partial merges are forbidden;
// a successful fetch always supersedes whatever was stored before.
func (s *CacheTickerStore) Put(ctx context.Context, symbol string, data models.TickerData) error {
	if err := s.store.Set(ctx, tickerKey(symbol), data, 0); err != nil {
		return fmt.Errorf("put ticker %s: %w", symbol, err)
	}
	return nil
}

// Delete removes records; used by operator tooling only.
func (s *CacheTickerStore) Delete(ctx context.Context, symbols ...string) error {
	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = tickerKey(sym)
	}
	return s.store.Delete(ctx, keys...)
}
