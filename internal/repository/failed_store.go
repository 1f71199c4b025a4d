package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"HistFill/internal/domain/models"
	"HistFill/pkg/cache"
)

const failedTickersKey = "failed_tickers"

// CacheFailedRegistry keeps the negative cache of symbols that yielded no
// usable data, stored as a single record mapping symbol to failure detail.
// The whole registry lives under one key, so every mutation is a
// read-modify-write; mu serializes them across concurrent symbol workers.
type CacheFailedRegistry struct {
	store cache.Service
	mu    sync.Mutex
}

func NewCacheFailedRegistry(store cache.Service) *CacheFailedRegistry {
	return &CacheFailedRegistry{store: store}
}

// All returns the whole registry; empty map when none failed yet.
func (r *CacheFailedRegistry) All(ctx context.Context) (map[string]models.FailedTicker, error) {
	reg := make(map[string]models.FailedTicker)
	err := r.store.Get(ctx, failedTickersKey, &reg)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("get failed registry: %w", err)
	}
	return reg, nil
}

// Mark records a total symbol failure, preserving the original FailedAt when
// the symbol was already registered.
func (r *CacheFailedRegistry) Mark(ctx context.Context, ft models.FailedTicker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.All(ctx)
	if err != nil {
		return err
	}
	if prev, ok := reg[ft.Ticker]; ok && !prev.FailedAt.IsZero() {
		ft.FailedAt = prev.FailedAt
	}
	reg[ft.Ticker] = ft
	if err := r.store.Set(ctx, failedTickersKey, reg, 0); err != nil {
		return fmt.Errorf("save failed registry: %w", err)
	}
	return nil
}

// Clear removes a symbol from the registry. Clearing an absent symbol is a
// no-op so a successful fetch can always call it.
func (r *CacheFailedRegistry) Clear(ctx context.Context, symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, err := r.All(ctx)
	if err != nil {
		return err
	}
	if _, ok := reg[symbol]; !ok {
		return nil
	}
	delete(reg, symbol)
	if err := r.store.Set(ctx, failedTickersKey, reg, 0); err != nil {
		return fmt.Errorf("save failed registry: %w", err)
	}
	return nil
}
