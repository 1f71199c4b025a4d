package repository

import (
	"context"
	"time"

	"HistFill/internal/domain/models"
)

// MarketData fetches historical bars and fundamentals from the upstream
// provider. Absent data is reported without error; errors mean the provider
// could not be asked.
type MarketData interface {
	// PriceNear returns the first daily bar on or shortly after the target
	// date, trying the given ticker formats in order. A nil bar with nil
	// error means no format had data near the date.
	PriceNear(ctx context.Context, formats []string, target time.Time) (*models.Bar, error)
	// SharesOutstanding returns the shares reported for the most recent
	// quarter strictly before asOf. ok=false when no qualifying quarter
	// exists, which is expected for young or foreign-filer companies.
	SharesOutstanding(ctx context.Context, symbol string, asOf time.Time) (float64, bool, error)
	// KnownSymbols lists the provider's active and delisted symbols.
	KnownSymbols(ctx context.Context) (*models.SymbolDirectory, error)
}

// TickerStore persists one TickerData record per symbol, without expiry.
type TickerStore interface {
	Get(ctx context.Context, symbol string) (models.TickerData, error)
	GetBulk(ctx context.Context, symbols []string) (map[string]models.TickerData, error)
	Put(ctx context.Context, symbol string, data models.TickerData) error
	Delete(ctx context.Context, symbols ...string) error
}

// FailedRegistry is the negative cache of symbols known to yield no data.
type FailedRegistry interface {
	All(ctx context.Context) (map[string]models.FailedTicker, error)
	Mark(ctx context.Context, ft models.FailedTicker) error
	Clear(ctx context.Context, symbol string) error
}

// JobStore persists job records with a retention window and guards them with
// a per-job lock plus an optimistic version token.
type JobStore interface {
	Get(ctx context.Context, id string) (*models.Job, error)
	Save(ctx context.Context, job *models.Job) error
	Lock(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, id string) error
}

// Events publishes ingestion lifecycle events for downstream consumers.
// Publishing is best-effort; failures are logged, never escalated.
type Events interface {
	JobCreated(ctx context.Context, job *models.Job)
	ChunkCompleted(ctx context.Context, jobID string, chunk int, res *models.FillResult)
	JobFinished(ctx context.Context, job *models.Job)
	Close() error
}

// Archive appends fetched year records to an analytical sink. The key-value
// store stays the source of truth; the archive is advisory.
type Archive interface {
	StoreYears(ctx context.Context, symbol string, data models.TickerData) error
	Close() error
}

// Metrics records operational counters.
type Metrics interface {
	RecordSymbolResult(result string)
	RecordYearsStored(n int)
	RecordWarning(kind string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordChunkProcessed(jobID string)
}
