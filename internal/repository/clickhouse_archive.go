package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"HistFill/internal/domain/models"
	drepo "HistFill/internal/domain/repository"
	pkgch "HistFill/pkg/clickhouse"
)

// ClickHouseArchive appends fetched year records to an analytical table for
// ad-hoc queries. The key-value store remains the source of truth; archive
// write failures are surfaced but callers treat them as advisory.
type ClickHouseArchive struct {
	client *pkgch.Client
	db     *sql.DB
	table  string
}

func NewClickHouseArchive(ch *pkgch.Client, table string) *ClickHouseArchive {
	return &ClickHouseArchive{client: ch, db: ch.DB(), table: table}
}

// Schema returns the idempotent DDL for the archive table.
func Schema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			symbol String,
			year UInt16,
			price Float64,
			market_cap Nullable(Float64),
			shares_outstanding Nullable(Float64),
			fetched_at DateTime
		) ENGINE=ReplacingMergeTree(fetched_at) ORDER BY (symbol, year)`, table),
	}
}

func (a *ClickHouseArchive) StoreYears(ctx context.Context, symbol string, data models.TickerData) error {
	if len(data) == 0 {
		return nil
	}

	values := make([]string, 0, len(data))
	args := make([]interface{}, 0, len(data)*6)
	now := time.Now().UTC()
	for year, rec := range data {
		y, err := strconv.Atoi(year)
		if err != nil {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?)")
		args = append(args, symbol, uint16(y), rec.Price, rec.MarketCap, rec.SharesOutstanding, now)
	}

	q := fmt.Sprintf("INSERT INTO %s (symbol, year, price, market_cap, shares_outstanding, fetched_at) VALUES %s",
		a.table, strings.Join(values, ","))
	if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("archive %s: %w", symbol, err)
	}
	return nil
}

func (a *ClickHouseArchive) Close() error {
	return a.client.Close()
}

// NoopArchive is used when no analytical sink is configured.
type NoopArchive struct{}

func (NoopArchive) StoreYears(context.Context, string, models.TickerData) error { return nil }
func (NoopArchive) Close() error                                                { return nil }

var _ drepo.Archive = (*ClickHouseArchive)(nil)
var _ drepo.Archive = NoopArchive{}
