package models

import (
	"errors"
	"time"
)

// ErrNoData marks a symbol for which no usable year could be fetched. It is
// the only fetch error that does not escalate a chunk; callers use errors.Is.
var ErrNoData = errors.New("no usable data for symbol")

// YearRecord is one year's snapshot for a symbol. MarketCap and
// SharesOutstanding are absent for index-fund instruments.
type YearRecord struct {
	Price             float64  `json:"price"`
	MarketCap         *float64 `json:"market_cap,omitempty"`
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty"`
}

// TickerData is the persisted record for one symbol: a sparse map from
// 4-digit year string to that year's snapshot. An entry exists for a year
// only if a trade price near the start of that year was obtainable. The
// record is replaced wholesale on every successful fetch and never expires.
type TickerData map[string]YearRecord

// FailedTicker is a negative-cache entry for a symbol that yielded zero
// usable years. Cleared explicitly by an operator or by a later successful
// fetch.
type FailedTicker struct {
	Ticker      string    `json:"ticker"`
	Reason      string    `json:"reason"`
	FailedAt    time.Time `json:"failedAt"`
	LastAttempt time.Time `json:"lastAttempt"`
}

// Bar is a single daily price bar from the upstream provider.
type Bar struct {
	Date     time.Time `json:"date"`
	AdjClose float64   `json:"adjClose"`
	Volume   float64   `json:"volume"`
}

// SymbolDirectory lists the symbols the upstream provider knows about,
// used to tell "invalid symbol" from "temporarily unavailable".
type SymbolDirectory struct {
	Active   map[string]bool
	Delisted map[string]bool
}

// Known reports whether the provider serves the symbol at all.
func (d *SymbolDirectory) Known(symbol string) bool {
	if d == nil {
		return true
	}
	return d.Active[symbol] || d.Delisted[symbol]
}
