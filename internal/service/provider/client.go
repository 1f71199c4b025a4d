package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"HistFill/internal/domain/models"
	drepo "HistFill/internal/domain/repository"
	"HistFill/internal/service/ratelimit"
	xhttp "HistFill/pkg/http"
	applogger "HistFill/pkg/logger"
	xutil "HistFill/pkg/util"
)

const limiterKey = "provider"

// Config holds upstream provider settings.
type Config struct {
	BaseURL        string
	APIKey         string
	CallTimeout    time.Duration
	RatePerSec     float64
	Burst          float64
	ProbeDays      int
	ExchangeSuffix string
	DelistedSuffix string
}

// Client implements MarketData against the provider's REST API. Every call
// passes the shared rate limiter and carries its own short timeout so one
// stuck symbol cannot consume a whole run budget.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	logger  *applogger.Logger
}

// New creates a provider client.
func New(cfg Config, limiter *ratelimit.Limiter, logger *applogger.Logger) drepo.MarketData {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 8 * time.Second
	}
	if cfg.ProbeDays <= 0 {
		cfg.ProbeDays = 5
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.CallTimeout)),
		limiter: limiter,
		logger:  logger,
	}
}

// SymbolFormats returns the ticker spellings to try in order: bare symbol,
// exchange-suffixed, and the provider's delisted re-index code. Callers
// always key cached data by the bare symbol.
func SymbolFormats(symbol string, cfg Config) []string {
	formats := []string{symbol}
	if cfg.ExchangeSuffix != "" {
		formats = append(formats, symbol+cfg.ExchangeSuffix)
	}
	if cfg.DelistedSuffix != "" {
		formats = append(formats, symbol+cfg.DelistedSuffix)
	}
	return formats
}

type barPayload struct {
	Date     string  `json:"date"`
	AdjClose float64 `json:"adjClose"`
	Volume   float64 `json:"volume"`
}

type statementPayload struct {
	ReportDate string `json:"reportDate"`
}

type sharesPayload struct {
	SharesOutstanding float64 `json:"sharesOutstanding"`
}

type symbolPayload struct {
	Ticker   string `json:"ticker"`
	Delisted bool   `json:"delisted"`
}

// PriceNear fetches daily bars in [target, target+probeDays] for each format
// in order and returns the first bar on or after the target date. A format
// the provider does not know (404) falls through to the next one.
func (c *Client) PriceNear(ctx context.Context, formats []string, target time.Time) (*models.Bar, error) {
	end := target.AddDate(0, 0, c.cfg.ProbeDays)
	for _, format := range formats {
		var bars []barPayload
		found, err := c.get(ctx, fmt.Sprintf("%s/daily/%s/prices", c.cfg.BaseURL, format), map[string][]string{
			"startDate": {target.Format("2006-01-02")},
			"endDate":   {end.Format("2006-01-02")},
		}, &bars)
		if err != nil {
			return nil, fmt.Errorf("price %s: %w", format, err)
		}
		if !found || len(bars) == 0 {
			continue
		}
		for _, b := range bars {
			d, ok := xutil.ParseTime(b.Date)
			if !ok {
				continue
			}
			if !d.Before(target) && !d.After(end) && b.AdjClose > 0 {
				return &models.Bar{Date: d, AdjClose: b.AdjClose, Volume: b.Volume}, nil
			}
		}
	}
	return nil, nil
}

// SharesOutstanding finds the most recent quarterly report date strictly
// before asOf, then queries that quarter's reported shares.
func (c *Client) SharesOutstanding(ctx context.Context, symbol string, asOf time.Time) (float64, bool, error) {
	var statements []statementPayload
	found, err := c.get(ctx, fmt.Sprintf("%s/fundamentals/%s/statements", c.cfg.BaseURL, symbol), map[string][]string{
		"type":   {"quarterly"},
		"before": {asOf.Format("2006-01-02")},
	}, &statements)
	if err != nil {
		return 0, false, fmt.Errorf("statements %s: %w", symbol, err)
	}
	if !found || len(statements) == 0 {
		return 0, false, nil
	}

	var latest time.Time
	for _, st := range statements {
		d, ok := xutil.ParseTime(st.ReportDate)
		if !ok {
			continue
		}
		if d.Before(asOf) && d.After(latest) {
			latest = d
		}
	}
	if latest.IsZero() {
		return 0, false, nil
	}

	var shares sharesPayload
	found, err = c.get(ctx, fmt.Sprintf("%s/fundamentals/%s/shares", c.cfg.BaseURL, symbol), map[string][]string{
		"reportDate": {latest.Format("2006-01-02")},
	}, &shares)
	if err != nil {
		return 0, false, fmt.Errorf("shares %s: %w", symbol, err)
	}
	if !found || shares.SharesOutstanding <= 0 {
		return 0, false, nil
	}
	return shares.SharesOutstanding, true, nil
}

// KnownSymbols lists every symbol the provider serves.
func (c *Client) KnownSymbols(ctx context.Context) (*models.SymbolDirectory, error) {
	var symbols []symbolPayload
	found, err := c.get(ctx, fmt.Sprintf("%s/symbols", c.cfg.BaseURL), nil, &symbols)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("symbols: directory unavailable")
	}

	dir := &models.SymbolDirectory{
		Active:   make(map[string]bool, len(symbols)),
		Delisted: make(map[string]bool),
	}
	for _, s := range symbols {
		if s.Delisted {
			dir.Delisted[s.Ticker] = true
		} else {
			dir.Active[s.Ticker] = true
		}
	}
	return dir, nil
}

// get performs a rate-limited GET with a per-call timeout. Returns
// found=false on 404 (unknown ticker, not an error).
func (c *Client) get(ctx context.Context, url string, query map[string][]string, dest interface{}) (bool, error) {
	if err := c.limiter.Wait(ctx, limiterKey, c.cfg.Burst, c.cfg.RatePerSec); err != nil {
		return false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	if query == nil {
		query = map[string][]string{}
	}
	query["token"] = []string{c.cfg.APIKey}

	resp, err := c.http.SendRequest(callCtx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		QueryParams: query,
	})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
