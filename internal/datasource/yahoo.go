package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"github.com/seenimoa/finpress/internal/config"
	"github.com/seenimoa/finpress/pkg/utils"
)

// DefaultYahooBaseURL is the public Yahoo Finance query host.
const DefaultYahooBaseURL = "https://query1.finance.yahoo.com"

// snapshotModules are the quoteSummary modules merged into a Snapshot.
var snapshotModules = []string{"price", "summaryDetail", "assetProfile", "financialData", "defaultKeyStatistics"}

// YahooClient reads quote snapshots and daily history from Yahoo Finance.
// All requests share one rate limiter.
type YahooClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cache   *Cache
}

// YahooOption configures the Yahoo client.
type YahooOption func(*YahooClient)

// WithYahooBaseURL points the client at a different host (tests, proxies).
func WithYahooBaseURL(u string) YahooOption {
	return func(y *YahooClient) { y.baseURL = strings.TrimSuffix(u, "/") }
}

// WithYahooHTTPClient sets a custom HTTP client.
func WithYahooHTTPClient(c *http.Client) YahooOption {
	return func(y *YahooClient) { y.http = c }
}

// WithYahooRateLimit sets the sustained request rate. Zero or negative disables limiting.
func WithYahooRateLimit(perSecond float64) YahooOption {
	return func(y *YahooClient) {
		if perSecond <= 0 {
			y.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		y.limiter = rate.NewLimiter(rate.Limit(perSecond), 2)
	}
}

// NewYahooClient creates a Yahoo Finance client (2 req/s, 30s timeout).
func NewYahooClient(opts ...YahooOption) *YahooClient {
	y := &YahooClient{
		baseURL: DefaultYahooBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		cache:   NewCache(time.Minute),
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// NewYahooClientFromConfig builds a client from the market section of the config.
func NewYahooClientFromConfig(cfg config.MarketConfig) *YahooClient {
	opts := []YahooOption{WithYahooRateLimit(cfg.RequestsPerS)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithYahooBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithYahooHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return NewYahooClient(opts...)
}

// Name returns the data source name.
func (y *YahooClient) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance API types ---

type yfQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]map[string]json.RawMessage `json:"result"`
		Error  *yfError                                `json:"error"`
	} `json:"quoteSummary"`
}

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
}

type yfIndicators struct {
	Quote []yfOHLCV `json:"quote"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfFinVal struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yfSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
	} `json:"quotes"`
}

// --- Public types ---

// Snapshot is the flattened quoteSummary of one symbol: every module field
// keyed by its Yahoo name, numbers as float64, text as string.
type Snapshot struct {
	Symbol string
	Info   map[string]any
}

// Float returns the first key present as a number.
func (s *Snapshot) Float(keys ...string) *float64 {
	if s == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := s.Info[k].(float64); ok {
			return &v
		}
	}
	return nil
}

// Int returns the first key present as a number, truncated.
func (s *Snapshot) Int(keys ...string) *int64 {
	if f := s.Float(keys...); f != nil {
		v := int64(*f)
		return &v
	}
	return nil
}

// String returns the first key present as non-empty text.
func (s *Snapshot) String(keys ...string) string {
	if s == nil {
		return ""
	}
	for _, k := range keys {
		if v, ok := s.Info[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Bar is one daily history row. Yahoo leaves holes as nulls.
type Bar struct {
	Time   time.Time
	Close  *float64
	Volume *int64
}

// LookupResult identifies a symbol Yahoo knows about.
type LookupResult struct {
	Symbol    string
	LongName  string
	ShortName string
}

// --- Public methods ---

// Snapshot returns the merged quoteSummary modules for ticker.
func (y *YahooClient) Snapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	symbol := utils.ToYahooTicker(ticker)

	cacheKey := "snapshot:" + symbol
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached.(*Snapshot), nil
	}

	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		y.baseURL, url.PathEscape(symbol), strings.Join(snapshotModules, ","))

	var resp yfQuoteSummaryResponse
	if err := y.getJSON(ctx, u, &resp); err != nil {
		if IsHTTPStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
		}
		return nil, fmt.Errorf("yahoo quoteSummary %s: %w", symbol, err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrTickerNotFound, symbol, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}

	snap := &Snapshot{Symbol: symbol, Info: flattenModules(resp.QuoteSummary.Result[0])}
	if sym := snap.String("symbol"); sym != "" {
		snap.Symbol = sym
	}
	y.cache.Set(cacheKey, snap)
	return snap, nil
}

// History returns daily bars for ticker over rng ("2d", "5d", "1mo", ...).
func (y *YahooClient) History(ctx context.Context, ticker, rng string) ([]Bar, error) {
	symbol := utils.ToYahooTicker(ticker)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		y.baseURL, url.PathEscape(symbol), url.QueryEscape(rng))

	var resp yfChartResponse
	if err := y.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}
	return parseBars(resp.Chart.Result[0]), nil
}

// Lookup checks whether symbol exists. Inputs that do not look like a ticker
// go through Yahoo's search endpoint and return its best B3 match.
func (y *YahooClient) Lookup(ctx context.Context, symbol string) (*LookupResult, error) {
	if !utils.LooksLikeTicker(symbol) {
		return y.search(ctx, symbol)
	}
	snap, err := y.Snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &LookupResult{
		Symbol:    snap.Symbol,
		LongName:  snap.String("longName"),
		ShortName: snap.String("shortName"),
	}, nil
}

func (y *YahooClient) search(ctx context.Context, query string) (*LookupResult, error) {
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=5&newsCount=0",
		y.baseURL, url.QueryEscape(strings.TrimSpace(query)))

	var resp yfSearchResponse
	if err := y.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("yahoo search %q: %w", query, err)
	}
	if len(resp.Quotes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, query)
	}

	best := resp.Quotes[0]
	for _, q := range resp.Quotes {
		if strings.HasSuffix(q.Symbol, utils.YahooSuffix) {
			best = q
			break
		}
	}
	return &LookupResult{Symbol: best.Symbol, LongName: best.LongName, ShortName: best.ShortName}, nil
}

// --- Helpers ---

func (y *YahooClient) getJSON(ctx context.Context, u string, out any) error {
	if err := y.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := doGet(ctx, y.http, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// flattenModules merges quoteSummary modules into one map. Formatted values
// ({"raw":..,"fmt":..}) collapse to raw, empty objects are skipped, and the
// first module to provide a key wins.
func flattenModules(result map[string]map[string]json.RawMessage) map[string]any {
	info := make(map[string]any)
	for _, module := range snapshotModules {
		fields, ok := result[module]
		if !ok {
			continue
		}
		for key, raw := range fields {
			if _, seen := info[key]; seen {
				continue
			}
			if v, ok := decodeYahooValue(raw); ok {
				info[key] = v
			}
		}
	}
	return info
}

func decodeYahooValue(raw json.RawMessage) (any, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == "{}" {
		return nil, false
	}

	switch trimmed[0] {
	case '{':
		var fv yfFinVal
		if err := json.Unmarshal(raw, &fv); err != nil || fv.Raw == nil {
			return nil, false
		}
		return *fv.Raw, true
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return nil, false
		}
		return s, true
	case '[':
		return nil, false
	case 't', 'f':
		return trimmed == "true", true
	default:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			log.Debug().Str("value", trimmed).Msg("yahoo: skipping undecodable field")
			return nil, false
		}
		return f, true
	}
}

func parseBars(result yfChartResult) []Bar {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		b := Bar{Time: time.Unix(ts, 0).UTC()}
		if i < len(q.Close) {
			b.Close = q.Close[i]
		}
		if i < len(q.Volume) {
			b.Volume = q.Volume[i]
		}
		bars = append(bars, b)
	}
	return bars
}
