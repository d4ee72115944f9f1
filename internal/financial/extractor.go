// Package financial builds the normalized FinancialRecord of a company from
// Yahoo Finance snapshots and daily history.
package financial

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/seenimoa/finpress/internal/datasource"
	"github.com/seenimoa/finpress/pkg/models"
	"github.com/seenimoa/finpress/pkg/utils"
)

// ErrNotFound is returned when the supplier has no snapshot for the ticker.
var ErrNotFound = errors.New("financial: no market data found")

// historyRange is the chart window used for price fallbacks.
const historyRange = "2d"

// Defaults for FetchWithRetry.
const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 5 * time.Second
)

// MarketData is the subset of the Yahoo client the extractor needs.
type MarketData interface {
	Snapshot(ctx context.Context, ticker string) (*datasource.Snapshot, error)
	History(ctx context.Context, ticker, rng string) ([]datasource.Bar, error)
}

// TickerResolver maps a company name to a ticker.
type TickerResolver interface {
	Resolve(ctx context.Context, company string) (string, error)
}

// Extractor fetches and normalizes market data.
type Extractor struct {
	market   MarketData
	resolver TickerResolver
	now      func() time.Time
}

// New creates an extractor.
func New(market MarketData, resolver TickerResolver) *Extractor {
	return &Extractor{market: market, resolver: resolver, now: time.Now}
}

// Fetch returns the record for ticker. companyName, when set, overrides the
// supplier's name and is recorded as searched_name.
func (e *Extractor) Fetch(ctx context.Context, ticker, companyName string) (*models.FinancialRecord, error) {
	symbol := utils.ToYahooTicker(ticker)

	snap, err := e.market.Snapshot(ctx, symbol)
	if err != nil {
		if errors.Is(err, datasource.ErrTickerNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
		}
		return nil, fmt.Errorf("financial: snapshot %s: %w", symbol, err)
	}
	if snap == nil || len(snap.Info) == 0 {
		return nil, fmt.Errorf("%w: %s: empty snapshot", ErrNotFound, symbol)
	}

	bars, err := e.market.History(ctx, symbol, historyRange)
	if err != nil {
		log.Warn().Str("symbol", symbol).Err(err).Msg("history unavailable, using snapshot only")
		bars = nil
	}

	rec := buildRecord(snap, closesOf(bars), lastVolume(bars), symbol, companyName)
	rec.CollectedAt = e.now().UTC()
	return rec, nil
}

// FetchByName resolves name to a ticker and fetches it. When resolution
// fails the name itself is tried as a ticker.
func (e *Extractor) FetchByName(ctx context.Context, name string) (*models.FinancialRecord, error) {
	ticker, err := e.resolver.Resolve(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug().Str("company", name).Err(err).Msg("resolution failed, trying name as ticker")
		ticker = name
	}
	return e.Fetch(ctx, ticker, name)
}

// FetchWithRetry calls FetchByName up to maxRetries times, sleeping delay
// between attempts. It returns ErrNotFound once attempts are exhausted.
func (e *Extractor) FetchWithRetry(ctx context.Context, name string, maxRetries int, delay time.Duration) (*models.FinancialRecord, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		rec, err := e.FetchByName(ctx, name)
		if err == nil {
			return rec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Info().Str("company", name).Int("attempt", attempt).Int("max", maxRetries).Err(err).Msg("financial fetch failed")

		if attempt < maxRetries && delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	if errors.Is(lastErr, ErrNotFound) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %q after %d attempts: %v", ErrNotFound, name, maxRetries, lastErr)
}

// buildRecord maps the flattened snapshot onto the record. closes holds the
// non-null history closes, oldest first.
func buildRecord(snap *datasource.Snapshot, closes []float64, histVolume *int64, symbol, companyName string) *models.FinancialRecord {
	rec := &models.FinancialRecord{
		Symbol:       firstNonEmpty(snap.Symbol, symbol),
		SearchedName: companyName,
		Currency:     firstNonEmpty(snap.String("currency"), models.DefaultCurrency),
		Exchange:     firstNonEmpty(snap.String("exchange"), models.DefaultExchange),
		RawData:      maps.Clone(snap.Info),
	}
	name := firstNonEmpty(snap.String("longName"), snap.String("shortName"), symbol)
	rec.CompanyName = firstNonEmpty(companyName, name)

	rec.Price = snap.Float("currentPrice", "regularMarketPrice")
	if rec.Price == nil && len(closes) > 0 {
		rec.Price = models.Float(closes[len(closes)-1])
	}
	rec.PreviousClose = snap.Float("previousClose", "regularMarketPreviousClose")
	if rec.PreviousClose == nil && len(closes) > 1 {
		rec.PreviousClose = models.Float(closes[len(closes)-2])
	}
	rec.DeriveChange()

	rec.Volume = snap.Int("volume", "regularMarketVolume")
	if rec.Volume == nil {
		rec.Volume = histVolume
	}
	rec.MarketCap = snap.Float("marketCap")
	rec.High52W = snap.Float("fiftyTwoWeekHigh")
	rec.Low52W = snap.Float("fiftyTwoWeekLow")
	rec.DividendYield = percent(snap.Float("dividendYield"))

	rec.PERatio = snap.Float("trailingPE", "forwardPE")
	rec.PriceToBook = snap.Float("priceToBook")
	rec.PEGRatio = snap.Float("pegRatio")
	rec.EnterpriseValue = snap.Float("enterpriseValue")
	rec.EnterpriseToRevenue = snap.Float("enterpriseToRevenue")
	rec.EnterpriseToEBITDA = snap.Float("enterpriseToEbitda")

	rec.CompanyInfo = models.DropNil(map[string]any{
		"name":        name,
		"short_name":  snap.String("shortName"),
		"sector":      snap.String("sector"),
		"industry":    snap.String("industry"),
		"description": snap.String("longBusinessSummary", "description"),
		"website":     snap.String("website"),
		"country":     snap.String("country"),
		"city":        snap.String("city"),
		"state":       snap.String("state"),
		"address":     snap.String("address1"),
		"phone":       snap.String("phone"),
		"employees":   snap.Int("fullTimeEmployees"),
		"exchange":    rec.Exchange,
		"currency":    rec.Currency,
	})

	rec.FinancialMetrics = models.DropNil(map[string]any{
		"revenue":            snap.Float("totalRevenue", "revenue"),
		"revenue_growth":     snap.Float("revenueGrowth"),
		"gross_profit":       snap.Float("grossProfits"),
		"operating_income":   snap.Float("operatingIncome"),
		"net_income":         snap.Float("netIncomeToCommon", "netIncome"),
		"ebitda":             snap.Float("ebitda"),
		"total_cash":         snap.Float("totalCash"),
		"total_debt":         snap.Float("totalDebt"),
		"book_value":         snap.Float("bookValue"),
		"price_to_book":      snap.Float("priceToBook"),
		"earnings_growth":    snap.Float("earningsGrowth"),
		"revenue_per_share":  snap.Float("revenuePerShare"),
		"earnings_per_share": snap.Float("trailingEps", "forwardEps"),
		"profit_margin":      snap.Float("profitMargins"),
		"operating_margin":   snap.Float("operatingMargins"),
		"return_on_equity":   snap.Float("returnOnEquity"),
		"return_on_assets":   snap.Float("returnOnAssets"),
		"debt_to_equity":     snap.Float("debtToEquity"),
		"beta":               snap.Float("beta"),
	})

	rec.DividendInfo = models.DropNil(map[string]any{
		"dividend_rate":                snap.Float("dividendRate"),
		"dividend_yield":               rec.DividendYield,
		"payout_ratio":                 snap.Float("payoutRatio"),
		"ex_dividend_date":             epochDate(snap.Float("exDividendDate")),
		"dividend_date":                epochDate(snap.Float("dividendDate", "lastDividendDate")),
		"five_year_avg_dividend_yield": snap.Float("fiveYearAvgDividendYield"),
	})

	rec.GrowthMetrics = models.DropNil(map[string]any{
		"revenue_growth":            snap.Float("revenueGrowth"),
		"earnings_growth":           snap.Float("earningsGrowth"),
		"earnings_quarterly_growth": snap.Float("earningsQuarterlyGrowth"),
		"revenue_quarterly_growth":  snap.Float("revenueQuarterlyGrowth"),
	})

	return rec
}

func closesOf(bars []datasource.Bar) []float64 {
	closes := make([]float64, 0, len(bars))
	for _, b := range bars {
		if b.Close != nil {
			closes = append(closes, *b.Close)
		}
	}
	return closes
}

func lastVolume(bars []datasource.Bar) *int64 {
	for i := len(bars) - 1; i >= 0; i-- {
		if bars[i].Volume != nil {
			v := *bars[i].Volume
			return &v
		}
	}
	return nil
}

// percent converts a supplier ratio (0.12) into a percentage (12).
func percent(ratio *float64) *float64 {
	if ratio == nil {
		return nil
	}
	return models.Float(*ratio * 100)
}

// epochDate renders a Unix timestamp as YYYY-MM-DD.
func epochDate(ts *float64) string {
	if ts == nil || *ts <= 0 {
		return ""
	}
	return time.Unix(int64(*ts), 0).UTC().Format(time.DateOnly)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
