// Package models defines the records passed between FinPress pipeline stages.
package models

import (
	"math"
	"time"
)

// Default market metadata for B3-listed tickers.
const (
	DefaultCurrency = "BRL"
	DefaultExchange = "SAO"
)

// FinancialRecord is the normalized snapshot produced by the extractor.
// Numeric fields are pointers: a nil field means the supplier had no value.
type FinancialRecord struct {
	Symbol       string `json:"symbol"`
	CompanyName  string `json:"company_name,omitempty"`
	SearchedName string `json:"searched_name,omitempty"`
	ActionSymbol string `json:"action_symbol,omitempty"` // input alias only

	Price         *float64 `json:"price,omitempty"`
	PreviousClose *float64 `json:"previous_close,omitempty"`
	Change        *float64 `json:"change,omitempty"`
	ChangePercent *float64 `json:"change_percent,omitempty"`
	Volume        *int64   `json:"volume,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty"`
	High52W       *float64 `json:"high_52w,omitempty"`
	Low52W        *float64 `json:"low_52w,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"` // percent

	PERatio             *float64 `json:"pe_ratio,omitempty"`
	PriceToBook         *float64 `json:"price_to_book,omitempty"`
	PEGRatio            *float64 `json:"peg_ratio,omitempty"`
	EnterpriseValue     *float64 `json:"enterprise_value,omitempty"`
	EnterpriseToRevenue *float64 `json:"enterprise_to_revenue,omitempty"`
	EnterpriseToEBITDA  *float64 `json:"enterprise_to_ebitda,omitempty"`

	CompanyInfo      map[string]any `json:"company_info,omitempty"`
	FinancialMetrics map[string]any `json:"financial_metrics,omitempty"`
	DividendInfo     map[string]any `json:"dividend_info,omitempty"`
	GrowthMetrics    map[string]any `json:"growth_metrics,omitempty"`

	Currency    string         `json:"currency,omitempty"`
	Exchange    string         `json:"exchange,omitempty"`
	RawData     map[string]any `json:"raw_data,omitempty"`
	CollectedAt time.Time      `json:"collected_at,omitzero"`
}

// DeriveChange fills Change and ChangePercent from Price and PreviousClose.
// It leaves both untouched unless the two inputs are present.
func (r *FinancialRecord) DeriveChange() {
	if r.Price == nil || r.PreviousClose == nil {
		return
	}
	change := *r.Price - *r.PreviousClose
	r.Change = &change
	if *r.PreviousClose > 0 {
		pct := change / *r.PreviousClose * 100
		r.ChangePercent = &pct
	} else {
		r.ChangePercent = nil
	}
}

// ChangeValue returns the day change, or 0 when unknown.
func (r *FinancialRecord) ChangeValue() float64 {
	if r == nil || r.Change == nil {
		return 0
	}
	return *r.Change
}

// ChangePercentValue returns the day change percent, or 0 when unknown.
func (r *FinancialRecord) ChangePercentValue() float64 {
	if r == nil || r.ChangePercent == nil {
		return 0
	}
	return *r.ChangePercent
}

// Trend maps the sign of the day change to the Portuguese trend word.
func (r *FinancialRecord) Trend() string {
	switch c := r.ChangeValue(); {
	case c > 0:
		return "alta"
	case c < 0:
		return "queda"
	default:
		return "estabilidade"
	}
}

// IsEmpty reports whether the record carries no market data at all.
func (r *FinancialRecord) IsEmpty() bool {
	if r == nil {
		return true
	}
	for _, v := range []*float64{
		r.Price, r.PreviousClose, r.Change, r.ChangePercent, r.MarketCap,
		r.High52W, r.Low52W, r.DividendYield, r.PERatio,
	} {
		if v != nil {
			return false
		}
	}
	return r.Volume == nil
}

// Float returns a pointer to v. NaN and Inf are treated as absent.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NonZero returns a pointer to v, or nil when v is zero.
// Supplier payloads encode "missing" as 0 for most ratio fields.
func NonZero(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return Float(v)
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}

// DropNil returns a copy of m without nil values or nil pointers.
func DropNil(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch x := v.(type) {
		case nil:
			continue
		case *float64:
			if x == nil {
				continue
			}
			out[k] = *x
		case *int64:
			if x == nil {
				continue
			}
			out[k] = *x
		case string:
			if x == "" {
				continue
			}
			out[k] = x
		default:
			out[k] = v
		}
	}
	return out
}
