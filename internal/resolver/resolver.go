// Package resolver maps a free-text company name to a B3 ticker symbol as
// known to Yahoo Finance.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/phuslu/log"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/seenimoa/finpress/internal/datasource"
	"github.com/seenimoa/finpress/pkg/utils"
)

// ErrNotFound is returned when no strategy identifies a ticker.
var ErrNotFound = errors.New("resolver: ticker not found")

// Share-class suffixes tried after a four-letter root, most liquid first:
// preferred (4), ordinary (3), units (11), preferred class B (5).
var classSuffixes = []string{"4", "3", "11", "5"}

const (
	rootLen       = 4
	minRootLen    = 3
	minWordLength = 4
)

// SymbolLookup checks whether a symbol is known to the market data supplier.
// *datasource.YahooClient implements it.
type SymbolLookup interface {
	Lookup(ctx context.Context, symbol string) (*datasource.LookupResult, error)
}

// Resolver runs the lookup strategies in order; the first hit wins.
type Resolver struct {
	market SymbolLookup
}

// New creates a resolver backed by p.
func New(p SymbolLookup) *Resolver {
	return &Resolver{market: p}
}

// Resolve returns the Yahoo symbol for company (e.g. "PETR4.SA").
func (r *Resolver) Resolve(ctx context.Context, company string) (string, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return "", fmt.Errorf("%w: empty name", ErrNotFound)
	}

	strategies := []struct {
		name string
		fn   func(context.Context, string) (string, bool)
	}{
		{"ticker", r.asTicker},
		{"root+suffix", r.byRootAndSuffix},
		{"raw name", r.byRawName},
	}
	for _, s := range strategies {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if symbol, ok := s.fn(ctx, company); ok {
			log.Debug().Str("company", company).Str("symbol", symbol).Str("strategy", s.name).Msg("ticker resolved")
			return symbol, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, company)
}

// asTicker accepts inputs that already look like a ticker and whose lookup
// returns a long name.
func (r *Resolver) asTicker(ctx context.Context, company string) (string, bool) {
	if !utils.LooksLikeTicker(company) {
		return "", false
	}
	symbol := utils.ToYahooTicker(company)
	res := r.lookup(ctx, symbol)
	if res == nil || res.LongName == "" {
		return "", false
	}
	return symbol, true
}

// byRootAndSuffix tries ROOT+class+".SA" for each share class and accepts
// the first whose name shares a significant word with the input.
func (r *Resolver) byRootAndSuffix(ctx context.Context, company string) (string, bool) {
	root := TickerRoot(company)
	if len(root) < minRootLen {
		return "", false
	}
	for _, suffix := range classSuffixes {
		symbol := root + suffix + utils.YahooSuffix
		res := r.lookup(ctx, symbol)
		if res == nil || res.LongName == "" {
			continue
		}
		if NamesMatch(company, res.LongName) || NamesMatch(company, res.ShortName) {
			return symbol, true
		}
		if ctx.Err() != nil {
			return "", false
		}
	}
	return "", false
}

// byRawName looks up the input as given and accepts any symbol it yields.
func (r *Resolver) byRawName(ctx context.Context, company string) (string, bool) {
	res := r.lookup(ctx, company)
	if res == nil || res.Symbol == "" {
		return "", false
	}
	return res.Symbol, true
}

func (r *Resolver) lookup(ctx context.Context, symbol string) *datasource.LookupResult {
	res, err := r.market.Lookup(ctx, symbol)
	if err != nil {
		log.Debug().Str("symbol", symbol).Err(err).Msg("lookup failed")
		return nil
	}
	return res
}

// TickerRoot returns the first four alphanumerics of name, uppercased and
// without diacritics ("Itaú Unibanco" -> "ITAU").
func TickerRoot(name string) string {
	var b strings.Builder
	for _, r := range StripDiacritics(name) {
		if b.Len() == rootLen {
			break
		}
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// NamesMatch reports whether a significant word (four or more letters) of
// one name occurs inside the other, ignoring case and accents.
func NamesMatch(query, name string) bool {
	q := strings.ToUpper(StripDiacritics(query))
	n := strings.ToUpper(StripDiacritics(name))
	if q == "" || n == "" {
		return false
	}
	for _, w := range strings.Fields(q) {
		if len([]rune(w)) >= minWordLength && strings.Contains(n, w) {
			return true
		}
	}
	for _, w := range strings.Fields(n) {
		if len([]rune(w)) >= minWordLength && strings.Contains(q, w) {
			return true
		}
	}
	return false
}

// StripDiacritics removes combining marks ("Petróleo" -> "Petroleo").
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
