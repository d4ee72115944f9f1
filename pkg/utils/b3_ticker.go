// Package utils provides ticker and number formatting helpers for FinPress.
package utils

import (
	"strings"
	"unicode"
)

// YahooSuffix marks B3 (São Paulo) listings on Yahoo Finance.
const YahooSuffix = ".SA"

// maxBareTickerLen is the longest bare B3 code that still gets the suffix.
const maxBareTickerLen = 6

// maxTickerLen bounds inputs that are treated as tickers rather than names.
const maxTickerLen = 10

// NormalizeTicker trims, uppercases and strips a leading "$".
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))
	return strings.TrimPrefix(ticker, "$")
}

// LooksLikeTicker reports whether s is short and made only of letters,
// digits, '.' and '-'.
func LooksLikeTicker(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxTickerLen {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-' {
			return false
		}
	}
	return true
}

// ToYahooTicker normalizes ticker and appends ".SA" to short unsuffixed codes.
func ToYahooTicker(ticker string) string {
	ticker = NormalizeTicker(ticker)
	if len(ticker) <= maxBareTickerLen && !strings.HasSuffix(ticker, YahooSuffix) {
		return ticker + YahooSuffix
	}
	return ticker
}
