package utils

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var brPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL formats amount as Brazilian Real, e.g. 1234.5 → "R$ 1.234,50".
func FormatBRL(amount float64) string {
	if amount < 0 {
		return "-R$ " + brPrinter.Sprintf("%.2f", math.Abs(amount))
	}
	return "R$ " + brPrinter.Sprintf("%.2f", amount)
}

// FormatDecimal formats v with the given number of decimals using
// Brazilian separators, e.g. 0.654 → "0,65".
func FormatDecimal(v float64, decimals int) string {
	return brPrinter.Sprintf("%."+strconv.Itoa(decimals)+"f", v)
}

// FormatPct formats a percentage with two decimals, e.g. 1.67 → "1,67%".
func FormatPct(pct float64) string {
	return FormatDecimal(pct, 2) + "%"
}

// FormatVolume formats a share count with dot thousands, e.g. "1.234.567".
func FormatVolume(volume int64) string {
	return brPrinter.Sprintf("%d", volume)
}
