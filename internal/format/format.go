// Package format renders amounts and dates for display.
package format

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"fintrack/internal/core"
)

const (
	DefaultSymbol = "₹"
	DefaultLocale = "en-IN"
)

// Formatter is safe for concurrent use.
type Formatter struct {
	symbol  string
	printer *message.Printer
}

// New builds a formatter for the given currency symbol and BCP 47 locale.
// An unknown locale falls back to English grouping.
func New(symbol, locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{symbol: symbol, printer: message.NewPrinter(tag)}
}

// Default returns the rupee formatter used when nothing is configured.
func Default() *Formatter {
	return New(DefaultSymbol, DefaultLocale)
}

// Currency renders m with locale grouping and two decimals, e.g. "₹1,234.50".
func (f *Formatter) Currency(m core.Money) string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return sign + f.symbol + f.printer.Sprintf("%.2f", float64(c)/100)
}

// Symbol is the configured currency symbol.
func (f *Formatter) Symbol() string { return f.symbol }

// Date renders d as "05 Mar 2024"; a missing date renders "-".
func Date(d core.Date) string {
	if d.IsZero() {
		return "-"
	}
	return d.Format("02 Jan 2006")
}

// MonthLabel renders the short month name used on chart axes.
func MonthLabel(t time.Time) string {
	return t.Format("Jan")
}
