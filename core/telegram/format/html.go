// Package format renders values for Telegram messages sent in HTML parse mode.
package format

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var currencySigns = map[string]string{
	"RUB": "₽",
	"USD": "$",
	"EUR": "€",
}

// Escape makes arbitrary user or admin text safe inside an HTML message.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Bold wraps escaped text in <b>.
func Bold(s string) string {
	return "<b>" + Escape(s) + "</b>"
}

// Money renders an amount with two decimals and the currency sign, e.g. "1500.00 ₽".
func Money(amount decimal.Decimal, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	sign, ok := currencySigns[code]
	if !ok {
		sign = code
	}
	if sign == "" {
		return amount.StringFixed(2)
	}
	return amount.StringFixed(2) + " " + sign
}

// Truncate cuts s to at most max runes, appending an ellipsis when it had to cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	if max == 1 {
		return string(r[:1])
	}
	return string(r[:max-1]) + "…"
}
