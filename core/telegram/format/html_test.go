package format

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoney(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		want     string
	}{
		{"1000", "RUB", "1000.00 ₽"},
		{"2500.5", "rub", "2500.50 ₽"},
		{"9.99", "GBP", "9.99 GBP"},
		{"1", "", "1.00"},
	}
	for _, tc := range cases {
		got := Money(decimal.RequireFromString(tc.amount), tc.currency)
		if got != tc.want {
			t.Errorf("Money(%s, %q) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}

func TestEscape(t *testing.T) {
	if got := Bold(`Go <fast> & "safe"`); got != "<b>Go &lt;fast&gt; &amp; &#34;safe&#34;</b>" {
		t.Fatalf("Bold = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("Привет", 10); got != "Привет" {
		t.Fatalf("short string changed: %q", got)
	}
	if got := Truncate("Привет мир", 4); got != "При…" {
		t.Fatalf("Truncate = %q", got)
	}
}
