package ingest

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// currencyNoise matches everything that can't be part of a pt-BR number.
var currencyNoise = regexp.MustCompile(`[^\d,.\-]`)

// ParseCurrency converts a pt-BR money string into a number.
// Handles "R$ 1.234,56", "1.234,56", "987,10" and plain "1500". Dots are thousands
// separators and the comma is the decimal mark. Anything unparseable yields nil.
func ParseCurrency(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "R$", "")
	s = currencyNoise.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return parseDecimal(s)
}

// NormalizeCurrency applies ParseCurrency to a whole column.
func NormalizeCurrency(values []string) []*float64 {
	out := make([]*float64, len(values))
	for i, v := range values {
		out[i] = ParseCurrency(v)
	}
	return out
}

// ParsePercent parses probability cells like "50%", "12,5 %" or "80" into 50, 12.5, 80.
func ParsePercent(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.Join(strings.Fields(s), "")
	return parseDecimal(s)
}

func parseDecimal(s string) *float64 {
	if s == "" || s == "-" || s == "." {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	f, _ := d.Float64()
	return &f
}
