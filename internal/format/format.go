// Package format renders values the way the dashboard shows them to pt-BR users.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// BRL formats a money value as "R$ 1.234,56". Nil renders as "R$ 0,00".
func BRL(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "R$ 0,00"
	}
	s := decimal.NewFromFloat(*v).StringFixed(2)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	if sign == "-" && strings.Trim(intPart+frac, "0") == "" {
		sign = ""
	}
	return "R$ " + sign + groupThousands(intPart) + "," + frac
}

// Percent formats a percentage with one decimal: "52,3%". Nil renders as "0,0%".
func Percent(v *float64) string {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return "0,0%"
	}
	return strings.Replace(fmt.Sprintf("%.1f", *v), ".", ",", 1) + "%"
}

// DaysHours renders an hour count as "1 dias, 2 horas".
func DaysHours(hours float64) string {
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return "N/A"
	}
	days := math.Floor(hours / 24)
	rest := math.Floor(hours - days*24)
	return fmt.Sprintf("%d dias, %d horas", int64(days), int64(rest))
}

// Int formats a count with dot thousands separators.
func Int(n int) string {
	if n < 0 {
		return "-" + groupThousands(fmt.Sprint(-n))
	}
	return groupThousands(fmt.Sprint(n))
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
