package format

import (
	"math"
	"testing"
)

func f(v float64) *float64 { return &v }

func TestBRL(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{f(1234.56), "R$ 1.234,56"},
		{f(2000), "R$ 2.000,00"},
		{f(987.1), "R$ 987,10"},
		{f(1000000.01), "R$ 1.000.000,01"},
		{f(0), "R$ 0,00"},
		{f(-1234.5), "R$ -1.234,50"},
		{f(-0.001), "R$ 0,00"},
		{f(math.NaN()), "R$ 0,00"},
		{nil, "R$ 0,00"},
	}
	for _, tt := range tests {
		if got := BRL(tt.in); got != tt.want {
			t.Errorf("BRL(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   *float64
		want string
	}{
		{f(52.345), "52,3%"},
		{f(100), "100,0%"},
		{f(0), "0,0%"},
		{nil, "0,0%"},
	}
	for _, tt := range tests {
		if got := Percent(tt.in); got != tt.want {
			t.Errorf("Percent(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDaysHours(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{24, "1 dias, 0 horas"},
		{26.9, "1 dias, 2 horas"},
		{5.5, "0 dias, 5 horas"},
		{math.NaN(), "N/A"},
	}
	for _, tt := range tests {
		if got := DaysHours(tt.in); got != tt.want {
			t.Errorf("DaysHours(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInt(t *testing.T) {
	for in, want := range map[int]string{0: "0", 999: "999", 1000: "1.000", 1234567: "1.234.567", -4500: "-4.500"} {
		if got := Int(in); got != want {
			t.Errorf("Int(%d) = %q, want %q", in, got, want)
		}
	}
}
