package ingest

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		in   string
		want *time.Time
	}{
		{"01/01/2024 10:00:00", ptr(time.Date(2024, 1, 1, 10, 0, 0, 0, loc))},
		{"3/1/2024 10:00:00", ptr(time.Date(2024, 1, 3, 10, 0, 0, 0, loc))},
		{"15/02/2024 09:30", ptr(time.Date(2024, 2, 15, 9, 30, 0, 0, loc))},
		{"15/02/2024", ptr(time.Date(2024, 2, 15, 0, 0, 0, 0, loc))},
		{"15/02/2024 às 09:30", ptr(time.Date(2024, 2, 15, 9, 30, 0, 0, loc))},
		{"2024-02-15 09:30:00", ptr(time.Date(2024, 2, 15, 9, 30, 0, 0, loc))},
		{"2024-02-15", ptr(time.Date(2024, 2, 15, 0, 0, 0, 0, loc))},
		{"", nil},
		{"ontem", nil},
		{"31/02/2024 10:00:00", nil},
		{"01/13/2024", nil},
	}

	for _, tt := range tests {
		got := ParseTimestamp(tt.in, loc)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("ParseTimestamp(%q) = %v, want nil", tt.in, *got)
		case tt.want != nil && got == nil:
			t.Errorf("ParseTimestamp(%q) = nil, want %v", tt.in, *tt.want)
		case tt.want != nil && !got.Equal(*tt.want):
			t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, *got, *tt.want)
		}
	}
}

func TestParseTimestamp_UsesLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	got := ParseTimestamp("01/01/2024 10:00:00", loc)
	if got == nil {
		t.Fatal("expected a timestamp")
	}
	if got.UTC().Hour() != 13 {
		t.Fatalf("expected 13:00 UTC, got %v", got.UTC())
	}
	if got.Hour() != 10 {
		t.Fatalf("expected local hour preserved, got %d", got.Hour())
	}
}
