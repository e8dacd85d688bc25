package ingest

import (
	"testing"
	"time"

	"github.com/david/b2-radar/internal/models"
)

func opp(row int, id string, opened, closed *time.Time) models.Opportunity {
	o := models.Opportunity{Row: row, Stage: "Proposta", OpenedAt: opened, ClosedAt: closed}
	if id != "" {
		o.Identifier = ptr(id)
	}
	DeriveFeatures(&o)
	return o
}

func TestBuildTimeline_Durations(t *testing.T) {
	open := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	closed := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)

	got := BuildTimeline([]models.Opportunity{
		opp(0, "OC1", &open, &closed),
		opp(1, "OC2", &open, nil),
		opp(2, "OC3", &open, nil),
	}, now)

	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if *got[0].HoursInStage != 48 || got[0].Duration != "2d 0h 0m" || got[0].Open {
		t.Fatalf("unexpected closed record: %+v", got[0])
	}
	// Both open stages are measured against the same instant.
	for _, rec := range got[1:] {
		if !rec.Open || *rec.HoursInStage != 24.5 || rec.Duration != "1d 0h 30m" {
			t.Fatalf("unexpected open record: %+v", rec)
		}
	}
}

func TestBuildTimeline_ExcludesMissingKeys(t *testing.T) {
	open := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	got := BuildTimeline([]models.Opportunity{
		opp(0, "", &open, nil),
		opp(1, "OC1", nil, nil),
		opp(2, "OC1", &open, nil),
	}, open.Add(time.Hour))

	if len(got) != 1 || got[0].Row != 2 {
		t.Fatalf("expected only row 2, got %+v", got)
	}
}

func TestBuildTimeline_Ordering(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	now := t2.Add(time.Hour)

	got := BuildTimeline([]models.Opportunity{
		opp(0, "OC2", &t2, nil),
		opp(1, "OC1", &t2, nil),
		opp(2, "OC1", &t1, nil),
		opp(3, "OC2", &t1, nil),
		opp(4, "OC2", &t1, nil),
	}, now)

	wantRows := []int{2, 1, 3, 4, 0}
	for i, row := range wantRows {
		if got[i].Row != row {
			t.Fatalf("position %d: expected row %d, got %d (%+v)", i, row, got[i].Row, got)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		hours *float64
		want  string
	}{
		{ptr(25.5), "1d 1h 30m"},
		{ptr(48.0), "2d 0h 0m"},
		{ptr(24.0), "1d 0h 0m"},
		{ptr(0.1), "0d 0h 6m"},
		{ptr(23.999), "0d 23h 59m"},
		{ptr(0.0), "0d 0h 0m"},
		{ptr(-1.5), "-0d 1h 30m"},
		{nil, "N/A"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.hours); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}
