package ingest

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/david/b2-radar/internal/models"
)

// BuildTimeline derives one record per (identifier, stage observation). Rows without an
// identifier or an open timestamp are skipped. Still-open stages are measured against now,
// which the caller captures once per run.
func BuildTimeline(opps []models.Opportunity, now time.Time) []models.TimelineRecord {
	out := make([]models.TimelineRecord, 0, len(opps))
	for _, o := range opps {
		if o.Identifier == nil || o.OpenedAt == nil {
			continue
		}
		rec := models.TimelineRecord{
			Identifier: *o.Identifier,
			Stage:      o.Stage,
			StageGroup: o.StageGroup,
			OpenedAt:   *o.OpenedAt,
			ClosedAt:   o.ClosedAt,
			Open:       o.ClosedAt == nil,
			Row:        o.Row,
		}
		end := now
		if o.ClosedAt != nil {
			end = *o.ClosedAt
		}
		rec.HoursInStage = ptr(HoursBetween(*o.OpenedAt, end))
		rec.Duration = FormatDuration(rec.HoursInStage)
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Identifier != b.Identifier {
			return a.Identifier < b.Identifier
		}
		if !a.OpenedAt.Equal(b.OpenedAt) {
			return a.OpenedAt.Before(b.OpenedAt)
		}
		return a.Row < b.Row
	})
	return out
}

// HoursBetween returns end-start in fractional hours.
func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// FormatDuration renders hours as "{d}d {h}h {m}m", flooring at each step. Nil is "N/A".
func FormatDuration(hours *float64) string {
	if hours == nil || math.IsNaN(*hours) || math.IsInf(*hours, 0) {
		return "N/A"
	}
	sign := ""
	h := *hours
	if h < 0 {
		sign = "-"
		h = -h
	}
	// epsilon absorbs float error such as 0.1h*60 = 5.999...
	totalMinutes := int64(math.Floor(h*60 + 1e-9))
	days := totalMinutes / (24 * 60)
	rest := totalMinutes % (24 * 60)
	return fmt.Sprintf("%s%dd %dh %dm", sign, days, rest/60, rest%60)
}
