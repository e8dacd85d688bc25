// Package analytics computes the KPIs and aggregations shown on the dashboard from
// the normalized opportunity and timeline tables.
package analytics

import (
	"time"

	"github.com/david/b2-radar/internal/models"
)

// Filter narrows the opportunity table. Zero values match everything.
type Filter struct {
	From       *time.Time // inclusive, compared by calendar date
	To         *time.Time // inclusive, compared by calendar date
	Stages     []string
	Owners     []string
	States     []string
	Identifier string
}

func (f Filter) IsZero() bool {
	return f.From == nil && f.To == nil && len(f.Stages) == 0 && len(f.Owners) == 0 &&
		len(f.States) == 0 && f.Identifier == ""
}

// Apply returns the rows matching every set criterion. When a date bound is set,
// rows without an open date are excluded.
func (f Filter) Apply(opps []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(opps))
	stages, owners, states := toSet(f.Stages), toSet(f.Owners), toSet(f.States)

	for _, o := range opps {
		if f.From != nil || f.To != nil {
			if o.OpenedAt == nil {
				continue
			}
			day := dateOnly(*o.OpenedAt, o.OpenedAt.Location())
			if f.From != nil && day.Before(dateOnly(*f.From, o.OpenedAt.Location())) {
				continue
			}
			if f.To != nil && day.After(dateOnly(*f.To, o.OpenedAt.Location())) {
				continue
			}
		}
		if stages != nil && !stages[o.Stage] {
			continue
		}
		if owners != nil && !owners[o.Owner] {
			continue
		}
		if states != nil && !states[o.State] {
			continue
		}
		if f.Identifier != "" && o.IdentifierValue() != f.Identifier {
			continue
		}
		out = append(out, o)
	}
	return out
}

// dateOnly truncates t to midnight of its calendar day in loc. A bound parsed as a bare
// date keeps its own calendar day.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// RestrictTimeline keeps timeline records whose identifier appears in opps.
func RestrictTimeline(timeline []models.TimelineRecord, opps []models.Opportunity) []models.TimelineRecord {
	ids := make(map[string]bool, len(opps))
	for _, o := range opps {
		if o.Identifier != nil {
			ids[*o.Identifier] = true
		}
	}
	out := make([]models.TimelineRecord, 0, len(timeline))
	for _, rec := range timeline {
		if ids[rec.Identifier] {
			out = append(out, rec)
		}
	}
	return out
}
