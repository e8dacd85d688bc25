package analytics

import (
	"sort"

	"github.com/david/b2-radar/internal/models"
)

// Report is the single-opportunity view: its first row and its stage history.
type Report struct {
	Opportunity models.Opportunity      `json:"opportunity"`
	Rows        int                     `json:"rows"`
	Timeline    []models.TimelineRecord `json:"timeline"`
	TotalHours  *float64                `json:"total_hours"`
}

// BuildReport returns the report for identifier, or false when no row carries it.
func BuildReport(opps []models.Opportunity, timeline []models.TimelineRecord, identifier string) (Report, bool) {
	var r Report
	found := false
	for _, o := range opps {
		if o.IdentifierValue() != identifier || identifier == "" {
			continue
		}
		if !found {
			r.Opportunity = o
			found = true
		}
		r.Rows++
	}
	if !found {
		return Report{}, false
	}

	r.Timeline = []models.TimelineRecord{}
	var hours []*float64
	for _, rec := range timeline {
		if rec.Identifier == identifier {
			r.Timeline = append(r.Timeline, rec)
			hours = append(hours, rec.HoursInStage)
		}
	}
	r.TotalHours = Sum(hours)
	return r, true
}

// Identifiers lists the distinct identifiers in opps, sorted.
func Identifiers(opps []models.Opportunity) []string {
	set := make(map[string]bool)
	for _, o := range opps {
		if o.Identifier != nil {
			set[*o.Identifier] = true
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
