package analytics

import (
	"sort"

	"github.com/david/b2-radar/internal/format"
	"github.com/david/b2-radar/internal/ingest"
	"github.com/david/b2-radar/internal/models"
)

type OwnerCount struct {
	Owner         string `json:"owner"`
	Opportunities int    `json:"opportunities"`
}

type StateMonthCount struct {
	State         string `json:"state"`
	Period        string `json:"period"`
	Opportunities int    `json:"opportunities"`
}

type StageCount struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}

type GroupCount struct {
	Group         string `json:"group"`
	Opportunities int    `json:"opportunities"`
}

type StageDuration struct {
	Stage     string  `json:"stage"`
	MeanHours float64 `json:"mean_hours"`
	Display   string  `json:"display"`
}

// Heatmap counts distinct opportunities per stage (rows) and opening hour (columns).
type Heatmap struct {
	Stages []string `json:"stages"`
	Hours  []int    `json:"hours"`
	Counts [][]int  `json:"counts"`
}

// Aggregations bundles every chart dataset of the overview page.
type Aggregations struct {
	ByOwner      []OwnerCount      `json:"by_owner"`
	ByStateMonth []StateMonthCount `json:"by_state_month"`
	Heatmap      Heatmap           `json:"heatmap"`
	Stages       []StageCount      `json:"stages"`
	Funnel       []GroupCount      `json:"funnel"`
	MeanTime     []StageDuration   `json:"mean_time"`
}

// Aggregate computes all aggregations. timeline must already be restricted to opps.
func Aggregate(opps []models.Opportunity, timeline []models.TimelineRecord) Aggregations {
	return Aggregations{
		ByOwner:      ByOwner(opps),
		ByStateMonth: ByStateMonth(opps),
		Heatmap:      StageHourHeatmap(timeline),
		Stages:       StageDistribution(opps),
		Funnel:       Funnel(opps),
		MeanTime:     MeanTimePerStage(timeline),
	}
}

// ByOwner counts distinct identifiers per owner, ordered by owner.
func ByOwner(opps []models.Opportunity) []OwnerCount {
	ids := make(map[string]map[string]bool)
	for _, o := range opps {
		set, ok := ids[o.Owner]
		if !ok {
			set = make(map[string]bool)
			ids[o.Owner] = set
		}
		if o.Identifier != nil {
			set[*o.Identifier] = true
		}
	}
	out := make([]OwnerCount, 0, len(ids))
	for owner, set := range ids {
		out = append(out, OwnerCount{Owner: owner, Opportunities: len(set)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

// ByStateMonth counts distinct identifiers per state and opening month.
// Rows without an open date are left out.
func ByStateMonth(opps []models.Opportunity) []StateMonthCount {
	type key struct{ state, period string }
	ids := make(map[key]map[string]bool)
	for _, o := range opps {
		if o.OpenPeriod == "" {
			continue
		}
		k := key{o.State, o.OpenPeriod}
		set, ok := ids[k]
		if !ok {
			set = make(map[string]bool)
			ids[k] = set
		}
		if o.Identifier != nil {
			set[*o.Identifier] = true
		}
	}
	out := make([]StateMonthCount, 0, len(ids))
	for k, set := range ids {
		out = append(out, StateMonthCount{State: k.state, Period: k.period, Opportunities: len(set)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Period < out[j].Period
	})
	return out
}

// StageHourHeatmap only lists hours that occur; missing cells are zero.
func StageHourHeatmap(timeline []models.TimelineRecord) Heatmap {
	type key struct {
		stage string
		hour  int
	}
	ids := make(map[key]map[string]bool)
	stageSet := make(map[string]bool)
	hourSet := make(map[int]bool)
	for _, rec := range timeline {
		k := key{rec.Stage, rec.OpenedAt.Hour()}
		set, ok := ids[k]
		if !ok {
			set = make(map[string]bool)
			ids[k] = set
		}
		set[rec.Identifier] = true
		stageSet[rec.Stage] = true
		hourSet[k.hour] = true
	}

	h := Heatmap{Stages: sortedKeys(stageSet), Hours: make([]int, 0, len(hourSet))}
	for hour := range hourSet {
		h.Hours = append(h.Hours, hour)
	}
	sort.Ints(h.Hours)

	h.Counts = make([][]int, len(h.Stages))
	for i, stage := range h.Stages {
		h.Counts[i] = make([]int, len(h.Hours))
		for j, hour := range h.Hours {
			h.Counts[i][j] = len(ids[key{stage, hour}])
		}
	}
	return h
}

// StageDistribution counts rows per raw stage label, largest first.
func StageDistribution(opps []models.Opportunity) []StageCount {
	counts := make(map[string]int)
	for _, o := range opps {
		counts[o.Stage]++
	}
	out := make([]StageCount, 0, len(counts))
	for stage, n := range counts {
		out = append(out, StageCount{Stage: stage, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Stage < out[j].Stage
	})
	return out
}

// Funnel counts distinct identifiers per stage group in funnel order. Empty groups are omitted.
func Funnel(opps []models.Opportunity) []GroupCount {
	ids := make(map[string]map[string]bool)
	for _, o := range opps {
		if o.Identifier == nil {
			continue
		}
		set, ok := ids[o.StageGroup]
		if !ok {
			set = make(map[string]bool)
			ids[o.StageGroup] = set
		}
		set[*o.Identifier] = true
	}
	out := make([]GroupCount, 0, len(ids))
	for _, group := range ingest.StageGroupOrder {
		if set, ok := ids[group]; ok {
			out = append(out, GroupCount{Group: group, Opportunities: len(set)})
		}
	}
	return out
}

// MeanTimePerStage averages HoursInStage per stage label, ordered by stage.
func MeanTimePerStage(timeline []models.TimelineRecord) []StageDuration {
	type acc struct {
		sum float64
		n   int
	}
	by := make(map[string]*acc)
	for _, rec := range timeline {
		if rec.HoursInStage == nil {
			continue
		}
		a, ok := by[rec.Stage]
		if !ok {
			a = &acc{}
			by[rec.Stage] = a
		}
		a.sum += *rec.HoursInStage
		a.n++
	}
	out := make([]StageDuration, 0, len(by))
	for stage, a := range by {
		mean := a.sum / float64(a.n)
		out = append(out, StageDuration{Stage: stage, MeanHours: mean, Display: format.DaysHours(mean)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return out
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
