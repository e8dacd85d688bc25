package analytics

import (
	"github.com/david/b2-radar/internal/models"
	"github.com/shopspring/decimal"
)

// Values of the Estado column with special meaning.
const (
	StateWon  = "Ganha"
	StateLost = "Perdida"
)

// KPIs is the summary block of the dashboard. Money fields are nil when no row
// contributed a value, which is distinct from a real zero.
type KPIs struct {
	TotalOpportunities int      `json:"total_opportunities"`
	UniqueWon          int      `json:"unique_won"`
	WinRate            float64  `json:"win_rate"`
	WonValue           *float64 `json:"won_value"`
	AverageTicket      *float64 `json:"average_ticket"`
	PipelineValue      *float64 `json:"pipeline_value"`
	ForecastValue      *float64 `json:"forecast_value"`
}

// ComputeKPIs summarizes the (already filtered) opportunity table.
func ComputeKPIs(opps []models.Opportunity) KPIs {
	var k KPIs
	all := make(map[string]bool)
	won := make(map[string]bool)
	var wonValues, pipelineValues, forecastValues []*float64

	for _, o := range opps {
		if o.Identifier != nil {
			all[*o.Identifier] = true
		}
		switch o.State {
		case StateWon:
			if o.Identifier != nil {
				won[*o.Identifier] = true
			}
			v := o.CloseValueRec
			if v == nil {
				v = o.Value
			}
			wonValues = append(wonValues, v)
		case StateLost:
		default:
			pipelineValues = append(pipelineValues, o.Value)
		}
		if o.Value != nil && o.Probability != nil {
			f := decimal.NewFromFloat(*o.Value).Mul(decimal.NewFromFloat(*o.Probability)).Div(decimal.NewFromInt(100)).InexactFloat64()
			forecastValues = append(forecastValues, &f)
		}
	}

	k.TotalOpportunities = len(all)
	k.UniqueWon = len(won)
	if k.TotalOpportunities > 0 {
		k.WinRate = float64(k.UniqueWon) / float64(k.TotalOpportunities) * 100
	}
	k.WonValue = Sum(wonValues)
	if k.WonValue != nil && k.UniqueWon > 0 {
		avg := decimal.NewFromFloat(*k.WonValue).Div(decimal.NewFromInt(int64(k.UniqueWon))).InexactFloat64()
		k.AverageTicket = &avg
	}
	k.PipelineValue = Sum(pipelineValues)
	k.ForecastValue = Sum(forecastValues)
	return k
}

// Sum adds the non-nil values. It returns nil when every input is nil.
func Sum(values []*float64) *float64 {
	total := decimal.Zero
	seen := false
	for _, v := range values {
		if v == nil {
			continue
		}
		total = total.Add(decimal.NewFromFloat(*v))
		seen = true
	}
	if !seen {
		return nil
	}
	f := total.InexactFloat64()
	return &f
}
