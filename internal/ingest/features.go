package ingest

import (
	"time"

	"github.com/david/b2-radar/internal/models"
)

// NoValue marks a calendar feature whose source timestamp is missing.
const NoValue = -1

// DeriveFeatures fills the calendar features and the stage group of o.
func DeriveFeatures(o *models.Opportunity) {
	o.OpenYear, o.OpenMonth, o.OpenHour, o.OpenWeekday = NoValue, NoValue, NoValue, NoValue
	o.CloseYear, o.CloseMonth = NoValue, NoValue
	o.OpenPeriod, o.ClosePeriod = "", ""

	if t := o.OpenedAt; t != nil {
		o.OpenYear = t.Year()
		o.OpenMonth = int(t.Month())
		o.OpenHour = t.Hour()
		o.OpenWeekday = int(t.Weekday())
		o.OpenPeriod = period(*t)
	}
	if t := o.ClosedAt; t != nil {
		o.CloseYear = t.Year()
		o.CloseMonth = int(t.Month())
		o.ClosePeriod = period(*t)
	}
	o.StageGroup = ClassifyStage(o.Stage)
}

func period(t time.Time) string {
	return t.Format("2006-01")
}
