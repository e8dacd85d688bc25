package models

import (
	"time"
)

// Stage groups produced by the stage classifier.
const (
	StageGroupQualification = "qualification"
	StageGroupNegotiation   = "negotiation"
	StageGroupClosing       = "closing"
	StageGroupWon           = "won"
	StageGroupLost          = "lost"
	StageGroupOther         = "other"
	StageGroupNotInformed   = "not_informed"
)

// Opportunity is one normalized spreadsheet row.
type Opportunity struct {
	Row           int               `json:"row"`
	ID            string            `json:"id"`
	Title         string            `json:"title"`
	Owner         string            `json:"owner"`
	State         string            `json:"state"`
	Stage         string            `json:"stage"`
	Origin        string            `json:"origin"`
	OC            string            `json:"oc"`
	CloseReason   string            `json:"close_reason"`
	CloseNote     string            `json:"close_note"`
	Value         *float64          `json:"value"`
	ValueRec      *float64          `json:"value_rec"`
	CloseValue    *float64          `json:"close_value"`
	CloseValueRec *float64          `json:"close_value_rec"`
	Probability   *float64          `json:"probability"`
	OpenedAt      *time.Time        `json:"opened_at"`
	ClosedAt      *time.Time        `json:"closed_at"`
	Identifier    *string           `json:"oc_identifier"`
	Extra         map[string]string `json:"extra,omitempty"`

	// Derived calendar features. Numeric features are -1 when the source timestamp is null.
	OpenYear    int    `json:"open_year"`
	OpenMonth   int    `json:"open_month"`
	OpenHour    int    `json:"open_hour"`
	OpenWeekday int    `json:"open_weekday"`
	CloseYear   int    `json:"close_year"`
	CloseMonth  int    `json:"close_month"`
	OpenPeriod  string `json:"open_period,omitempty"`
	ClosePeriod string `json:"close_period,omitempty"`
	StageGroup  string `json:"stage_group"`
}

// IdentifierValue returns the identifier or "" when extraction failed.
func (o Opportunity) IdentifierValue() string {
	if o.Identifier == nil {
		return ""
	}
	return *o.Identifier
}

// TimelineRecord is one observation of an opportunity sitting in a stage.
type TimelineRecord struct {
	Identifier   string     `json:"oc_identifier"`
	Stage        string     `json:"stage"`
	StageGroup   string     `json:"stage_group"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at"`
	Open         bool       `json:"open"`
	HoursInStage *float64   `json:"time_in_stage"`
	Duration     string     `json:"duration"`
	Row          int        `json:"row"`
}

// DatasetStats summarizes what a pipeline run kept and dropped.
type DatasetStats struct {
	RowsRead          int `json:"rows_read"`
	RowsKept          int `json:"rows_kept"`
	BlankRows         int `json:"blank_rows"`
	Duplicates        int `json:"duplicates"`
	WithoutIdentifier int `json:"without_identifier"`
	WithoutOpenDate   int `json:"without_open_date"`
	TimelineRows      int `json:"timeline_rows"`
}

// Dataset is the full output of one pipeline run.
type Dataset struct {
	Source        string           `json:"source"`
	GeneratedAt   time.Time        `json:"generated_at"`
	Opportunities []Opportunity    `json:"opportunities"`
	Timeline      []TimelineRecord `json:"timeline"`
	Stats         DatasetStats     `json:"stats"`
}

// Empty reports whether the dataset carries no opportunities.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Opportunities) == 0
}

// PipelineRun is the persisted record of one pipeline execution.
type PipelineRun struct {
	RunID       string       `json:"run_id"`
	SourceID    string       `json:"source_id"`
	Status      string       `json:"status"` // completed, failed
	Stats       DatasetStats `json:"stats"`
	Error       string       `json:"error,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
}
