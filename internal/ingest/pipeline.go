package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/david/b2-radar/internal/models"
	"github.com/google/uuid"
)

const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunRecorder persists pipeline run history. Implemented by the db package.
type RunRecorder interface {
	RecordRun(ctx context.Context, run models.PipelineRun) error
}

// Pipeline reads one source and derives the opportunity and timeline tables.
type Pipeline struct {
	SourceID string
	Reader   Reader
	Clock    Clock
	Recorder RunRecorder
	Location *time.Location
}

// NewPipeline builds a pipeline for src using the given reader factory.
func NewPipeline(src SourceConfig, factory *ReaderFactory, recorder RunRecorder) (*Pipeline, error) {
	reader, err := factory.New(src)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		SourceID: src.ID,
		Reader:   reader,
		Clock:    SystemClock{},
		Recorder: recorder,
		Location: src.Location(),
	}, nil
}

func (p *Pipeline) clock() Clock {
	if p.Clock == nil {
		return SystemClock{}
	}
	return p.Clock
}

// Run executes a full recompute. On ingestion failure it returns an empty dataset
// together with the error so callers can still render something.
func (p *Pipeline) Run(ctx context.Context) (ds *models.Dataset, err error) {
	now := p.clock().Now()
	run := models.PipelineRun{
		RunID:     uuid.NewString(),
		SourceID:  p.SourceID,
		StartedAt: now,
	}
	ds = emptyDataset(p.SourceID, now)

	log.Printf("[Pipeline] Run %s started for source %s", run.RunID, p.SourceID)

	defer func() {
		run.Status = RunStatusCompleted
		if err != nil {
			run.Status = RunStatusFailed
			run.Error = err.Error()
		}
		run.Stats = ds.Stats
		run.CompletedAt = p.clock().Now()
		p.record(ctx, run)
	}()

	if p.Reader == nil {
		return ds, fmt.Errorf("source %s: no reader configured", p.SourceID)
	}

	table, err := p.Reader.Read(ctx)
	if err != nil {
		log.Printf("[Pipeline] Source %s read failed: %v", p.SourceID, err)
		return ds, fmt.Errorf("read source %s: %w", p.SourceID, err)
	}

	opps, nstats := Normalize(table, NormalizeOptions{Location: p.Location})
	timeline := BuildTimeline(opps, now)

	ds.Opportunities = opps
	ds.Timeline = timeline
	ds.Stats = models.DatasetStats{
		RowsRead:          nstats.RowsRead,
		RowsKept:          len(opps),
		BlankRows:         nstats.BlankRows,
		Duplicates:        nstats.Duplicates,
		WithoutIdentifier: nstats.WithoutIdentifier,
		WithoutOpenDate:   nstats.WithoutOpenDate,
		TimelineRows:      len(timeline),
	}

	log.Printf("[Pipeline] Run %s complete: %d/%d rows kept, %d duplicates, %d timeline rows",
		run.RunID, ds.Stats.RowsKept, ds.Stats.RowsRead, ds.Stats.Duplicates, ds.Stats.TimelineRows)
	return ds, nil
}

func (p *Pipeline) record(ctx context.Context, run models.PipelineRun) {
	if p.Recorder == nil {
		return
	}
	// Run history must not fail the run or be cut short by a cancelled request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.Recorder.RecordRun(ctx, run); err != nil {
		log.Printf("[Warn] Failed to record pipeline run %s: %v", run.RunID, err)
	}
}

func emptyDataset(source string, now time.Time) *models.Dataset {
	return &models.Dataset{
		Source:        source,
		GeneratedAt:   now,
		Opportunities: []models.Opportunity{},
		Timeline:      []models.TimelineRecord{},
	}
}
