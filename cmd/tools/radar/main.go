package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/david/b2-radar/internal/analytics"
	"github.com/david/b2-radar/internal/db"
	"github.com/david/b2-radar/internal/format"
	"github.com/david/b2-radar/internal/ingest"
	"github.com/david/b2-radar/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type options struct {
	sourcesFile string
	sourceID    string
	from, to    string
	stages      []string
	owners      []string
	states      []string
	oc          string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "radar",
		Short:         "Run the opportunity pipeline once and print the results",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.sourcesFile, "sources", os.Getenv("SOURCES_FILE"), "sources YAML (default: embedded)")
	root.PersistentFlags().StringVar(&opts.sourceID, "source", "demo", "source id")
	root.PersistentFlags().StringVar(&opts.from, "from", "", "first open date (YYYY-MM-DD)")
	root.PersistentFlags().StringVar(&opts.to, "to", "", "last open date (YYYY-MM-DD)")
	root.PersistentFlags().StringSliceVar(&opts.stages, "stage", nil, "stages")
	root.PersistentFlags().StringSliceVar(&opts.owners, "owner", nil, "owners")
	root.PersistentFlags().StringSliceVar(&opts.states, "state", nil, "states")
	root.PersistentFlags().StringVar(&opts.oc, "oc", "", "identifier, e.g. OC45")

	root.AddCommand(newSourcesCmd(opts))
	root.AddCommand(newKPIsCmd(opts))
	root.AddCommand(newOpportunitiesCmd(opts))
	root.AddCommand(newTimelineCmd(opts))
	root.AddCommand(newFunnelCmd(opts))
	root.AddCommand(newReportCmd(opts))
	root.AddCommand(newRunsCmd())
	return root
}

func (o *options) filter() (analytics.Filter, error) {
	f := analytics.Filter{
		Stages:     o.stages,
		Owners:     o.owners,
		States:     o.states,
		Identifier: strings.ToUpper(strings.TrimSpace(o.oc)),
	}
	for _, p := range []struct {
		raw string
		dst **time.Time
	}{{o.from, &f.From}, {o.to, &f.To}} {
		if p.raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", p.raw)
		if err != nil {
			return f, fmt.Errorf("invalid date %q: %w", p.raw, err)
		}
		*p.dst = &t
	}
	return f, nil
}

// load runs the pipeline for the selected source. A failed read still yields an empty
// dataset; the error is printed as a warning.
func (o *options) load(cmd *cobra.Command) (*models.Dataset, error) {
	reg, err := ingest.LoadRegistry(o.sourcesFile)
	if err != nil {
		return nil, err
	}
	src, err := reg.Get(o.sourceID)
	if err != nil {
		return nil, err
	}
	p, err := ingest.NewPipeline(src, ingest.DefaultReaderFactory, nil)
	if err != nil {
		return nil, err
	}
	ds, err := p.Run(context.Background())
	if err != nil {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return ds, nil
}

func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	return t
}

func newSourcesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := ingest.LoadRegistry(opts.sourcesFile)
			if err != nil {
				return err
			}
			t := newTable(cmd)
			t.AppendHeader(table.Row{"ID", "Name", "Kind", "Description"})
			for _, s := range reg.Sources {
				t.AppendRow(table.Row{s.ID, s.Name, s.Kind, s.Description})
			}
			t.Render()
			return nil
		},
	}
}

func newKPIsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "kpis",
		Short: "Print the KPI block",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := opts.filter()
			if err != nil {
				return err
			}
			ds, err := opts.load(cmd)
			if err != nil {
				return err
			}
			k := analytics.ComputeKPIs(f.Apply(ds.Opportunities))

			t := newTable(cmd)
			t.AppendHeader(table.Row{"KPI", "Value"})
			t.AppendRows([]table.Row{
				{"Oportunidades", format.Int(k.TotalOpportunities)},
				{"Ganhas", format.Int(k.UniqueWon)},
				{"Taxa de conversão", format.Percent(&k.WinRate)},
				{"Valor ganho", format.BRL(k.WonValue)},
				{"Ticket médio", format.BRL(k.AverageTicket)},
				{"Pipeline", format.BRL(k.PipelineValue)},
				{"Forecast", format.BRL(k.ForecastValue)},
			})
			t.Render()
			return nil
		},
	}
}

func newOpportunitiesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "opportunities",
		Short: "Print the normalized opportunity table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := opts.filter()
			if err != nil {
				return err
			}
			ds, err := opts.load(cmd)
			if err != nil {
				return err
			}
			t := newTable(cmd)
			t.AppendHeader(table.Row{"Row", "OC", "Title", "Owner", "State", "Stage", "Value", "Opened"})
			for _, o := range f.Apply(ds.Opportunities) {
				t.AppendRow(table.Row{o.Row, o.IdentifierValue(), o.Title, o.Owner, o.State, o.Stage, format.BRL(o.Value), formatTime(o.OpenedAt)})
			}
			t.AppendFooter(table.Row{"", "", "", "", "", "Kept", ds.Stats.RowsKept, fmt.Sprintf("of %d", ds.Stats.RowsRead)})
			t.Render()
			return nil
		},
	}
}

func newTimelineCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline",
		Short: "Print time spent per stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := opts.filter()
			if err != nil {
				return err
			}
			ds, err := opts.load(cmd)
			if err != nil {
				return err
			}
			timeline := ds.Timeline
			if !f.IsZero() {
				timeline = analytics.RestrictTimeline(ds.Timeline, f.Apply(ds.Opportunities))
			}
			t := newTable(cmd)
			t.AppendHeader(table.Row{"OC", "Stage", "Opened", "Closed", "Duration"})
			for _, r := range timeline {
				closed := "open"
				if r.ClosedAt != nil {
					closed = formatTime(r.ClosedAt)
				}
				t.AppendRow(table.Row{r.Identifier, r.Stage, formatTime(&r.OpenedAt), closed, r.Duration})
			}
			t.Render()
			return nil
		},
	}
}

func newFunnelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "funnel",
		Short: "Print the stage funnel and mean time per stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := opts.filter()
			if err != nil {
				return err
			}
			ds, err := opts.load(cmd)
			if err != nil {
				return err
			}
			opps := f.Apply(ds.Opportunities)
			agg := analytics.Aggregate(opps, analytics.RestrictTimeline(ds.Timeline, opps))

			t := newTable(cmd)
			t.AppendHeader(table.Row{"Group", "Opportunities"})
			for _, g := range agg.Funnel {
				t.AppendRow(table.Row{g.Group, g.Opportunities})
			}
			t.Render()

			t = newTable(cmd)
			t.AppendHeader(table.Row{"Stage", "Mean time"})
			for _, d := range agg.MeanTime {
				t.AppendRow(table.Row{d.Stage, d.Display})
			}
			t.Render()
			return nil
		},
	}
}

func newReportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "report [oc]",
		Short: "Print one opportunity and its stage history; without an argument, list identifiers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				f, err := opts.filter()
				if err != nil {
					return err
				}
				t := newTable(cmd)
				t.AppendHeader(table.Row{"OC"})
				for _, id := range analytics.Identifiers(f.Apply(ds.Opportunities)) {
					t.AppendRow(table.Row{id})
				}
				t.Render()
				return nil
			}
			id := strings.ToUpper(strings.TrimSpace(args[0]))
			r, ok := analytics.BuildReport(ds.Opportunities, ds.Timeline, id)
			if !ok {
				return fmt.Errorf("opportunity %s not found in source %s", id, opts.sourceID)
			}

			o := r.Opportunity
			t := newTable(cmd)
			t.SetTitle(id)
			t.AppendRows([]table.Row{
				{"Título", o.Title},
				{"Responsável", o.Owner},
				{"Estado", o.State},
				{"Valor", format.BRL(o.Value)},
				{"Valor rec. fechamento", format.BRL(o.CloseValueRec)},
				{"Linhas", r.Rows},
				{"Tempo total", ingest.FormatDuration(r.TotalHours)},
			})
			t.Render()

			t = newTable(cmd)
			t.AppendHeader(table.Row{"Stage", "Opened", "Duration"})
			for _, rec := range r.Timeline {
				t.AppendRow(table.Row{rec.Stage, formatTime(&rec.OpenedAt), rec.Duration})
			}
			t.Render()
			return nil
		},
	}
}

func newRunsCmd() *cobra.Command {
	var storeKind, sqlitePath string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs from the run store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()
			source := ""
			if cmd.Flags().Changed("source") {
				source, _ = cmd.Flags().GetString("source")
			}

			var runs []models.PipelineRun
			switch storeKind {
			case "pg":
				pool, err := db.Connect(ctx)
				if err != nil {
					return err
				}
				defer pool.Close()
				runs, err = db.NewStore(pool).ListRuns(ctx, source, limit)
				if err != nil {
					return err
				}
			case "sqlite":
				s, err := db.NewSQLiteStore(sqlitePath)
				if err != nil {
					return err
				}
				defer s.Close()
				runs, err = s.ListRuns(ctx, source, limit)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown store %q (expected pg or sqlite)", storeKind)
			}

			t := newTable(cmd)
			t.AppendHeader(table.Row{"Source", "Status", "Read", "Kept", "Duplicates", "Duration", "Started At"})
			for _, r := range runs {
				duration := "Running..."
				if !r.CompletedAt.IsZero() {
					duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				t.AppendRow(table.Row{r.SourceID, r.Status, r.Stats.RowsRead, r.Stats.RowsKept, r.Stats.Duplicates, duration, r.StartedAt.Format("2006-01-02 15:04:05")})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&storeKind, "store", "pg", "run store: pg|sqlite")
	cmd.Flags().StringVar(&sqlitePath, "sqlite-path", "data/b2_radar.db", "SQLite run store path")
	cmd.Flags().IntVar(&limit, "limit", 10, "max runs")
	return cmd
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02/01/2006 15:04")
}
