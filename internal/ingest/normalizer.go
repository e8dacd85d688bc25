package ingest

import (
	"strings"
	"time"

	"github.com/david/b2-radar/internal/models"
)

// NormalizeOptions controls how raw cells are interpreted.
type NormalizeOptions struct {
	// Location for timestamps without an offset. Nil means DefaultLocation.
	Location *time.Location
}

// NormalizeStats counts what Normalize dropped or could not derive.
type NormalizeStats struct {
	RowsRead          int
	BlankRows         int
	Duplicates        int
	WithoutIdentifier int
	WithoutOpenDate   int
}

// columns resolves the known columns of a table once; absent columns are -1.
type columns struct {
	pos   map[string]int
	extra []int
}

func resolveColumns(t *Table) columns {
	idx := t.columnIndex()
	c := columns{pos: make(map[string]int, len(KnownColumns))}
	known := make(map[int]bool, len(KnownColumns))
	for _, name := range KnownColumns {
		i, ok := idx[columnKey(name)]
		if !ok {
			i = -1
		} else {
			known[i] = true
		}
		c.pos[name] = i
	}
	for i, h := range t.Header {
		if !known[i] && normalizeSpace(h) != "" {
			c.extra = append(c.extra, i)
		}
	}
	return c
}

func (c columns) get(row []string, name string) string {
	return cell(row, c.pos[name])
}

// Normalize turns a raw sheet into typed opportunities. Rows keep their original
// 0-based data index in Row. Blank rows are skipped and duplicates of
// (ID, Título, Data de abertura) keep only the first occurrence.
func Normalize(t *Table, opts NormalizeOptions) ([]models.Opportunity, NormalizeStats) {
	var stats NormalizeStats
	out := []models.Opportunity{}
	if t == nil {
		return out, stats
	}

	loc := opts.Location
	if loc == nil {
		loc = DefaultLocation
	}

	cols := resolveColumns(t)
	seen := make(map[string]bool, len(t.Rows))

	for i, row := range t.Rows {
		stats.RowsRead++
		if isBlankRow(row) {
			stats.BlankRows++
			continue
		}

		o := models.Opportunity{
			Row:         i,
			ID:          cleanText(cols.get(row, ColID)),
			Title:       cleanText(cols.get(row, ColTitle)),
			Owner:       cleanText(cols.get(row, ColOwner)),
			State:       cleanText(cols.get(row, ColState)),
			Stage:       cleanText(cols.get(row, ColStage)),
			Origin:      cleanText(cols.get(row, ColOrigin)),
			OC:          cleanText(cols.get(row, ColOC)),
			CloseReason: cleanText(cols.get(row, ColCloseReason)),
			CloseNote:   cleanText(cols.get(row, ColCloseNote)),
		}

		openRaw := normalizeSpace(cols.get(row, ColOpenedAt))
		if key, ok := dedupeKey(o.ID, o.Title, openRaw); ok {
			if seen[key] {
				stats.Duplicates++
				continue
			}
			seen[key] = true
		}

		o.Value = ParseCurrency(cols.get(row, ColValue))
		o.ValueRec = ParseCurrency(cols.get(row, ColValueRec))
		o.CloseValue = ParseCurrency(cols.get(row, ColCloseValue))
		o.CloseValueRec = ParseCurrency(cols.get(row, ColCloseValueRec))
		o.Probability = ParsePercent(cols.get(row, ColProbability))
		o.OpenedAt = ParseTimestamp(openRaw, loc)
		o.ClosedAt = ParseTimestamp(cols.get(row, ColClosedAt), loc)
		o.Identifier = ExtractIdentifier(o.Title)

		for _, j := range cols.extra {
			v := cleanText(cell(row, j))
			if v == "" {
				continue
			}
			if o.Extra == nil {
				o.Extra = make(map[string]string)
			}
			o.Extra[normalizeSpace(t.Header[j])] = v
		}

		DeriveFeatures(&o)

		if o.Identifier == nil {
			stats.WithoutIdentifier++
		}
		if o.OpenedAt == nil {
			stats.WithoutOpenDate++
		}
		out = append(out, o)
	}
	return out, stats
}

// dedupeKey builds the duplicate key. Rows with all three fields empty are never deduplicated.
func dedupeKey(id, title, opened string) (string, bool) {
	if id == "" && title == "" && opened == "" {
		return "", false
	}
	return strings.Join([]string{id, title, opened}, "\x1f"), true
}
