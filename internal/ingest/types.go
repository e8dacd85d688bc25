package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrUnknownReaderKind = errors.New("unknown reader kind")
	ErrEmptySheet        = errors.New("sheet has no header row")
)

// Column names of the opportunities sheet.
const (
	ColID            = "ID"
	ColTitle         = "Título"
	ColOwner         = "Responsável"
	ColState         = "Estado"
	ColStage         = "Estágio"
	ColValue         = "Valor"
	ColValueRec      = "Valor Rec."
	ColCloseValue    = "Valor fechamento"
	ColCloseValueRec = "Valor rec. fechamento"
	ColOpenedAt      = "Data de abertura"
	ColClosedAt      = "Data fechamento"
	ColOrigin        = "Origem"
	ColProbability   = "Prob %"
	ColOC            = "OC"
	ColCloseReason   = "Razão de fechamento"
	ColCloseNote     = "Observação de fechamento"
)

// KnownColumns lists the columns the normalizer understands, in sheet order.
var KnownColumns = []string{
	ColID, ColTitle, ColOwner, ColState, ColStage,
	ColValue, ColValueRec, ColCloseValue, ColCloseValueRec,
	ColOpenedAt, ColClosedAt, ColOrigin, ColProbability, ColOC,
	ColCloseReason, ColCloseNote,
}

// Table is the raw tabular payload returned by a Reader: a header row plus data rows.
// Rows may be shorter or longer than the header.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable splits a raw grid into header and data rows. An empty grid yields ErrEmptySheet.
func NewTable(grid [][]string) (*Table, error) {
	if len(grid) == 0 {
		return nil, ErrEmptySheet
	}
	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = strings.TrimPrefix(h, "\ufeff")
	}
	return &Table{Header: header, Rows: grid[1:]}, nil
}

// columnIndex maps folded header names to their position. First occurrence wins.
func (t *Table) columnIndex() map[string]int {
	idx := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		key := columnKey(h)
		if key == "" {
			continue
		}
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

func columnKey(name string) string {
	return strings.ToLower(normalizeSpace(name))
}

// cell returns row[i] or "" when the row is short or the column is absent (i < 0).
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Reader fetches the raw opportunities table from a source.
type Reader interface {
	Read(ctx context.Context) (*Table, error)
}

// FetchedDocument represents the raw result of a fetch operation.
type FetchedDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        io.ReadCloser
	FetchedAt   time.Time
	Headers     map[string][]string
}

// Fetcher retrieves raw content from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// Clock abstracts time so runs are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
