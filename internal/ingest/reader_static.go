package ingest

import (
	"context"
	"fmt"
)

// StaticReader serves an in-memory table.
type StaticReader struct {
	Table *Table
}

func newStaticReader(src SourceConfig) (Reader, error) {
	t, err := NewTable(src.Rows)
	if err != nil {
		return nil, fmt.Errorf("static: %w", err)
	}
	return &StaticReader{Table: t}, nil
}

func (r *StaticReader) Read(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// The configured table is shared across runs.
	rows := make([][]string, len(r.Table.Rows))
	for i, row := range r.Table.Rows {
		rows[i] = append([]string(nil), row...)
	}
	return &Table{Header: append([]string(nil), r.Table.Header...), Rows: rows}, nil
}
