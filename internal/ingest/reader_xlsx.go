package ingest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// XLSXReader reads a workbook exported from the CRM sheet.
type XLSXReader struct {
	Path  string
	Sheet string // empty means the first sheet
}

func newXLSXReader(src SourceConfig) (Reader, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("xlsx_file: path is required")
	}
	return &XLSXReader{Path: src.Path, Sheet: src.Sheet}, nil
}

func (r *XLSXReader) Read(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	return ParseXLSX(f, r.Sheet)
}

// ParseXLSX reads the formatted cell text of one sheet. Dates therefore arrive as the
// sheet displays them, which is what ParseTimestamp expects.
func ParseXLSX(r io.Reader, sheet string) (*Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	if sheet == "" {
		sheets := wb.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptySheet
		}
		sheet = sheets[0]
	}

	grid, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return NewTable(grid)
}
