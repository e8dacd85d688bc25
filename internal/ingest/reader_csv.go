package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// maxSheetBytes caps how much of a download or file is read.
const maxSheetBytes = 32 << 20

// CSVFileReader reads a sheet exported as CSV from disk.
type CSVFileReader struct {
	Path      string
	Delimiter rune // 0 means sniff from the header line
}

func newCSVFileReader(src SourceConfig) (Reader, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("csv_file: path is required")
	}
	return &CSVFileReader{Path: src.Path, Delimiter: delimiterFromConfig(src.Delimiter)}, nil
}

func (r *CSVFileReader) Read(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ParseCSV(io.LimitReader(f, maxSheetBytes), r.Delimiter)
}

// CSVURLReader downloads a CSV export, e.g. a Google Sheets export?format=csv link.
type CSVURLReader struct {
	URL       string
	Delimiter rune
	Fetcher   Fetcher
}

func (f *ReaderFactory) newCSVURLReader(src SourceConfig) (Reader, error) {
	if src.URL == "" {
		return nil, fmt.Errorf("csv_url: url is required")
	}
	return &CSVURLReader{
		URL:       src.URL,
		Delimiter: delimiterFromConfig(src.Delimiter),
		Fetcher:   f.Fetcher(src),
	}, nil
}

func (r *CSVURLReader) Read(ctx context.Context) (*Table, error) {
	doc, err := r.Fetcher.Fetch(ctx, r.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch csv: %w", err)
	}
	defer doc.Body.Close()
	return ParseCSV(io.LimitReader(doc.Body, maxSheetBytes), r.Delimiter)
}

// ParseCSV reads a whole CSV payload into a Table. Ragged rows are accepted.
func ParseCSV(r io.Reader, delimiter rune) (*Table, error) {
	br := bufio.NewReader(r)
	if delimiter == 0 {
		delimiter = sniffDelimiter(br)
	}

	cr := csv.NewReader(br)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	grid, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return NewTable(grid)
}

// sniffDelimiter picks ';' when the first line has more semicolons than commas.
// pt-BR spreadsheet exports commonly use ';' since ',' is the decimal mark.
func sniffDelimiter(br *bufio.Reader) rune {
	line, _ := br.Peek(4096)
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func delimiterFromConfig(s string) rune {
	switch s {
	case ";":
		return ';'
	case ",":
		return ','
	case "\\t", "tab":
		return '\t'
	}
	return 0
}
