package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
)

// HTMLTableReader reads a sheet "published to the web" (pubhtml), using its first table.
type HTMLTableReader struct {
	URL     string
	Fetcher Fetcher
}

func (f *ReaderFactory) newHTMLTableReader(src SourceConfig) (Reader, error) {
	if src.URL == "" {
		return nil, fmt.Errorf("html_table: url is required")
	}
	return &HTMLTableReader{URL: src.URL, Fetcher: f.Fetcher(src)}, nil
}

func (r *HTMLTableReader) Read(ctx context.Context) (*Table, error) {
	doc, err := r.Fetcher.Fetch(ctx, r.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch html: %w", err)
	}
	defer doc.Body.Close()
	return ParseHTMLTable(io.LimitReader(doc.Body, maxSheetBytes))
}

// ParseHTMLTable extracts the first <table>. Rows made only of <th> cells (the column
// letters Google adds) are skipped, and the row-number <th> in front of each data row is
// ignored, so the first row of <td> cells becomes the header.
func ParseHTMLTable(r io.Reader) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrEmptySheet
	}

	var grid [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.ChildrenFiltered("td")
		if tds.Length() == 0 {
			return
		}
		row := make([]string, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) {
			row = append(row, normalizeSpace(td.Text()))
		})
		grid = append(grid, row)
	})
	return NewTable(grid)
}
