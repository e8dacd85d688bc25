package ingest

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// normalizeSpace collapses runs of whitespace (NBSP included) into one space and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var strictPolicy = bluemonday.StrictPolicy()

// cleanText normalizes whitespace and strips markup pasted into free-text cells.
// Cells without '<' are left alone so ampersands and quotes survive untouched.
func cleanText(s string) string {
	if strings.ContainsRune(s, '<') {
		s = html.UnescapeString(strictPolicy.Sanitize(s))
	}
	return normalizeSpace(s)
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func ptr[T any](v T) *T {
	return &v
}
