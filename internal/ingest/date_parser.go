package ingest

import (
	"strings"
	"time"
)

// timestampLayouts are tried in order. Day-first layouts come first because the
// sheet is filled in pt-BR; ISO layouts cover exports that were re-saved by tools.
var timestampLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// DefaultLocation is used when a source does not configure a timezone.
var DefaultLocation = loadLocation("America/Sao_Paulo")

func loadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseTimestamp parses a localized date-time cell. Empty or malformed input yields nil.
func ParseTimestamp(raw string, loc *time.Location) *time.Time {
	text := cleanDateString(raw)
	if text == "" {
		return nil
	}
	if loc == nil {
		loc = DefaultLocation
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return &t
		}
	}
	return nil
}

// cleanDateString collapses whitespace and drops the "às" separator some exports put
// between date and time ("01/01/2024 às 10:00").
func cleanDateString(s string) string {
	s = normalizeSpace(s)
	s = strings.ReplaceAll(s, " às ", " ")
	s = strings.ReplaceAll(s, ", ", " ")
	return s
}
