package ingest

import (
	"errors"
	"testing"
)

func TestLoadRegistry_Embedded(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	demo, err := reg.Get("demo")
	if err != nil {
		t.Fatalf("expected demo source: %v", err)
	}
	if demo.Kind != "static" || len(demo.Rows) < 2 {
		t.Fatalf("unexpected demo source: %+v", demo)
	}
	for _, src := range reg.Sources {
		if _, err := DefaultReaderFactory.New(src); errors.Is(err, ErrUnknownReaderKind) {
			t.Fatalf("source %s uses unregistered kind %q", src.ID, src.Kind)
		}
	}
}

func TestParseRegistry_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SHEET_URL", "https://example.com/export?format=csv")
	t.Setenv("TEST_SHEET_AUTH", "Bearer abc")

	reg, err := ParseRegistry([]byte(`
sources:
  - id: s1
    kind: csv_url
    url: "${TEST_SHEET_URL}"
    timezone: UTC
    fetch:
      headers:
        Authorization: "${TEST_SHEET_AUTH}"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	src, err := reg.Get("s1")
	if err != nil {
		t.Fatal(err)
	}
	if src.URL != "https://example.com/export?format=csv" {
		t.Fatalf("url not expanded: %q", src.URL)
	}
	if src.Fetch.Headers["Authorization"] != "Bearer abc" {
		t.Fatalf("header not expanded: %v", src.Fetch.Headers)
	}
	if src.Location().String() != "UTC" {
		t.Fatalf("unexpected location: %v", src.Location())
	}
}

func TestParseRegistry_Validation(t *testing.T) {
	if _, err := ParseRegistry([]byte("sources:\n  - kind: static\n")); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := ParseRegistry([]byte("sources:\n  - id: a\n  - id: a\n")); err == nil {
		t.Fatal("expected error for duplicate id")
	}

	reg, _ := ParseRegistry([]byte("sources: []\n"))
	if _, err := reg.Get("nope"); !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestSourceConfig_LocationFallback(t *testing.T) {
	if got := (SourceConfig{Timezone: "Not/AZone"}).Location(); got != DefaultLocation {
		t.Fatalf("expected default location, got %v", got)
	}
}
