package ingest

import (
	"embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry holds the configuration for all data sources.
type Registry struct {
	Sources []SourceConfig `yaml:"sources"`
}

// FetchConfig defines HTTP fetching configuration for a source.
type FetchConfig struct {
	TimeoutSeconds int               `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int               `yaml:"max_retries,omitempty"`     // Default: 3
	RateLimitRPS   float64           `yaml:"rate_limit_rps,omitempty"`  // Requests per second, default: 1.0
	ProxyURL       string            `yaml:"proxy_url,omitempty"`
	AcceptLanguage string            `yaml:"accept_language,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"` // e.g. Authorization: "Bearer ${SHEETS_TOKEN}"
	AllowPrivate   bool              `yaml:"allow_private,omitempty"`
}

// SourceConfig defines a single opportunity spreadsheet.
type SourceConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"` // csv_file, csv_url, xlsx_file, html_table, static
	Path        string `yaml:"path,omitempty"`
	URL         string `yaml:"url,omitempty"`
	Sheet       string `yaml:"sheet,omitempty"`
	Delimiter   string `yaml:"delimiter,omitempty"`
	Timezone    string `yaml:"timezone,omitempty"` // Default: America/Sao_Paulo
	Description string `yaml:"description,omitempty"`

	Fetch FetchConfig `yaml:"fetch,omitempty"`

	// Rows for the static kind; the first row is the header.
	Rows [][]string `yaml:"rows,omitempty"`
}

// Location resolves the configured timezone, falling back to DefaultLocation.
func (s SourceConfig) Location() *time.Location {
	if s.Timezone == "" {
		return DefaultLocation
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return DefaultLocation
	}
	return loc
}

// LoadRegistry reads sources from path, or from the embedded sources.yaml when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry expands environment variables (e.g. ${SHEETS_TOKEN}) and decodes the YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	seen := make(map[string]bool, len(reg.Sources))
	for _, src := range reg.Sources {
		if src.ID == "" {
			return nil, fmt.Errorf("parse registry: source without id")
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("parse registry: duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
	}
	return &reg, nil
}

// Get returns the source with the given id.
func (r *Registry) Get(id string) (SourceConfig, error) {
	for _, src := range r.Sources {
		if src.ID == id {
			return src, nil
		}
	}
	return SourceConfig{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
}
