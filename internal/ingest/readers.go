package ingest

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ReaderConstructor builds a Reader from a source configuration.
type ReaderConstructor func(src SourceConfig) (Reader, error)

// ReaderFactory maps reader kinds (from sources.yaml) to constructors. It also owns one
// HTTPFetcher per source so rate limits hold across pipeline runs.
type ReaderFactory struct {
	mu    sync.RWMutex
	kinds map[string]ReaderConstructor

	fetchMu  sync.Mutex
	fetchers map[string]sourceFetcher
}

type sourceFetcher struct {
	config  FetchConfig
	fetcher *HTTPFetcher
}

// NewReaderFactory returns a factory with every built-in reader kind registered.
func NewReaderFactory() *ReaderFactory {
	f := &ReaderFactory{
		kinds:    make(map[string]ReaderConstructor),
		fetchers: make(map[string]sourceFetcher),
	}
	f.Register("csv_file", newCSVFileReader)
	f.Register("csv_url", f.newCSVURLReader)
	f.Register("xlsx_file", newXLSXReader)
	f.Register("html_table", f.newHTMLTableReader)
	f.Register("static", newStaticReader)
	return f
}

func (f *ReaderFactory) Register(kind string, ctor ReaderConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds[kind] = ctor
}

// New builds the reader for src.Kind.
func (f *ReaderFactory) New(src SourceConfig) (Reader, error) {
	f.mu.RLock()
	ctor, ok := f.kinds[src.Kind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (source %s)", ErrUnknownReaderKind, src.Kind, src.ID)
	}
	r, err := ctor(src)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	return r, nil
}

// Kinds lists registered kinds in sorted order.
func (f *ReaderFactory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.kinds))
	for k := range f.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fetcher returns the shared fetcher for src. A source whose fetch settings changed
// gets a new fetcher and the old one is closed.
func (f *ReaderFactory) Fetcher(src SourceConfig) *HTTPFetcher {
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()
	if sf, ok := f.fetchers[src.ID]; ok {
		if reflect.DeepEqual(sf.config, src.Fetch) {
			return sf.fetcher
		}
		sf.fetcher.Close()
	}
	hf := NewHTTPFetcher(src.Fetch)
	f.fetchers[src.ID] = sourceFetcher{config: src.Fetch, fetcher: hf}
	return hf
}

// Close stops every fetcher handed out so far.
func (f *ReaderFactory) Close() {
	f.fetchMu.Lock()
	defer f.fetchMu.Unlock()
	for id, sf := range f.fetchers {
		sf.fetcher.Close()
		delete(f.fetchers, id)
	}
}

// DefaultReaderFactory has every built-in reader kind registered.
var DefaultReaderFactory = NewReaderFactory()
