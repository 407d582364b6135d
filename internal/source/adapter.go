// Package source defines extraction adapters: one per job board, each turning
// listing pages into raw posting cards.
package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"jobradar/internal/fetch"
	"jobradar/internal/posting"
)

// Page is one fetched listing page handed from FetchPage to ExtractCards.
type Page struct {
	Number   int
	URL      string
	Response *fetch.Response
}

// Adapter is implemented once per source. The crawl controller is
// adapter-agnostic: an AI-based extractor can implement the same interface.
type Adapter interface {
	ID() string
	FetchPage(ctx context.Context, page int) (*Page, error)
	ExtractCards(page *Page) ([]posting.Raw, error)
}

// Factory builds an Adapter for one configured source.
type Factory func(cfg Config, fetcher fetch.PageFetcher) (Adapter, error)

// Config is the per-source configuration an adapter consumes.
type Config struct {
	// ID names the source ("emploi.ma", "rekrute", ...).
	ID string
	// PageURL is a template containing one %d verb for the page number.
	PageURL string
	// Selectors drives the selector-based extractor.
	Selectors Selectors
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a factory available under name. Panics on duplicates, which
// are programmer error.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("source: adapter %q registered twice", name))
	}
	registry[name] = f
}

// New builds the adapter registered under name.
func New(name string, cfg Config, fetcher fetch.PageFetcher) (Adapter, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown adapter %q (registered: %v)", name, Names())
	}
	return f(cfg, fetcher)
}

// Names lists the registered adapter names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
