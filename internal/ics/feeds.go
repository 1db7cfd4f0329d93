package ics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	appLog "kalena/internal/log"
	"kalena/internal/model"
)

// Feeds keeps the last successfully parsed components of every source.
// A source that fails to refresh keeps its previous components.
type Feeds struct {
	fetcher *Fetcher
	sources []Source
	max     int

	mu          sync.RWMutex
	components  map[string][]Component
	refreshedAt time.Time
}

func NewFeeds(fetcher *Fetcher, sources []Source, maxOccurrences int) *Feeds {
	return &Feeds{
		fetcher:    fetcher,
		sources:    sources,
		max:        maxOccurrences,
		components: make(map[string][]Component),
	}
}

// Sources returns the configured feeds.
func (f *Feeds) Sources() []Source {
	return append([]Source(nil), f.sources...)
}

// Refresh fetches and parses every source. It returns the joined errors of
// the sources that could not be refreshed.
func (f *Feeds) Refresh(ctx context.Context) error {
	if len(f.sources) == 0 {
		return nil
	}
	results, fetchErr := f.fetcher.FetchAll(ctx, f.sources)

	parsed := make(map[string][]Component, len(results))
	var errs []error
	if fetchErr != nil {
		errs = append(errs, fetchErr)
	}
	for _, res := range results {
		comps, err := ParseFeed(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics parse failed", err, "id", res.Source.ID)
			errs = append(errs, fmt.Errorf("%s: %w", res.Source.ID, err))
			continue
		}
		parsed[res.Source.ID] = comps
	}

	f.mu.Lock()
	for id, comps := range parsed {
		f.components[id] = comps
	}
	f.refreshedAt = time.Now()
	f.mu.Unlock()

	appLog.Info("ics feeds refreshed", "ok", len(parsed), "sources", len(f.sources))
	return errors.Join(errs...)
}

// RefreshedAt reports when Refresh last ran, or the zero time.
func (f *Feeds) RefreshedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.refreshedAt
}

// EventsBetween expands all known components into events overlapping
// [from, to) in loc. Sources are visited in configuration order.
func (f *Feeds) EventsBetween(from, to time.Time, loc *time.Location) []model.Event {
	f.mu.RLock()
	all := make([]Component, 0)
	for _, src := range f.sources {
		all = append(all, f.components[src.ID]...)
	}
	f.mu.RUnlock()

	events, _ := Expand(all, from, to, loc, f.max)
	return events
}
