// Package memory implements store.Store with in-process maps. It backs tests
// and local development runs where no Postgres is available.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"jobradar/internal/posting"
	"jobradar/internal/store"
)

// Store is a mutex-guarded in-memory implementation of store.Store.
type Store struct {
	mu            sync.Mutex
	nextID        int64
	byURL         map[string]*posting.Posting
	techCounts    map[string]int64
	skillCounts   map[string]int64
	runs          []store.RunStatus
	unknownRegion string
}

// New returns an empty Store. unknownRegion is excluded from region stats.
func New(unknownRegion string) *Store {
	return &Store{
		nextID:        1,
		byURL:         make(map[string]*posting.Posting),
		techCounts:    make(map[string]int64),
		skillCounts:   make(map[string]int64),
		unknownRegion: unknownRegion,
	}
}

// Exists reports whether a posting with sourceURL is already persisted.
func (s *Store) Exists(_ context.Context, sourceURL string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byURL[sourceURL]
	return ok, nil
}

// InsertPostingAndIncrementStats persists p unless the URL is already taken.
// The single mutex gives the same at-most-once guarantee the unique index
// provides in Postgres.
func (s *Store) InsertPostingAndIncrementStats(_ context.Context, p *posting.Posting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byURL[p.SourceURL]; ok {
		return store.ErrDuplicateURL
	}
	p.ID = s.nextID
	s.nextID++
	cp := *p
	s.byURL[p.SourceURL] = &cp

	for _, term := range p.Technologies {
		s.techCounts[term]++
	}
	for _, term := range p.Skills {
		s.skillCounts[term]++
	}
	return nil
}

// RecordRun upserts the run row keyed by run.ID.
func (s *Store) RecordRun(_ context.Context, run store.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.runs {
		if s.runs[i].ID == run.ID {
			s.runs[i] = run
			return nil
		}
	}
	s.runs = append(s.runs, run)
	return nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(_ context.Context) (store.RunStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) == 0 {
		return store.RunStatus{}, store.ErrNotFound
	}
	latest := s.runs[0]
	for _, r := range s.runs[1:] {
		if r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	return latest, nil
}

// TechnologyStats returns the most frequent technology terms.
func (s *Store) TechnologyStats(_ context.Context, limit int) ([]store.TermCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return topCounts(s.techCounts, limit), nil
}

// SkillStats returns the most frequent skill terms.
func (s *Store) SkillStats(_ context.Context, limit int) ([]store.TermCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return topCounts(s.skillCounts, limit), nil
}

// RegionStats aggregates postings per location, excluding the sentinel.
func (s *Store) RegionStats(_ context.Context, limit int) ([]store.TermCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, p := range s.byURL {
		if p.Location != s.unknownRegion {
			counts[p.Location]++
		}
	}
	return topCounts(counts, limit), nil
}

// SourceStats returns posting counts per source site.
func (s *Store) SourceStats(_ context.Context) ([]store.TermCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int64)
	for _, p := range s.byURL {
		counts[p.SourceID]++
	}
	return topCounts(counts, len(counts)), nil
}

// GlobalStats summarizes the corpus.
func (s *Store) GlobalStats(_ context.Context) (store.GlobalStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := store.GlobalStats{TotalPostings: int64(len(s.byURL))}
	companies := make(map[string]struct{})
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, p := range s.byURL {
		companies[p.Company] = struct{}{}
		if p.IngestedAt.After(cutoff) {
			g.NewLast24h++
		}
		if g.LastIngestedAt == nil || p.IngestedAt.After(*g.LastIngestedAt) {
			ts := p.IngestedAt
			g.LastIngestedAt = &ts
		}
	}
	g.TotalCompanies = int64(len(companies))
	return g, nil
}

// Postings returns a snapshot of everything persisted, for tests.
func (s *Store) Postings() []posting.Posting {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]posting.Posting, 0, len(s.byURL))
	for _, p := range s.byURL {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func topCounts(counts map[string]int64, limit int) []store.TermCount {
	out := make([]store.TermCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, store.TermCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
