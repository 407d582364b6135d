// Package store declares the persistence interfaces for postings, term
// statistics and crawl runs. Implementations live in subpackages; this package
// must not import database drivers or concrete clients.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"jobradar/internal/posting"
)

// ErrDuplicateURL signals that a posting with the same source URL already
// exists. Uniqueness is enforced at the storage boundary, so two concurrent
// inserts of the same URL yield exactly one success and one ErrDuplicateURL.
var ErrDuplicateURL = errors.New("posting with this source url already exists")

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// RunState mirrors the crawl_runs status column.
type RunState string

// Run states persisted in crawl_runs.status.
const (
	RunRunning RunState = "running"
	RunSuccess RunState = "success"
	// RunPartial means some sources failed while others completed.
	RunPartial RunState = "partial"
	RunFailed  RunState = "failed"
)

// RunStatus models one crawl run for status reporting.
type RunStatus struct {
	ID uuid.UUID
	// StartedAt captures when the run was first marked running.
	StartedAt time.Time
	// FinishedAt is nil until the run reaches a terminal state.
	FinishedAt *time.Time
	Status     RunState
	JobsAdded  int
	Duplicates int
	// ErrorText optionally stores the aggregated failure reasons.
	ErrorText *string
}

// TermCount is one aggregate row: a name and how many postings carry it.
type TermCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// GlobalStats summarizes the whole corpus for the dashboard.
type GlobalStats struct {
	TotalPostings  int64      `json:"total_postings"`
	TotalCompanies int64      `json:"total_companies"`
	LastIngestedAt *time.Time `json:"last_ingested_at"`
	NewLast24h     int64      `json:"new_last_24h"`
}

// Store is the single write path shared by all crawl workers and the only
// read path used by the API.
type Store interface {
	// Exists reports whether a posting with sourceURL is already persisted.
	Exists(ctx context.Context, sourceURL string) (bool, error)

	// InsertPostingAndIncrementStats persists p and increments the counters
	// for every listed technology and skill as one transaction. On a source
	// URL conflict it returns ErrDuplicateURL and changes nothing.
	InsertPostingAndIncrementStats(ctx context.Context, p *posting.Posting) error

	// RecordRun upserts the run row keyed by run.ID.
	RecordRun(ctx context.Context, run RunStatus) error
	// LatestRun returns the most recently started run, or ErrNotFound.
	LatestRun(ctx context.Context) (RunStatus, error)

	TechnologyStats(ctx context.Context, limit int) ([]TermCount, error)
	SkillStats(ctx context.Context, limit int) ([]TermCount, error)
	// RegionStats aggregates postings per canonical location, excluding the
	// unknown-region sentinel.
	RegionStats(ctx context.Context, limit int) ([]TermCount, error)
	SourceStats(ctx context.Context) ([]TermCount, error)
	GlobalStats(ctx context.Context) (GlobalStats, error)
}
