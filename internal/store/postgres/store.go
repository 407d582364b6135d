// Package postgres implements store.Store on PostgreSQL via pgx.
//
// Expected schema:
//
//	CREATE TABLE postings (
//		id bigserial PRIMARY KEY,
//		title text NOT NULL,
//		company text NOT NULL,
//		location text NOT NULL,
//		technologies text[] NOT NULL DEFAULT '{}',
//		skills text[] NOT NULL DEFAULT '{}',
//		description text NOT NULL DEFAULT '',
//		posted_at timestamptz,
//		date_tier text NOT NULL,
//		source_id text NOT NULL,
//		source_url text NOT NULL UNIQUE,
//		ingested_at timestamptz NOT NULL DEFAULT now()
//	);
//	CREATE TABLE technology_stats (term text PRIMARY KEY, count bigint NOT NULL DEFAULT 0);
//	CREATE TABLE skill_stats (term text PRIMARY KEY, count bigint NOT NULL DEFAULT 0);
//	CREATE TABLE crawl_runs (
//		id uuid PRIMARY KEY,
//		started_at timestamptz NOT NULL,
//		finished_at timestamptz,
//		status text NOT NULL,
//		jobs_added int NOT NULL DEFAULT 0,
//		duplicates int NOT NULL DEFAULT 0,
//		error_text text
//	);
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobradar/internal/posting"
	"jobradar/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	// UnknownRegion is excluded from region aggregates.
	UnknownRegion string
}

type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store is the Postgres-backed implementation of store.Store.
type Store struct {
	pool          pool
	unknownRegion string
}

// New connects a pool and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: p, unknownRegion: cfg.UnknownRegion}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(p pool, unknownRegion string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: p, unknownRegion: unknownRegion}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Exists reports whether a posting with sourceURL is already persisted.
func (s *Store) Exists(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM postings WHERE source_url = $1)`,
		sourceURL,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check posting exists: %w", err)
	}
	return exists, nil
}

// InsertPostingAndIncrementStats inserts p and bumps the term counters in one
// transaction. The unique index on source_url is the dedup authority: a
// conflicting concurrent insert surfaces here as ErrDuplicateURL.
func (s *Store) InsertPostingAndIncrementStats(ctx context.Context, p *posting.Posting) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ingest tx: %w", err)
	}

	err = tx.QueryRow(ctx, `
INSERT INTO postings (
	title, company, location, technologies, skills, description,
	posted_at, date_tier, source_id, source_url, ingested_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (source_url) DO NOTHING
RETURNING id`,
		p.Title, p.Company, p.Location, p.Technologies, p.Skills, p.Description,
		p.PostedAt, string(p.DateTier), p.SourceID, p.SourceURL, p.IngestedAt,
	).Scan(&p.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		return store.ErrDuplicateURL
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert posting: %w", err)
	}

	for _, term := range p.Technologies {
		if err := incrementStat(ctx, tx, "technology_stats", term); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}
	for _, term := range p.Skills {
		if err := incrementStat(ctx, tx, "skill_stats", term); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ingest tx: %w", err)
	}
	return nil
}

func incrementStat(ctx context.Context, tx pgx.Tx, table, term string) error {
	query := fmt.Sprintf(`
INSERT INTO %s (term, count) VALUES ($1, 1)
ON CONFLICT (term) DO UPDATE SET count = %s.count + 1`, table, table)
	if _, err := tx.Exec(ctx, query, term); err != nil {
		return fmt.Errorf("increment %s for %q: %w", table, term, err)
	}
	return nil
}

// RecordRun upserts the run row keyed by run.ID.
func (s *Store) RecordRun(ctx context.Context, run store.RunStatus) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO crawl_runs (id, started_at, finished_at, status, jobs_added, duplicates, error_text)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	status = EXCLUDED.status,
	jobs_added = EXCLUDED.jobs_added,
	duplicates = EXCLUDED.duplicates,
	error_text = EXCLUDED.error_text`,
		run.ID, run.StartedAt, run.FinishedAt, string(run.Status),
		run.JobsAdded, run.Duplicates, run.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (store.RunStatus, error) {
	var (
		run    store.RunStatus
		status string
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, started_at, finished_at, status, jobs_added, duplicates, error_text
FROM crawl_runs
ORDER BY started_at DESC
LIMIT 1`).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &status,
		&run.JobsAdded, &run.Duplicates, &run.ErrorText,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.RunStatus{}, store.ErrNotFound
	}
	if err != nil {
		return store.RunStatus{}, fmt.Errorf("query latest run: %w", err)
	}
	run.Status = store.RunState(status)
	return run, nil
}

// TechnologyStats returns the most frequent technology terms.
func (s *Store) TechnologyStats(ctx context.Context, limit int) ([]store.TermCount, error) {
	return s.termStats(ctx, "technology_stats", limit)
}

// SkillStats returns the most frequent skill terms.
func (s *Store) SkillStats(ctx context.Context, limit int) ([]store.TermCount, error) {
	return s.termStats(ctx, "skill_stats", limit)
}

func (s *Store) termStats(ctx context.Context, table string, limit int) ([]store.TermCount, error) {
	query := fmt.Sprintf(`SELECT term, count FROM %s ORDER BY count DESC, term LIMIT $1`, table)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	return scanCounts(rows)
}

// RegionStats aggregates postings per location, excluding the unknown-region
// sentinel which would dominate the list without saying anything.
func (s *Store) RegionStats(ctx context.Context, limit int) ([]store.TermCount, error) {
	rows, err := s.pool.Query(ctx, `
SELECT location, COUNT(*) AS n
FROM postings
WHERE location <> $1
GROUP BY location
ORDER BY n DESC, location
LIMIT $2`, s.unknownRegion, limit)
	if err != nil {
		return nil, fmt.Errorf("query region stats: %w", err)
	}
	return scanCounts(rows)
}

// SourceStats returns posting counts per source site.
func (s *Store) SourceStats(ctx context.Context) ([]store.TermCount, error) {
	rows, err := s.pool.Query(ctx, `
SELECT source_id, COUNT(*) AS n
FROM postings
GROUP BY source_id
ORDER BY n DESC, source_id`)
	if err != nil {
		return nil, fmt.Errorf("query source stats: %w", err)
	}
	return scanCounts(rows)
}

// GlobalStats summarizes the corpus in a single query.
func (s *Store) GlobalStats(ctx context.Context) (store.GlobalStats, error) {
	var g store.GlobalStats
	err := s.pool.QueryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(DISTINCT company),
	MAX(ingested_at),
	COUNT(*) FILTER (WHERE ingested_at >= now() - interval '24 hours')
FROM postings`).Scan(
		&g.TotalPostings, &g.TotalCompanies, &g.LastIngestedAt, &g.NewLast24h,
	)
	if err != nil {
		return store.GlobalStats{}, fmt.Errorf("query global stats: %w", err)
	}
	return g, nil
}

func scanCounts(rows pgx.Rows) ([]store.TermCount, error) {
	defer rows.Close()
	var out []store.TermCount
	for rows.Next() {
		var tc store.TermCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan count row: %w", err)
		}
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate count rows: %w", err)
	}
	return out, nil
}
