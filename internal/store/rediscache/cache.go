// Package rediscache decorates a store.Store with a Redis set of already-seen
// source URLs, so that re-crawls of mostly-known listings skip the database
// round-trip for the common duplicate case.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"jobradar/internal/posting"
	"jobradar/internal/store"
)

const seenKey = "jobradar:seen_urls"

// Store wraps an inner store.Store. The cache is advisory: a Redis failure
// degrades to the inner store, never to a wrong answer, and the unique index
// below remains the dedup authority.
type Store struct {
	store.Store
	rdb *redis.Client
	ttl time.Duration
}

// NewClient parses redisURL and verifies connectivity.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// New wraps inner with a seen-URL cache. ttl bounds the lifetime of the whole
// set; zero means no expiry.
func New(inner store.Store, rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{Store: inner, rdb: rdb, ttl: ttl}
}

// Exists consults the Redis set first and falls back to the inner store,
// seeding the set on a database hit.
func (s *Store) Exists(ctx context.Context, sourceURL string) (bool, error) {
	seen, err := s.rdb.SIsMember(ctx, seenKey, sourceURL).Result()
	if err == nil && seen {
		return true, nil
	}
	ok, innerErr := s.Store.Exists(ctx, sourceURL)
	if innerErr != nil {
		return false, innerErr
	}
	if ok {
		s.markSeen(ctx, sourceURL)
	}
	return ok, nil
}

// InsertPostingAndIncrementStats delegates to the inner store and records the
// URL as seen on success and on a lost duplicate race alike.
func (s *Store) InsertPostingAndIncrementStats(ctx context.Context, p *posting.Posting) error {
	err := s.Store.InsertPostingAndIncrementStats(ctx, p)
	if err == nil || errors.Is(err, store.ErrDuplicateURL) {
		s.markSeen(ctx, p.SourceURL)
	}
	return err
}

func (s *Store) markSeen(ctx context.Context, sourceURL string) {
	if err := s.rdb.SAdd(ctx, seenKey, sourceURL).Err(); err != nil {
		return
	}
	if s.ttl > 0 {
		_ = s.rdb.Expire(ctx, seenKey, s.ttl).Err()
	}
}
