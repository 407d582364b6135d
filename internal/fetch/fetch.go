// Package fetch retrieves listing pages with politeness pacing and a bounded
// retry policy for transient failures.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Kind classifies a fetch failure for the retry policy.
type Kind string

// Failure kinds.
const (
	KindTimeout     Kind = "timeout"
	KindRateLimited Kind = "rate_limited"
	KindNetwork     Kind = "network"
	KindHTTP        Kind = "http"
)

// Error is the single error type returned by fetchers. The coordinator keys
// its retry decision on Kind.
type Error struct {
	Kind       Kind
	StatusCode int
	// RetryAfter carries the server-suggested wait for rate-limit responses,
	// zero when absent.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s (HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the coordinator may retry this failure.
func (e *Error) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindNetwork || e.Kind == KindRateLimited
}

// Response is one fetched listing page.
type Response struct {
	URL         string
	StatusCode  int
	Body        []byte
	ContentType string
	FetchedAt   time.Time
}

// PageFetcher retrieves one URL. Implementations return *Error on failure.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// ParseRetryAfter reads a Retry-After header value, either delta-seconds or an
// HTTP-date. Returns zero when the value is absent or unusable.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
