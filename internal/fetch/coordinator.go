package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRetryDelay        = 2 * time.Second
	defaultRateLimitCooldown = 30 * time.Second
)

// Coordinator wraps a PageFetcher with politeness pacing and a single-retry
// policy: timeout and network errors retry once after a short fixed delay,
// rate limits retry once after the server-suggested wait (or a default
// cool-down), all other HTTP errors propagate immediately.
type Coordinator struct {
	inner             PageFetcher
	limiter           *rate.Limiter
	retryDelay        time.Duration
	rateLimitCooldown time.Duration
	logger            *zap.Logger
	sleep             func(ctx context.Context, d time.Duration) error
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithRetryDelay sets the fixed delay before the network/timeout retry.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.retryDelay = d }
}

// WithRateLimitCooldown sets the fallback wait when a rate-limit response
// carries no usable Retry-After.
func WithRateLimitCooldown(d time.Duration) Option {
	return func(c *Coordinator) { c.rateLimitCooldown = d }
}

// NewCoordinator builds a Coordinator. limiter may be nil to disable pacing.
func NewCoordinator(inner PageFetcher, limiter *rate.Limiter, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		inner:             inner,
		limiter:           limiter,
		retryDelay:        defaultRetryDelay,
		rateLimitCooldown: defaultRateLimitCooldown,
		logger:            logger,
		sleep:             sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves url, retrying at most once per the policy. The politeness
// limiter gates every attempt, including the retry.
func (c *Coordinator) Fetch(ctx context.Context, url string) (*Response, error) {
	resp, err := c.attempt(ctx, url)
	if err == nil {
		return resp, nil
	}

	var fe *Error
	if !errors.As(err, &fe) || !fe.Retryable() {
		return nil, err
	}

	delay := c.retryDelay
	if fe.Kind == KindRateLimited {
		delay = c.rateLimitCooldown
		if fe.RetryAfter > 0 {
			delay = fe.RetryAfter
		}
	}
	c.logger.Warn("retrying fetch after transient error",
		zap.String("url", url),
		zap.String("kind", string(fe.Kind)),
		zap.Duration("delay", delay))

	if err := c.sleep(ctx, delay); err != nil {
		return nil, err
	}
	return c.attempt(ctx, url)
}

func (c *Coordinator) attempt(ctx context.Context, url string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("politeness wait: %w", err)
		}
	}
	return c.inner.Fetch(ctx, url)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch retry canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
