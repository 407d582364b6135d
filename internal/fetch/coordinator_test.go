package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scriptedFetcher struct {
	results []error
	calls   int
}

func (s *scriptedFetcher) Fetch(_ context.Context, url string) (*Response, error) {
	err := s.results[s.calls]
	s.calls++
	if err != nil {
		return nil, err
	}
	return &Response{URL: url, StatusCode: 200, Body: []byte("ok")}, nil
}

func newTestCoordinator(t *testing.T, inner PageFetcher) (*Coordinator, *[]time.Duration) {
	t.Helper()
	c := NewCoordinator(inner, nil, zaptest.NewLogger(t))
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestCoordinatorSuccessNoRetry(t *testing.T) {
	t.Parallel()
	inner := &scriptedFetcher{results: []error{nil}}
	c, slept := newTestCoordinator(t, inner)

	resp, err := c.Fetch(context.Background(), "https://example.com/p1")
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, 1, inner.calls)
	require.Empty(t, *slept)
}

func TestCoordinatorRetriesNetworkOnce(t *testing.T) {
	t.Parallel()
	inner := &scriptedFetcher{results: []error{
		&Error{Kind: KindNetwork, Err: errors.New("connection reset")},
		nil,
	}}
	c, slept := newTestCoordinator(t, inner)

	resp, err := c.Fetch(context.Background(), "https://example.com/p1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 2, inner.calls)
	require.Equal(t, []time.Duration{defaultRetryDelay}, *slept)
}

func TestCoordinatorSingleRetryThenPropagate(t *testing.T) {
	t.Parallel()
	inner := &scriptedFetcher{results: []error{
		&Error{Kind: KindTimeout, Err: errors.New("deadline")},
		&Error{Kind: KindTimeout, Err: errors.New("deadline again")},
	}}
	c, _ := newTestCoordinator(t, inner)

	_, err := c.Fetch(context.Background(), "https://example.com/p1")
	require.Error(t, err)
	// Exactly two attempts, never a third.
	require.Equal(t, 2, inner.calls)
}

func TestCoordinatorHTTPErrorNoRetry(t *testing.T) {
	t.Parallel()
	inner := &scriptedFetcher{results: []error{
		&Error{Kind: KindHTTP, StatusCode: 404, Err: errors.New("not found")},
	}}
	c, slept := newTestCoordinator(t, inner)

	_, err := c.Fetch(context.Background(), "https://example.com/p1")
	var fe *Error
	require.ErrorAs(t, err, &fe)
	require.Equal(t, KindHTTP, fe.Kind)
	require.Equal(t, 1, inner.calls)
	require.Empty(t, *slept)
}

func TestCoordinatorRateLimitHonorsRetryAfter(t *testing.T) {
	t.Parallel()
	inner := &scriptedFetcher{results: []error{
		&Error{Kind: KindRateLimited, StatusCode: 429, RetryAfter: 7 * time.Second},
		nil,
	}}
	c, slept := newTestCoordinator(t, inner)

	_, err := c.Fetch(context.Background(), "https://example.com/p1")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{7 * time.Second}, *slept)
}

func TestCoordinatorRateLimitDefaultCooldown(t *testing.T) {
	t.Parallel()
	inner := &scriptedFetcher{results: []error{
		&Error{Kind: KindRateLimited, StatusCode: 429},
		nil,
	}}
	c, slept := newTestCoordinator(t, inner)

	_, err := c.Fetch(context.Background(), "https://example.com/p1")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{defaultRateLimitCooldown}, *slept)
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 17, 12, 0, 0, 0, time.UTC)

	require.Equal(t, 5*time.Second, ParseRetryAfter("5", now))
	require.Equal(t, time.Duration(0), ParseRetryAfter("", now))
	require.Equal(t, time.Duration(0), ParseRetryAfter("soon", now))
	require.Equal(t, time.Duration(0), ParseRetryAfter("-3", now))

	httpDate := now.Add(90 * time.Second).Format(time.RFC1123)
	require.Equal(t, 90*time.Second, ParseRetryAfter(httpDate, now))
}
