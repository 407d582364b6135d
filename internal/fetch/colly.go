package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyConfig controls the plain-HTTP fetcher.
type CollyConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyFetcher retrieves pages with a colly collector. It suits the sources
// that serve listing HTML without client-side rendering.
type CollyFetcher struct {
	cfg  CollyConfig
	base *colly.Collector
}

// NewCollyFetcher builds a CollyFetcher.
func NewCollyFetcher(cfg CollyConfig) *CollyFetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &CollyFetcher{cfg: cfg, base: c}
}

// Fetch executes a single HTTP GET and classifies failures into *Error.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	var (
		result   *Response
		respErr  error
		respCode int
		header   http.Header
	)

	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = &Response{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			Body:        append([]byte(nil), r.Body...),
			ContentType: r.Headers.Get("Content-Type"),
			FetchedAt:   time.Now().UTC(),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		respErr = err
		if r != nil {
			respCode = r.StatusCode
			if r.Headers != nil {
				header = *r.Headers
			}
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, &Error{Kind: KindTimeout, Err: ctx.Err()}
	case visitErr := <-done:
		if respErr == nil && visitErr != nil {
			respErr = visitErr
		}
	}
	if respErr != nil {
		return nil, classify(respErr, respCode, header)
	}
	if result == nil {
		return nil, &Error{Kind: KindNetwork, Err: errors.New("no response received")}
	}
	return result, nil
}

func classify(err error, statusCode int, header http.Header) *Error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &Error{
			Kind:       KindRateLimited,
			StatusCode: statusCode,
			RetryAfter: ParseRetryAfter(header.Get("Retry-After"), time.Now()),
			Err:        err,
		}
	case statusCode > 0:
		return &Error{Kind: KindHTTP, StatusCode: statusCode, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
