package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"
)

// RenderedConfig controls the headless-browser fetcher.
type RenderedConfig struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// WaitVisible optionally names a selector to wait for before reading the
	// DOM, for listings populated by client-side scripts.
	WaitVisible string
}

// RenderedFetcher retrieves pages with headless Chrome via chromedp, for
// sources whose listings only exist after JavaScript runs. Each fetcher owns
// its allocator; crawl tasks must not share one.
type RenderedFetcher struct {
	cfg         RenderedConfig
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewRenderedFetcher creates a headless fetcher with its own exec allocator.
func NewRenderedFetcher(cfg RenderedConfig) *RenderedFetcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &RenderedFetcher{cfg: cfg, allocator: allocCtx, allocCancel: allocCancel}
}

// Close cancels the allocator context.
func (f *RenderedFetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with a headless browser and returns the rendered DOM.
func (f *RenderedFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	go func() {
		// Propagate caller cancellation into the browser task.
		select {
		case <-ctx.Done():
			taskCancel()
		case <-taskCtx.Done():
		}
	}()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	if f.cfg.WaitVisible != "" {
		actions = append(actions, chromedp.WaitVisible(f.cfg.WaitVisible, chromedp.ByQuery))
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Err: err}
	}

	return &Response{
		URL:         url,
		StatusCode:  http.StatusOK,
		Body:        []byte(html),
		ContentType: "text/html",
		FetchedAt:   time.Now().UTC(),
	}, nil
}
