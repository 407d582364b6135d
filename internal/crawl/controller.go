// Package crawl drives the per-source page loop and decides when to stop
// paging: on exhaustion, staleness, page ceilings, failure limits or budget.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobradar/internal/archive"
	"jobradar/internal/metrics"
	"jobradar/internal/normalize"
	"jobradar/internal/posting"
	"jobradar/internal/source"
)

// StopReason records why a source's crawl ended.
type StopReason string

// Stop reasons. Only TransientFailureLimit marks the source as failed; the
// rest are normal terminations.
const (
	StopExhausted             StopReason = "exhausted"
	StopStaleThreshold        StopReason = "stale_threshold"
	StopPageLimit             StopReason = "page_limit"
	StopTransientFailureLimit StopReason = "transient_failure_limit"
	StopBudgetExceeded        StopReason = "budget_exceeded"
	StopCanceled              StopReason = "canceled"
)

// Defaults applied when a SourceRun leaves a knob zero.
const (
	defaultStaleThreshold  = 5
	defaultFailureLimit    = 3
	defaultMaxPages        = 300
	defaultStaleTolerance  = 30 * 24 * time.Hour
	defaultDaysPerPage     = 1.5
	archiveSnapshotContent = "text/html; charset=utf-8"
)

// State is the transient per-source crawl state. It lives for one run and is
// never persisted; every run starts paging from page 1.
type State struct {
	PageCursor          int
	ConsecutiveStale    int
	ConsecutiveFailures int
	OldestSeenOnPage    time.Time
}

// SourceRun configures one source's crawl within a run.
type SourceRun struct {
	Adapter source.Adapter
	// RecencyCutoff is the oldest posting date the crawl is interested in.
	// Leave it zero and set RecencyWindow instead to resolve the cutoff
	// against the clock at crawl start.
	RecencyCutoff time.Time
	// RecencyWindow is the relative form of RecencyCutoff, for long-running
	// services where a fixed cutoff would go stale between runs.
	RecencyWindow time.Duration
	// StaleThreshold stops the source after this many consecutive postings
	// with confidently-resolved dates older than the cutoff.
	StaleThreshold int
	// StaleTolerance is how far past the cutoff the oldest date on a page may
	// drift before the page itself proves the source stale. Sources that
	// interleave sponsored recent items with old organic ones need the slack.
	StaleTolerance time.Duration
	// MaxPages bounds worst-case runtime.
	MaxPages int
	// EstimateDaysPerPage tunes the page-position date estimate used when a
	// card carries no parseable date. Zero disables the estimate.
	EstimateDaysPerPage float64
	// FailureLimit stops the source after this many consecutive page-level
	// fetch or extraction failures.
	FailureLimit int
	// Archive, when set, receives a snapshot of every fetched page.
	Archive archive.Store
}

func (sr *SourceRun) applyDefaults() {
	if sr.StaleThreshold <= 0 {
		sr.StaleThreshold = defaultStaleThreshold
	}
	if sr.StaleTolerance <= 0 {
		sr.StaleTolerance = defaultStaleTolerance
	}
	if sr.MaxPages <= 0 {
		sr.MaxPages = defaultMaxPages
	}
	if sr.FailureLimit <= 0 {
		sr.FailureLimit = defaultFailureLimit
	}
}

// Report summarizes one source's crawl.
type Report struct {
	SourceID     string
	Pages        int
	Accepted     int
	Duplicates   int
	Rejected     int
	SkippedStale int
	StopReason   StopReason
	// Err is set when the source terminated abnormally.
	Err error
}

// Failed reports whether the source ended in an error state.
func (r Report) Failed() bool {
	return r.StopReason == StopTransientFailureLimit || r.Err != nil
}

// Ingestor is the gate interface the controller depends on.
type Ingestor interface {
	Ingest(ctx context.Context, raw posting.Raw) posting.IngestOutcome
}

// Controller crawls one source at a time. Sources run concurrently by giving
// each goroutine its own SourceRun; the Controller itself is stateless across
// calls and safe for concurrent use.
type Controller struct {
	gate   Ingestor
	logger *zap.Logger
	now    func() time.Time
}

// NewController wires a Controller.
func NewController(gate Ingestor, logger *zap.Logger) *Controller {
	return &Controller{gate: gate, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (c *Controller) WithNow(now func() time.Time) *Controller {
	c.now = now
	return c
}

// CrawlSource pages through one source until a stop condition fires. Pages
// are strictly sequential because the stopping decision depends on having
// evaluated every posting on the current page.
func (c *Controller) CrawlSource(ctx context.Context, run SourceRun) Report {
	run.applyDefaults()
	if run.RecencyCutoff.IsZero() && run.RecencyWindow > 0 {
		run.RecencyCutoff = c.now().UTC().Add(-run.RecencyWindow)
	}
	logger := c.logger.With(zap.String("source", run.Adapter.ID()))
	report := Report{SourceID: run.Adapter.ID()}
	state := State{PageCursor: 1}

	for {
		if reason, done := ctxStop(ctx); done {
			report.StopReason = reason
			break
		}

		page, err := run.Adapter.FetchPage(ctx, state.PageCursor)
		if err == nil {
			var raws []posting.Raw
			raws, err = run.Adapter.ExtractCards(page)
			if err == nil {
				metrics.ObservePage(report.SourceID, "fetched")
				state.ConsecutiveFailures = 0
				report.Pages++
				c.snapshot(ctx, run, page, logger)

				if len(raws) == 0 {
					report.StopReason = StopExhausted
					break
				}
				if stop := c.evaluatePage(ctx, run, &state, raws, &report); stop {
					report.StopReason = StopStaleThreshold
					break
				}
			}
		}
		if err != nil {
			if reason, done := ctxStop(ctx); done {
				report.StopReason = reason
				break
			}
			metrics.ObservePage(report.SourceID, "failed")
			state.ConsecutiveFailures++
			logger.Warn("page failed",
				zap.Int("page", state.PageCursor),
				zap.Int("consecutive_failures", state.ConsecutiveFailures),
				zap.Error(err))
			if state.ConsecutiveFailures >= run.FailureLimit {
				report.StopReason = StopTransientFailureLimit
				report.Err = fmt.Errorf("%d consecutive page failures: %w", state.ConsecutiveFailures, err)
				break
			}
		}

		if state.PageCursor >= run.MaxPages {
			report.StopReason = StopPageLimit
			break
		}
		state.PageCursor++
	}

	metrics.ObserveSourceStop(report.SourceID, string(report.StopReason))
	logger.Info("source crawl finished",
		zap.String("reason", string(report.StopReason)),
		zap.Int("pages", report.Pages),
		zap.Int("accepted", report.Accepted),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("rejected", report.Rejected))
	return report
}

// evaluatePage submits the page's cards to the gate and updates the staleness
// state. It returns true when the source should stop for staleness.
func (c *Controller) evaluatePage(ctx context.Context, run SourceRun, state *State, raws []posting.Raw, report *Report) bool {
	now := c.now().UTC()
	haveEstimate := run.EstimateDaysPerPage > 0
	var estimate time.Time
	if haveEstimate {
		estimate = normalize.EstimateFromPage(state.PageCursor, run.EstimateDaysPerPage, now)
	}

	state.OldestSeenOnPage = time.Time{}
	for _, raw := range raws {
		postedAt, tier := normalize.NormalizeWithFallback(raw.DateText, now, estimate, haveEstimate)

		if !postedAt.IsZero() {
			if state.OldestSeenOnPage.IsZero() || postedAt.Before(state.OldestSeenOnPage) {
				state.OldestSeenOnPage = postedAt
			}
		}

		stale := !postedAt.IsZero() && postedAt.Before(run.RecencyCutoff)
		if stale && tier.Confident() {
			// Confidently old postings are not worth persisting; they count
			// toward the stop decision instead.
			state.ConsecutiveStale++
			report.SkippedStale++
			if state.ConsecutiveStale >= run.StaleThreshold {
				return true
			}
			continue
		}
		if !stale && tier.Confident() {
			state.ConsecutiveStale = 0
		}

		raw.FallbackPostedAt = estimate
		raw.HasFallbackPostedAt = haveEstimate

		outcome := c.gate.Ingest(ctx, raw)
		metrics.ObservePosting(raw.SourceID, string(outcome.Disposition))
		switch outcome.Disposition {
		case posting.Accepted:
			report.Accepted++
		case posting.DuplicateSkipped:
			report.Duplicates++
		case posting.Rejected:
			report.Rejected++
			c.logger.Warn("posting rejected",
				zap.String("source", raw.SourceID),
				zap.String("url", raw.URL),
				zap.String("reason", outcome.Reason))
		}
	}

	// A page whose oldest date sits far past the cutoff proves the source has
	// moved beyond the window even without a consecutive-stale streak.
	if !state.OldestSeenOnPage.IsZero() &&
		state.OldestSeenOnPage.Before(run.RecencyCutoff.Add(-run.StaleTolerance)) {
		return true
	}
	return false
}

func (c *Controller) snapshot(ctx context.Context, run SourceRun, page *source.Page, logger *zap.Logger) {
	if run.Archive == nil || page.Response == nil {
		return
	}
	path := fmt.Sprintf("%s/%s/page-%04d.html",
		run.Adapter.ID(), c.now().UTC().Format("2006-01-02"), page.Number)
	uri, err := run.Archive.Put(ctx, path, archiveSnapshotContent, page.Response.Body)
	if err != nil {
		logger.Warn("page snapshot failed", zap.Int("page", page.Number), zap.Error(err))
		return
	}
	logger.Debug("page archived", zap.Int("page", page.Number), zap.String("uri", uri))
}

func ctxStop(ctx context.Context) (StopReason, bool) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return StopBudgetExceeded, true
	case ctx.Err() != nil:
		return StopCanceled, true
	}
	return "", false
}
