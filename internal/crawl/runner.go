package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobradar/internal/metrics"
	"jobradar/internal/store"
)

// ErrRunInFlight is returned when a crawl run is already executing.
var ErrRunInFlight = errors.New("a crawl run is already in flight")

const defaultSourceBudget = 20 * time.Minute

// Runner executes one multi-source crawl run: one goroutine per source, each
// with its own wall-clock budget, aggregated into a single RunStatus row
// written at start and once more at the end.
type Runner struct {
	controller   *Controller
	store        store.Store
	logger       *zap.Logger
	sourceBudget time.Duration
	inFlight     atomic.Bool
	now          func() time.Time
}

// NewRunner wires a Runner. sourceBudget zero means the default 20 minutes.
func NewRunner(controller *Controller, st store.Store, logger *zap.Logger, sourceBudget time.Duration) *Runner {
	if sourceBudget <= 0 {
		sourceBudget = defaultSourceBudget
	}
	return &Runner{
		controller:   controller,
		store:        st,
		logger:       logger,
		sourceBudget: sourceBudget,
		now:          time.Now,
	}
}

// Running reports whether a run is currently executing.
func (r *Runner) Running() bool {
	return r.inFlight.Load()
}

// Run crawls all sources and returns the final run status. Only one run may
// execute at a time; concurrent calls get ErrRunInFlight.
func (r *Runner) Run(ctx context.Context, sources []SourceRun) (store.RunStatus, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return store.RunStatus{}, ErrRunInFlight
	}
	defer r.inFlight.Store(false)

	run := store.RunStatus{
		ID:        uuid.New(),
		StartedAt: r.now().UTC(),
		Status:    store.RunRunning,
	}
	if err := r.store.RecordRun(ctx, run); err != nil {
		return store.RunStatus{}, fmt.Errorf("record run start: %w", err)
	}
	r.logger.Info("crawl run started",
		zap.String("run_id", run.ID.String()),
		zap.Int("sources", len(sources)))

	reports := make([]Report, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src SourceRun) {
			defer wg.Done()
			metrics.IncActiveSources()
			defer metrics.DecActiveSources()

			// Budget cancellation is per source and cooperative: it fires at
			// the next page boundary and never touches sibling sources.
			srcCtx, cancel := context.WithTimeout(ctx, r.sourceBudget)
			defer cancel()
			reports[i] = r.controller.CrawlSource(srcCtx, src)
		}(i, src)
	}
	wg.Wait()

	finished := r.now().UTC()
	run.FinishedAt = &finished
	run.Status, run.ErrorText = summarize(reports)
	for _, rep := range reports {
		run.JobsAdded += rep.Accepted
		run.Duplicates += rep.Duplicates
	}

	// The terminal status must always land, even when the caller's context
	// died with the sources.
	recordCtx := ctx
	if recordCtx.Err() != nil {
		var cancel context.CancelFunc
		recordCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := r.store.RecordRun(recordCtx, run); err != nil {
		r.logger.Error("record run end failed", zap.Error(err))
	}

	metrics.ObserveRun(string(run.Status))
	r.logger.Info("crawl run finished",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Int("jobs_added", run.JobsAdded),
		zap.Int("duplicates", run.Duplicates))
	return run, nil
}

// summarize folds per-source reports into a run status: failed only when
// every source failed, partial when some did, success otherwise.
func summarize(reports []Report) (store.RunState, *string) {
	if len(reports) == 0 {
		return store.RunSuccess, nil
	}
	var failures []string
	for _, rep := range reports {
		if rep.Failed() {
			msg := string(rep.StopReason)
			if rep.Err != nil {
				msg = fmt.Sprintf("%s: %v", rep.SourceID, rep.Err)
			}
			failures = append(failures, msg)
		}
	}
	switch {
	case len(failures) == 0:
		return store.RunSuccess, nil
	case len(failures) == len(reports):
		text := strings.Join(failures, "; ")
		return store.RunFailed, &text
	default:
		text := strings.Join(failures, "; ")
		return store.RunPartial, &text
	}
}
