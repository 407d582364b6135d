// Package scheduler triggers periodic crawl runs on a cron spec.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobradar/internal/crawl"
	"jobradar/internal/store"
)

// DefaultSpec runs a full crawl every six hours.
const DefaultSpec = "@every 6h"

// Runner is the crawl trigger the scheduler drives.
type Runner interface {
	Run(ctx context.Context, sources []crawl.SourceRun) (store.RunStatus, error)
	Running() bool
}

// Scheduler owns the cron loop. A tick that lands while a run is still in
// flight is skipped, never queued.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	sources []crawl.SourceRun
	logger  *zap.Logger
}

// New builds a Scheduler on spec. An empty spec means DefaultSpec.
func New(spec string, runner Runner, sources []crawl.SourceRun, logger *zap.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		sources: sources,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if s.runner.Running() {
		s.logger.Info("scheduled run skipped, previous run still in flight")
		return
	}
	run, err := s.runner.Run(context.Background(), s.sources)
	if err != nil {
		if errors.Is(err, crawl.ErrRunInFlight) {
			s.logger.Info("scheduled run skipped, previous run still in flight")
			return
		}
		s.logger.Error("scheduled run failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled run finished",
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Int("jobs_added", run.JobsAdded))
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running tick to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
