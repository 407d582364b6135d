package scheduler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobradar/internal/crawl"
	"jobradar/internal/store"
)

type stubRunner struct {
	running atomic.Bool
	runs    atomic.Int32
}

func (s *stubRunner) Run(context.Context, []crawl.SourceRun) (store.RunStatus, error) {
	s.runs.Add(1)
	return store.RunStatus{ID: uuid.New(), Status: store.RunSuccess}, nil
}

func (s *stubRunner) Running() bool { return s.running.Load() }

func TestTickTriggersRun(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{}
	s, err := New("", runner, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	s.tick()
	require.EqualValues(t, 1, runner.runs.Load())
}

func TestTickSkipsWhileRunning(t *testing.T) {
	t.Parallel()
	runner := &stubRunner{}
	runner.running.Store(true)
	s, err := New(DefaultSpec, runner, nil, zaptest.NewLogger(t))
	require.NoError(t, err)

	s.tick()
	require.Zero(t, runner.runs.Load())
}

func TestInvalidSpecRejected(t *testing.T) {
	t.Parallel()
	_, err := New("not a cron spec", &stubRunner{}, nil, zaptest.NewLogger(t))
	require.Error(t, err)
}
