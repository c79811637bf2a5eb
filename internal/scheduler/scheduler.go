// Package scheduler drives periodic delta-scrape cycles, one loop per
// source, with the poll interval re-read from the watermark before every
// sleep.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Amsmoox/tradebot/internal/model"
	"github.com/Amsmoox/tradebot/internal/resilience"
)

// ErrCycleInFlight is returned by TriggerNow when the source already has a
// running cycle. At most one cycle per source runs at any time; that
// invariant is what makes watermark writes safe without locking in the
// store.
var ErrCycleInFlight = eris.New("scheduler: cycle already in flight")

// CycleRunner is the orchestrator surface the scheduler drives.
type CycleRunner interface {
	Sources() []string
	RunCycle(ctx context.Context, source string) model.CycleResult
	Interval(ctx context.Context, source string) (time.Duration, error)
}

// Scheduler polls every registered source on its own adaptive interval.
// Failed cycles are retried with exponential backoff, separate from the
// steady poll cadence; retry exhaustion logs a terminal failure and the
// loop carries on with the next scheduled tick.
type Scheduler struct {
	runner CycleRunner
	retry  resilience.RetryConfig

	mu       sync.Mutex
	inflight map[string]bool
}

// New creates a scheduler over the given runner.
func New(runner CycleRunner, retry resilience.RetryConfig) *Scheduler {
	return &Scheduler{
		runner:   runner,
		retry:    retry,
		inflight: make(map[string]bool),
	}
}

// Run blocks, polling all sources until ctx is cancelled. It always
// returns nil after a clean shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	sources := s.runner.Sources()
	if len(sources) == 0 {
		return eris.New("scheduler: no sources registered")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range sources {
		name := name
		g.Go(func() error {
			s.pollLoop(ctx, name)
			return nil
		})
	}
	return g.Wait()
}

// TriggerNow runs one cycle for the source immediately, bypassing the
// poll timer. Returns ErrCycleInFlight if a cycle is already running.
func (s *Scheduler) TriggerNow(ctx context.Context, source string) (model.CycleResult, error) {
	res, ok := s.runGuarded(ctx, source, false)
	if !ok {
		return model.CycleResult{}, ErrCycleInFlight
	}
	return res, nil
}

func (s *Scheduler) pollLoop(ctx context.Context, source string) {
	zap.L().Info("scheduler: polling source", zap.String("source", source))
	for {
		s.runGuarded(ctx, source, true)

		interval, err := s.runner.Interval(ctx, source)
		if err != nil {
			zap.L().Error("scheduler: read poll interval",
				zap.String("source", source),
				zap.Error(err),
			)
			interval = time.Minute
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			zap.L().Info("scheduler: source loop stopped", zap.String("source", source))
			return
		case <-timer.C:
		}
	}
}

// runGuarded enforces the one-in-flight-cycle-per-source invariant. With
// withRetry set, a failed cycle is retried with backoff before giving up
// until the next tick.
func (s *Scheduler) runGuarded(ctx context.Context, source string, withRetry bool) (model.CycleResult, bool) {
	if !s.acquire(source) {
		return model.CycleResult{}, false
	}
	defer s.release(source)

	if !withRetry {
		return s.runner.RunCycle(ctx, source), true
	}

	cfg := s.retry
	cfg.ShouldRetry = func(error) bool { return true }
	cfg.OnRetry = resilience.RetryLogger(source, "cycle")

	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (model.CycleResult, error) {
		res := s.runner.RunCycle(ctx, source)
		if !res.Success() {
			return res, eris.New(res.Err)
		}
		return res, nil
	})
	if err != nil {
		zap.L().Error("scheduler: cycle failed after retries",
			zap.String("source", source),
			zap.Int("attempts", cfg.MaxAttempts),
			zap.Error(err),
		)
		return model.CycleResult{
			Source:  source,
			Outcome: model.OutcomeFailed,
			Err:     err.Error(),
		}, true
	}
	return res, true
}

func (s *Scheduler) acquire(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[source] {
		return false
	}
	s.inflight[source] = true
	return true
}

func (s *Scheduler) release(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, source)
}
