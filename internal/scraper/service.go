// Package scraper runs the delta-scrape cycle: fetch, extract, dedupe,
// persist, adjust the poll interval, notify.
package scraper

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Amsmoox/tradebot/internal/extract"
	"github.com/Amsmoox/tradebot/internal/fetcher"
	"github.com/Amsmoox/tradebot/internal/metrics"
	"github.com/Amsmoox/tradebot/internal/model"
	"github.com/Amsmoox/tradebot/internal/notify"
	"github.com/Amsmoox/tradebot/internal/store"
)

// Options configures the orchestrator.
type Options struct {
	// DefaultInterval seeds a new source's watermark, in seconds.
	DefaultInterval int
	// CycleTimeout bounds one full cycle so a stuck collaborator cannot
	// block the scheduler. Zero means no deadline.
	CycleTimeout time.Duration
	Policy       IntervalPolicy
}

type source struct {
	url     string
	fetcher fetcher.Fetcher
}

type lastFailure struct {
	reason string
	at     time.Time
}

// Service orchestrates cycles for registered sources. One cycle per source
// runs at a time (the scheduler enforces it); cycles for different sources
// may overlap freely.
type Service struct {
	opts      Options
	store     store.Store
	extractor extract.Extractor
	notifier  notify.Notifier
	recorder  *metrics.Recorder

	mu       sync.Mutex
	sources  map[string]source
	failures map[string]lastFailure
}

// NewService creates the orchestrator. notifier and recorder may be nil.
func NewService(
	opts Options,
	st store.Store,
	ex extract.Extractor,
	n notify.Notifier,
	rec *metrics.Recorder,
) *Service {
	if opts.DefaultInterval <= 0 {
		opts.DefaultInterval = 60
	}
	if opts.Policy == (IntervalPolicy{}) {
		opts.Policy = DefaultIntervalPolicy()
	}
	return &Service{
		opts:      opts,
		store:     st,
		extractor: ex,
		notifier:  n,
		recorder:  rec,
		sources:   make(map[string]source),
		failures:  make(map[string]lastFailure),
	}
}

// AddSource registers a source with the fetcher that serves it.
func (s *Service) AddSource(name, url string, f fetcher.Fetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = source{url: url, fetcher: f}
}

// Sources returns registered source names, sorted.
func (s *Service) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunCycle executes one delta-scrape cycle for the named source. The
// watermark is written exactly once, at the end, and only on a completed
// cycle: a failed fetch or a storage fault leaves it byte-for-byte as the
// previous cycle committed it. A panicking collaborator fails the cycle
// instead of killing the scheduler.
func (s *Service) RunCycle(ctx context.Context, name string) (res model.CycleResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = s.failed(name, start, eris.Errorf("scraper: cycle panic: %v", r))
		}
	}()
	return s.runCycle(ctx, name, start)
}

func (s *Service) runCycle(ctx context.Context, name string, start time.Time) model.CycleResult {
	src, ok := s.lookupSource(name)
	if !ok {
		return s.failed(name, start, eris.Errorf("scraper: unknown source %q", name))
	}

	if s.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CycleTimeout)
		defer cancel()
	}

	wm, err := s.store.GetOrCreateWatermark(ctx, name, s.opts.DefaultInterval)
	if err != nil {
		return s.failed(name, start, eris.Wrap(err, "scraper: load watermark"))
	}

	out, err := src.fetcher.Fetch(ctx, src.url, wm.Validators)
	if err != nil {
		return s.failed(name, start, err)
	}

	if out.Status == fetcher.StatusUnchanged {
		wm.ConsecutiveNoChange++
		if err := s.commitWatermark(ctx, wm, 0); err != nil {
			return s.failed(name, start, err)
		}
		res := s.finish(model.CycleResult{
			Source:  name,
			Outcome: model.OutcomeUnchanged,
			Elapsed: time.Since(start),
		})
		zap.L().Info("scraper: source unchanged",
			zap.String("source", name),
			zap.Int("no_change_streak", wm.ConsecutiveNoChange),
			zap.Int("poll_interval", wm.PollInterval),
		)
		return res
	}

	candidates := s.extractor.Extract(out.Body, src.url)

	known, err := s.store.KnownFingerprints(ctx)
	if err != nil {
		return s.failed(name, start, eris.Wrap(err, "scraper: load fingerprints"))
	}

	now := time.Now().UTC()
	var persisted []model.Signal
	duplicates := 0
	for _, c := range candidates {
		fp := c.Fingerprint()
		if _, dup := known[fp]; dup {
			duplicates++
			continue
		}
		known[fp] = struct{}{}

		sig := c.Signal(uuid.NewString(), name, src.url, now)
		if err := s.store.InsertSignal(ctx, sig); err != nil {
			if errors.Is(err, store.ErrDuplicateFingerprint) {
				duplicates++
				continue
			}
			// Partial-success semantics: one bad record does not abort
			// the rest of the batch.
			zap.L().Error("scraper: persist signal failed, skipping",
				zap.String("source", name),
				zap.String("instrument", c.Instrument),
				zap.Error(err),
			)
			continue
		}
		persisted = append(persisted, sig)
	}

	if len(persisted) > 0 {
		wm.ConsecutiveNoChange = 0
	} else {
		wm.ConsecutiveNoChange++
	}
	wm.Validators = wm.Validators.Merge(out.Validators)
	if err := s.commitWatermark(ctx, wm, len(persisted)); err != nil {
		return s.failed(name, start, err)
	}

	if len(persisted) > 0 && s.notifier != nil {
		if err := s.notifier.Notify(ctx, persisted); err != nil {
			zap.L().Error("scraper: notify failed",
				zap.String("source", name),
				zap.Error(err),
			)
		}
	}

	outcome := model.OutcomeNoNewSignals
	if len(persisted) > 0 {
		outcome = model.OutcomeNewSignals
	}
	res := s.finish(model.CycleResult{
		Source:     name,
		Outcome:    outcome,
		Extracted:  len(candidates),
		New:        len(persisted),
		Duplicates: duplicates,
		Elapsed:    time.Since(start),
	})
	zap.L().Info("scraper: cycle complete",
		zap.String("source", name),
		zap.String("outcome", string(outcome)),
		zap.Int("extracted", res.Extracted),
		zap.Int("new", res.New),
		zap.Int("duplicates", res.Duplicates),
		zap.Int("poll_interval", wm.PollInterval),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res
}

// commitWatermark stamps success, applies the interval policy and performs
// the cycle's single watermark write.
func (s *Service) commitWatermark(ctx context.Context, wm *model.Watermark, newCount int) error {
	now := time.Now().UTC()
	wm.LastSuccessAt = &now
	wm.PollInterval = s.opts.Policy.Next(wm.PollInterval, newCount, wm.ConsecutiveNoChange)
	if err := s.store.SaveWatermark(ctx, wm); err != nil {
		return eris.Wrap(err, "scraper: save watermark")
	}
	if s.recorder != nil {
		s.recorder.RecordPollInterval(wm.Source, wm.PollInterval)
	}
	return nil
}

// Interval reads the current adaptive poll interval for a source. The
// scheduler calls this before every sleep so interval adjustments take
// effect on the very next tick.
func (s *Service) Interval(ctx context.Context, name string) (time.Duration, error) {
	wm, err := s.store.GetOrCreateWatermark(ctx, name, s.opts.DefaultInterval)
	if err != nil {
		return 0, eris.Wrap(err, "scraper: load watermark")
	}
	return time.Duration(wm.PollInterval) * time.Second, nil
}

// Status reports the operator view of one source.
func (s *Service) Status(ctx context.Context, name string) (*model.SourceStatus, error) {
	if _, ok := s.lookupSource(name); !ok {
		return nil, eris.Errorf("scraper: unknown source %q", name)
	}

	wm, err := s.store.GetOrCreateWatermark(ctx, name, s.opts.DefaultInterval)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: load watermark")
	}
	last24, err := s.store.CountSignalsSince(ctx, name, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		return nil, eris.Wrap(err, "scraper: count recent signals")
	}
	total, err := s.store.CountSignals(ctx, name)
	if err != nil {
		return nil, eris.Wrap(err, "scraper: count signals")
	}

	st := &model.SourceStatus{
		Source:        name,
		Watermark:     wm,
		SignalsLast24: last24,
		SignalsTotal:  total,
	}
	s.mu.Lock()
	if f, ok := s.failures[name]; ok {
		at := f.at
		st.LastFailure = f.reason
		st.LastFailureAt = &at
	}
	s.mu.Unlock()
	return st, nil
}

func (s *Service) lookupSource(name string) (source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[name]
	return src, ok
}

func (s *Service) failed(name string, start time.Time, err error) model.CycleResult {
	s.mu.Lock()
	s.failures[name] = lastFailure{reason: err.Error(), at: time.Now().UTC()}
	s.mu.Unlock()

	zap.L().Error("scraper: cycle failed",
		zap.String("source", name),
		zap.Error(err),
	)
	return s.finish(model.CycleResult{
		Source:  name,
		Outcome: model.OutcomeFailed,
		Err:     err.Error(),
		Elapsed: time.Since(start),
	})
}

func (s *Service) finish(res model.CycleResult) model.CycleResult {
	if s.recorder != nil {
		s.recorder.RecordCycle(res.Source, string(res.Outcome), res.Elapsed.Seconds())
		if res.New > 0 || res.Duplicates > 0 {
			s.recorder.RecordSignals(res.Source, res.New, res.Duplicates)
		}
	}
	return res
}
