// Package scheduler runs the periodic full match sweep on a cron spec.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"match-workers/internal/common/logger"
	"match-workers/internal/common/observability"
	"match-workers/internal/matching/pipeline"
)

var ErrSweepInProgress = errors.New("match sweep already in progress")

type Sweeper interface {
	RunBatch(ctx context.Context, req pipeline.BatchRequest) (*pipeline.BatchReport, error)
}

type Scheduler struct {
	cron    *cron.Cron
	spec    string
	sweeper Sweeper
	obs     *observability.Observability
	log     logger.Logger

	runOnStart bool
	running    atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Scheduler)

// WithRunOnStart fires one sweep as soon as the scheduler starts.
func WithRunOnStart() Option {
	return func(s *Scheduler) { s.runOnStart = true }
}

func WithObservability(obs *observability.Observability) Option {
	return func(s *Scheduler) { s.obs = obs }
}

// New creates a scheduler for spec, e.g. "@every 6h" or "0 3 * * *".
func New(spec string, sweeper Sweeper, log logger.Logger, opts ...Option) *Scheduler {
	log = log.WithFields(map[string]interface{}{"component": "scheduler"})
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLogger{log})),
		spec:    spec,
		sweeper: sweeper,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the sweep and starts the cron loop. Sweeps run with a
// context derived from ctx and are cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid sweep schedule %q: %w", s.spec, err)
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("Match sweep scheduled", map[string]interface{}{"spec": s.spec})

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick(ctx)
		}()
	}
	return nil
}

// Stop cancels a running sweep and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("Match sweep scheduler stopped", nil)
}

// RunOnce runs a full sweep now unless one is already running.
func (s *Scheduler) RunOnce(ctx context.Context) (*pipeline.BatchReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.running.Store(false)

	report, err := s.sweeper.RunBatch(ctx, pipeline.BatchRequest{})
	if report != nil {
		s.obs.RecordBatchPairs(ctx, report.Processed, "schedule")
	}
	return report, err
}

func (s *Scheduler) tick(ctx context.Context) {
	report, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.log.Info("Skipping match sweep, previous run still active", nil)
	case err != nil:
		fields := map[string]interface{}{}
		if report != nil {
			fields["processed"] = report.Processed
			fields["cancelled"] = report.Cancelled
		}
		s.log.WithError(err).Error("Match sweep failed", fields)
	default:
		s.log.Info("Match sweep complete", map[string]interface{}{
			"processed":  report.Processed,
			"dispatched": report.Dispatched,
			"errors":     len(report.Errors),
		})
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).Error("cron: "+msg, kvFields(keysAndValues))
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
