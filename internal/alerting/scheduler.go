package alerting

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/ngoprog/alertengine/internal/logger"
	"github.com/ngoprog/alertengine/internal/observability"
	"github.com/ngoprog/alertengine/internal/observability/metrics"
)

// ErrRunInProgress is returned by RunNow while a scheduled run is executing.
var ErrRunInProgress = errors.NewStd("a scheduled evaluation run is already in progress")

// Evaluator runs one evaluation pass.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluateRequest) (RunSummary, error)
}

// SchedulerConfig configures the periodic evaluation task.
type SchedulerConfig struct {
	Interval time.Duration
	// RunTimeout bounds a single run; zero means no limit.
	RunTimeout time.Duration
	// Location decides which calendar date "today" is.
	Location *time.Location
}

// Scheduler triggers a full non-dry-run evaluation every interval. At most one
// scheduled run executes at a time; a tick that finds a run in progress is
// skipped.
type Scheduler struct {
	engine  Evaluator
	cfg     SchedulerConfig
	metrics *metrics.AlertingMetrics
	now     func() time.Time
	log     logger.Logger

	running atomic.Bool

	mu      sync.Mutex
	cancel  context.CancelFunc
	loopWG  sync.WaitGroup
	runsWG  sync.WaitGroup
	started bool
}

// NewScheduler creates a scheduler driving engine.
func NewScheduler(engine Evaluator, cfg SchedulerConfig, m *metrics.AlertingMetrics, log logger.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Scheduler{
		engine:  engine,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
		log:     log.Module("scheduler"),
	}
}

// Start launches the ticker loop. The loop stops when ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.cfg.Interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	s.loopWG.Add(1)
	go s.loop(loopCtx)

	s.log.Info("alert scheduler started",
		logger.Duration("interval", s.cfg.Interval),
		logger.Duration("run_timeout", s.cfg.RunTimeout))
	return nil
}

// Stop cancels any in-flight run and waits for the loop and run goroutines to
// exit. It is safe to call more than once, and the scheduler may be started
// again afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.started = false
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.loopWG.Wait()
	s.runsWG.Wait()
	s.log.Info("alert scheduler stopped")
}

// Running reports whether a scheduled run is executing.
func (s *Scheduler) Running() bool { return s.running.Load() }

func (s *Scheduler) loop(ctx context.Context) {
	defer s.loopWG.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts a run in the background unless one is still executing.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.TickSkipped()
		s.log.Warn("skipping scheduled evaluation, previous run still in progress")
		return
	}
	s.runsWG.Add(1)
	go func() {
		defer s.runsWG.Done()
		defer s.running.Store(false)
		_, _ = s.run(ctx)
	}()
}

// RunNow executes a scheduler-originated run synchronously under the same
// single-flight guard as ticks.
func (s *Scheduler) RunNow(ctx context.Context) (RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return RunSummary{}, ErrRunInProgress
	}
	defer s.running.Store(false)
	return s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) (summary RunSummary, err error) {
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf("scheduled evaluation panicked: %v", rec).
				Component("scheduler").
				Category(errors.CategoryGeneric).
				Build()
			s.log.Error("scheduled evaluation panicked", logger.Any("panic", rec))
			observability.CapturePanic(rec, "scheduler")
		}
	}()

	summary, err = s.engine.Evaluate(ctx, EvaluateRequest{
		CutoffDate: conf.Today(s.now(), s.cfg.Location),
		Origin:     OriginScheduled,
	})
	if err != nil {
		s.log.Error("scheduled evaluation failed",
			logger.Int("errors", summary.Errors),
			logger.Error(err))
		observability.CaptureError(err, "scheduler")
		return summary, err
	}
	s.log.Info("scheduled evaluation completed",
		logger.String("cutoff", summary.CutoffDate),
		logger.Int("rules_executed", summary.RulesExecuted),
		logger.Int("alerts_generated", summary.AlertsGenerated),
		logger.Int("errors", summary.Errors),
		logger.Bool("cancelled", summary.Cancelled))
	return summary, nil
}
