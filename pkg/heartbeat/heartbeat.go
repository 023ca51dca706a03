// Package heartbeat runs a periodic maintenance job on a cron schedule.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ryanlack616/howell-brain/pkg/logger"
)

// Func is one heartbeat run. A returned error is logged and the schedule
// continues.
type Func func(ctx context.Context) error

// Scheduler runs a Func every interval until stopped.
type Scheduler struct {
	cron     *cron.Cron
	fn       Func
	interval time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	runs     int
	failures int
	last     time.Time
	lastErr  error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for run results.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New builds a Scheduler. Nothing runs until Start.
func New(interval time.Duration, fn Func, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("heartbeat interval must be positive, got %s", interval)
	}
	if fn == nil {
		return nil, errors.New("heartbeat func is nil")
	}

	s := &Scheduler{
		fn:       fn,
		interval: interval,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "heartbeat")

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.cron.Schedule(every(interval), cron.FuncJob(s.run))

	return s, nil
}

// Start begins the schedule. The first run happens one interval from now.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.logger.Info("heartbeat scheduled", "interval", s.interval.String())
}

// Stop halts the schedule, cancels a run in progress and waits for it.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
}

// Status reports run counters.
type Status struct {
	Runs     int       `json:"runs"`
	Failures int       `json:"failures"`
	LastRun  time.Time `json:"last_run,omitzero"`
	LastErr  string    `json:"last_error,omitempty"`
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Runs: s.runs, Failures: s.failures, LastRun: s.last}
	if s.lastErr != nil {
		st.LastErr = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) run() {
	start := time.Now()
	err := s.fn(s.ctx)

	s.mu.Lock()
	s.runs++
	s.last = start
	s.lastErr = err
	if err != nil {
		s.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("heartbeat failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("heartbeat complete", "duration", time.Since(start))
}

// every is a fixed-delay schedule without the one second floor of
// cron.Every.
type every time.Duration

func (e every) Next(t time.Time) time.Time {
	return t.Add(time.Duration(e))
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
