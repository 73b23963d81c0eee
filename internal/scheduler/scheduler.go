package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"VolumeSentinel/internal/report"
)

// Jobs is what the scheduler triggers.
type Jobs interface {
	Screen(ctx context.Context) (*report.Screen, error)
	Backtest(ctx context.Context, refresh bool) (*report.Backtest, error)
}

// Scheduler manages all cron tasks. Runs never overlap: a trigger that fires
// while another run is active is dropped.
type Scheduler struct {
	Cron *cron.Cron
	Jobs Jobs
	Log  *zap.Logger
	Ctx  context.Context

	running sync.Mutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, jobs Jobs, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Jobs: jobs,
		Log:  log,
		Ctx:  ctx,
	}
}

// RegisterAll registers the daily screen and the periodic backtest.
// An empty backtest expression disables the backtest job.
func (s *Scheduler) RegisterAll(screenCron, backtestCron string) error {
	if _, err := s.Cron.AddFunc(screenCron, s.screenTask); err != nil {
		return fmt.Errorf("register screen task: %w", err)
	}
	if backtestCron == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(backtestCron, s.backtestTask); err != nil {
		return fmt.Errorf("register backtest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Log.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Log.Info("scheduler stopped")
}

// RunScreenNow executes the screen task immediately (for RUN_ON_START).
func (s *Scheduler) RunScreenNow() {
	s.screenTask()
}

func (s *Scheduler) screenTask() {
	if !s.running.TryLock() {
		s.Log.Warn("screen skipped, previous run still active")
		return
	}
	defer s.running.Unlock()

	s.Log.Info("running screen task")
	if _, err := s.Jobs.Screen(s.Ctx); err != nil {
		s.Log.Error("screen task", zap.Error(err))
	}
}

func (s *Scheduler) backtestTask() {
	if !s.running.TryLock() {
		s.Log.Warn("backtest skipped, previous run still active")
		return
	}
	defer s.running.Unlock()

	s.Log.Info("running backtest task")
	if _, err := s.Jobs.Backtest(s.Ctx, true); err != nil {
		s.Log.Error("backtest task", zap.Error(err))
	}
}
