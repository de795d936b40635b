// Package scheduler runs full synchronizations at startup and on a daily schedule.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"vinylsync/internal/metrics"
	"vinylsync/internal/syncer"
)

const (
	TriggerStartup = "startup"
	TriggerDaily   = "daily-cron"
	TriggerManual  = "manual"

	// DefaultCronSpec fires at midnight UTC.
	DefaultCronSpec = "0 0 * * *"
	// DefaultStartupDelay gives the process time to settle before the first run.
	DefaultStartupDelay = 5 * time.Second
)

// ErrSyncInProgress is returned when a full sync is requested while one is running.
// It is the same sentinel the reconciler returns for a busy list.
var ErrSyncInProgress = syncer.ErrSyncInProgress

// FullSyncer reconciles every scheduled list for a user.
type FullSyncer interface {
	ReconcileAll(ctx context.Context, userID string) (*syncer.AllResult, error)
}

// Config controls when full syncs run.
type Config struct {
	UserID        string
	SyncOnStartup bool
	StartupDelay  time.Duration
	DailyEnabled  bool
	CronSpec      string
}

// Report describes one full sync run.
type Report struct {
	Success         bool           `json:"success"`
	Trigger         string         `json:"trigger"`
	StartedAt       time.Time      `json:"startedAt"`
	DurationMinutes float64        `json:"duration"`
	Collection      *syncer.Result `json:"collection,omitempty"`
	Wantlist        *syncer.Result `json:"wantlist,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Scheduler owns the startup timer and the daily cron entry.
type Scheduler struct {
	cfg    Config
	syncer FullSyncer
	logger zerolog.Logger
	cron   *cron.Cron
	now    func() time.Time

	running atomic.Bool

	mu   sync.Mutex
	last *Report

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Scheduler. Nothing runs until Start is called.
func New(cfg Config, s FullSyncer, logger zerolog.Logger) *Scheduler {
	if cfg.CronSpec == "" {
		cfg.CronSpec = DefaultCronSpec
	}
	logger = logger.With().Str("component", "scheduler").Logger()

	return &Scheduler{
		cfg:    cfg,
		syncer: s,
		logger: logger,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&logger))),
		),
		now: time.Now,
	}
}

// Start registers the daily job and, if enabled, schedules the startup run. Runs
// are bound to ctx and to Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.cfg.DailyEnabled {
		if _, err := s.cron.AddFunc(s.cfg.CronSpec, func() {
			s.logger.Info().Msg("daily sync triggered")
			_, _ = s.PerformFullSync(runCtx, TriggerDaily)
		}); err != nil {
			cancel()
			return fmt.Errorf("schedule daily sync %q: %w", s.cfg.CronSpec, err)
		}
		s.cron.Start()
		s.logger.Info().Str("spec", s.cfg.CronSpec).Msg("daily sync scheduled (UTC)")
	} else {
		s.logger.Info().Msg("daily sync disabled via CRON_SYNC_ENABLED=false")
	}

	if !s.cfg.SyncOnStartup {
		s.logger.Info().Msg("startup sync disabled via SYNC_ON_STARTUP=false")
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.cfg.StartupDelay > 0 {
			t := time.NewTimer(s.cfg.StartupDelay)
			defer t.Stop()
			select {
			case <-runCtx.Done():
				return
			case <-t.C:
			}
		}
		s.logger.Info().Msg("beginning initial sync")
		_, _ = s.PerformFullSync(runCtx, TriggerStartup)
	}()
	return nil
}

// Stop halts the cron, cancels in-flight runs and waits for them to return or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop()
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PerformFullSync reconciles collection and wantlist once. Failures are logged and
// reported, never panicked; a concurrent call returns ErrSyncInProgress.
func (s *Scheduler) PerformFullSync(ctx context.Context, trigger string) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn().Str("trigger", trigger).Msg("sync skipped, another run is in progress")
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)
	metrics.SyncInProgress.Set(1)
	defer metrics.SyncInProgress.Set(0)

	start := s.now()
	s.logger.Info().Str("trigger", trigger).Msg("starting full sync")

	result, err := s.syncer.ReconcileAll(ctx, s.cfg.UserID)
	elapsed := s.now().Sub(start)
	metrics.RecordSyncRun(trigger, elapsed, err)

	report := &Report{
		Success:         err == nil,
		Trigger:         trigger,
		StartedAt:       start.UTC(),
		DurationMinutes: math.Round(elapsed.Minutes()*100) / 100,
	}
	if result != nil {
		report.Collection = result.Collection
		report.Wantlist = result.Wantlist
	}

	if err != nil {
		report.Error = err.Error()
		s.logger.Error().Err(err).Str("trigger", trigger).Float64("duration_minutes", report.DurationMinutes).Msg("sync failed")
	} else if report.Collection != nil && report.Wantlist != nil {
		s.logger.Info().Str("trigger", trigger).Float64("duration_minutes", report.DurationMinutes).
			Msgf("sync completed: collection %d/%d, wantlist %d/%d",
				report.Collection.Synced, report.Collection.Total, report.Wantlist.Synced, report.Wantlist.Total)
		if report.Collection.Errors > 0 || report.Wantlist.Errors > 0 {
			s.logger.Warn().Int("collection_errors", report.Collection.Errors).Int("wantlist_errors", report.Wantlist.Errors).
				Msg("sync completed with errors")
		}
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	return report, err
}

// LastRun returns the most recent report, or nil before the first run finishes.
func (s *Scheduler) LastRun() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	cp := *s.last
	return &cp
}

// Running reports whether a full sync is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}
