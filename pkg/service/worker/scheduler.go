package worker

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"

	"github.com/minato-lab/leavesync/pkg/domain/types"
	"github.com/minato-lab/leavesync/pkg/usecase"
	"github.com/minato-lab/leavesync/pkg/utils/errutil"
	"github.com/minato-lab/leavesync/pkg/utils/logging"
)

// DefaultCronSpec is the default cadence of both schedulers
const DefaultCronSpec = "*/5 * * * *"

// initialSyncDelay lets the process settle before the first poll
const initialSyncDelay = 5 * time.Second

// Scheduler drives the incremental poller and the status checker on
// independent cron schedules.
//
// Architecture assumptions:
// - Single server instance (the sync lock is process-wide, not distributed)
type Scheduler struct {
	uc *usecase.UseCase

	syncSpec  string
	checkSpec string

	mu         sync.Mutex
	cron       *cron.Cron
	syncEntry  cron.EntryID
	checkEntry cron.EntryID
	firstSync  *time.Timer
	started    bool
}

// SchedulerOption is a functional option for Scheduler configuration
type SchedulerOption func(*Scheduler)

// WithSyncSpec sets the cron expression of the incremental poller
func WithSyncSpec(spec string) SchedulerOption {
	return func(s *Scheduler) { s.syncSpec = spec }
}

// WithCheckSpec sets the cron expression of the status checker
func WithCheckSpec(spec string) SchedulerOption {
	return func(s *Scheduler) { s.checkSpec = spec }
}

// NewScheduler creates the scheduler; cron expressions are validated on Start
func NewScheduler(uc *usecase.UseCase, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		uc:        uc,
		syncSpec:  DefaultCronSpec,
		checkSpec: DefaultCronSpec,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the enabled jobs and starts the cron runner. The first
// incremental cycle runs after a short settle delay.
func (s *Scheduler) Start(ctx context.Context, syncEnabled, checkEnabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return goerr.New("scheduler already started")
	}

	s.cron = cron.New()

	if syncEnabled {
		if err := s.addSyncLocked(ctx); err != nil {
			return err
		}
		s.firstSync = time.AfterFunc(initialSyncDelay, func() {
			s.runSync(ctx)
		})
	}
	if checkEnabled {
		if err := s.addCheckLocked(ctx); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.started = true
	logging.Default().Info("schedulers started",
		"sync_enabled", syncEnabled, "sync_spec", s.syncSpec,
		"check_enabled", checkEnabled, "check_spec", s.checkSpec)
	return nil
}

// Stop halts the cron runner and waits for an in-flight job to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.firstSync != nil {
		s.firstSync.Stop()
	}
	// cron.Stop returns a context that is done once running jobs complete
	<-s.cron.Stop().Done()
	s.started = false
	logging.Default().Info("schedulers stopped")
}

// StartSync enables the incremental poller at runtime
func (s *Scheduler) StartSync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return goerr.New("scheduler not running")
	}
	if s.syncEntry != 0 {
		return goerr.New("incremental poller already scheduled")
	}
	return s.addSyncLocked(ctx)
}

// StopSync disables the incremental poller at runtime
func (s *Scheduler) StopSync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncEntry != 0 {
		s.cron.Remove(s.syncEntry)
		s.syncEntry = 0
	}
}

// StartCheck enables the status checker at runtime
func (s *Scheduler) StartCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return goerr.New("scheduler not running")
	}
	if s.checkEntry != 0 {
		return goerr.New("status checker already scheduled")
	}
	return s.addCheckLocked(ctx)
}

// StopCheck disables the status checker at runtime
func (s *Scheduler) StopCheck() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkEntry != 0 {
		s.cron.Remove(s.checkEntry)
		s.checkEntry = 0
	}
}

// SyncScheduled reports whether the incremental poller is scheduled
func (s *Scheduler) SyncScheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncEntry != 0
}

// CheckScheduled reports whether the status checker is scheduled
func (s *Scheduler) CheckScheduled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkEntry != 0
}

func (s *Scheduler) addSyncLocked(ctx context.Context) error {
	entry, err := s.cron.AddFunc(s.syncSpec, func() { s.runSync(ctx) })
	if err != nil {
		return goerr.Wrap(err, "invalid sync cron expression", goerr.V("spec", s.syncSpec))
	}
	s.syncEntry = entry
	return nil
}

func (s *Scheduler) addCheckLocked(ctx context.Context) error {
	entry, err := s.cron.AddFunc(s.checkSpec, func() { s.runCheck(ctx) })
	if err != nil {
		return goerr.Wrap(err, "invalid check cron expression", goerr.V("spec", s.checkSpec))
	}
	s.checkEntry = entry
	return nil
}

func (s *Scheduler) runSync(ctx context.Context) {
	if _, err := s.uc.RunIncremental(ctx); err != nil {
		if isLockBusy(err) {
			logging.From(ctx).Info("sync in progress, skipping incremental cycle")
			return
		}
		_ = errutil.Handle(ctx, err, "incremental cycle failed (will retry next tick)")
	}
}

func (s *Scheduler) runCheck(ctx context.Context) {
	if _, err := s.uc.RunStatusCheck(ctx); err != nil {
		if isLockBusy(err) {
			logging.From(ctx).Info("sync in progress, skipping status check")
			return
		}
		_ = errutil.Handle(ctx, err, "status check failed (will retry next tick)")
	}
}

func isLockBusy(err error) bool {
	return goerr.HasTag(err, types.ErrTagLockBusy)
}
