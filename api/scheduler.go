/*
scheduler.go - Automated leave scheduler

PURPOSE:
  Periodically runs the yearly leave batches so nobody has to trigger them
  by hand: the accrual that creates each year's balances, and the reset
  that expires carried-over days on the configured reset date.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Accrual runs at most once per local day; it skips existing balances
    so a rerun after a restart only creates what is missing
  - The transferred reset runs once per year, on the first check on or
    after the reset date; zeroing an already-zero counter is a no-op

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewLeaveScheduler(handler.Accrual, handler.Reset, cfg, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: Accrue and ResetTransferred endpoints (manual runs)
  - timeoff/accrual.go: Accrual and TransferReset
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/attendance-ledger/generic"
	"github.com/warp/attendance-ledger/logger"
	"github.com/warp/attendance-ledger/timeoff"
)

// AccrualRunner creates a year's balances. *timeoff.Accrual implements it.
type AccrualRunner interface {
	Run(ctx context.Context, asOf generic.Date) (*timeoff.AccrualReport, error)
}

// ResetRunner expires a year's transferred days. *timeoff.TransferReset
// implements it.
type ResetRunner interface {
	Run(ctx context.Context, year int) (*timeoff.ResetReport, error)
}

// LeaveScheduler handles automated accrual and transferred resets.
type LeaveScheduler struct {
	Accrual       AccrualRunner
	Reset         ResetRunner
	Location      *time.Location
	ResetMonth    time.Month
	ResetDay      int
	CheckInterval time.Duration
	Enabled       bool
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	Log *logger.Logger

	lastAccrual generic.Date
	lastReset   int

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	runMu  sync.Mutex
}

// NewLeaveScheduler creates a scheduler with a one-hour interval and the
// July 1 reset date.
func NewLeaveScheduler(accrual AccrualRunner, reset ResetRunner, loc *time.Location, log *logger.Logger) *LeaveScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &LeaveScheduler{
		Accrual:       accrual,
		Reset:         reset,
		Location:      loc,
		ResetMonth:    time.July,
		ResetDay:      1,
		CheckInterval: time.Hour,
		Enabled:       true,
		Now:           time.Now,
		Log:           log,
	}
}

// Start begins the scheduler.
func (s *LeaveScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.OrNop(s.Log).WithComponent("scheduler")
	if !s.Enabled {
		log.Info().Msg("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run()

	log.Info().Dur("check_interval", s.CheckInterval).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running check to finish.
func (s *LeaveScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		logger.OrNop(s.Log).WithComponent("scheduler").Info().Msg("scheduler stopped")
	}
}

func (s *LeaveScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.RunNow(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunNow performs one check: accrual if it has not run today, then the
// transferred reset if the reset date has passed and it has not run this
// year.
func (s *LeaveScheduler) RunNow(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	log := logger.OrNop(s.Log).WithComponent("scheduler")
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	today := generic.DateOf(now().In(loc))

	if s.Accrual != nil && s.lastAccrual != today {
		report, err := s.Accrual.Run(ctx, today)
		if err != nil && (report == nil || report.Failed == 0) {
			log.Error().Err(err).Msg("scheduled accrual failed")
		} else {
			// Per-employee failures are audited by the run; the next
			// day's run retries them.
			s.lastAccrual = today
		}
	}

	if s.Reset != nil && s.lastReset != today.Year && !today.Before(s.resetDate(today.Year)) {
		report, err := s.Reset.Run(ctx, today.Year)
		if err != nil && (report == nil || report.Failed == 0) {
			log.Error().Err(err).Int("year", today.Year).Msg("scheduled transfer reset failed")
		} else {
			s.lastReset = today.Year
		}
	}
}

func (s *LeaveScheduler) resetDate(year int) generic.Date {
	month, day := s.ResetMonth, s.ResetDay
	if month == 0 {
		month, day = time.July, 1
	}
	return generic.NewDate(year, month, day)
}

// NextRunTime returns when the next scheduled check will occur.
func (s *LeaveScheduler) NextRunTime() time.Time {
	if s.Now != nil {
		return s.Now().Add(s.CheckInterval)
	}
	return time.Now().Add(s.CheckInterval)
}
