package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

// SweeperConfig holds configuration for the loan sweeper
type SweeperConfig struct {
	// Interval between sweeps (default: 1h)
	Interval time.Duration

	// DueSoonWindow is how far ahead loans are inspected (default: 3 days)
	DueSoonWindow time.Duration
}

// DefaultSweeperConfig returns sensible defaults
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:      time.Hour,
		DueSoonWindow: 3 * 24 * time.Hour,
	}
}

type (
	OpenLoanLister interface {
		ListOpenLoansDueBefore(ctx context.Context, cutoff time.Time) ([]core.Loan, error)
	}

	StatusRefresher interface {
		RefreshStatus(ctx context.Context, loanID int64) (core.Loan, error)
	}

	DueChecker interface {
		CheckLoanDue(ctx context.Context, l core.Loan) *core.Notification
	}
)

// Sweeper periodically settles the lazy OVERDUE transition for loans nobody
// has read lately and raises due-soon alerts ahead of the deadline.
type Sweeper struct {
	loans   OpenLoanLister
	ledger  StatusRefresher
	monitor DueChecker
	config  SweeperConfig
	now     func() time.Time
	logger  *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(loans OpenLoanLister, ledger StatusRefresher, monitor DueChecker, config SweeperConfig) *Sweeper {
	return &Sweeper{
		loans:   loans,
		ledger:  ledger,
		monitor: monitor,
		config:  config,
		now:     time.Now,
		logger:  log.ForComponent(log.ComponentWorker),
	}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Sweeper started",
		"interval", s.config.Interval,
		"due_soon_window", s.config.DueSoonWindow)
	return nil
}

// Stop gracefully stops the sweeper and waits for the current pass.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.InfoContext(ctx, "Sweeper stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Sweeper stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweepLogged(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepLogged(ctx)
		}
	}
}

func (s *Sweeper) sweepLogged(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Sweep failed", log.FieldError, err)
	}
}

// SweepResult counts what one pass did.
type SweepResult struct {
	Inspected int
	Overdue   int
	Alerts    int
	Errors    int
}

// Sweep runs one pass over open loans due before now + DueSoonWindow.
// Failures on single loans are logged and counted, never fatal.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	loans, err := s.loans.ListOpenLoansDueBefore(ctx, s.now().Add(s.config.DueSoonWindow))
	if err != nil {
		return res, fmt.Errorf("list open loans: %w", err)
	}

	for _, loan := range loans {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}

		res.Inspected++
		before := loan.Status
		current, err := s.ledger.RefreshStatus(ctx, loan.ID)
		if err != nil {
			res.Errors++
			s.logger.WarnContext(ctx, "Failed to refresh loan status",
				log.FieldLoanID, loan.ID, log.FieldError, err)
			continue
		}
		if before != core.StatusOverdue && current.Status == core.StatusOverdue {
			res.Overdue++
		}
		if s.monitor.CheckLoanDue(ctx, current) != nil {
			res.Alerts++
		}
	}

	if res.Inspected > 0 {
		s.logger.InfoContext(ctx, "Sweep completed",
			log.FieldOperation, log.OpSweep,
			"inspected", res.Inspected,
			"overdue", res.Overdue,
			"alerts", res.Alerts,
			"errors", res.Errors)
	} else {
		s.logger.DebugContext(ctx, "Sweep found no open loans")
	}
	return res, nil
}
