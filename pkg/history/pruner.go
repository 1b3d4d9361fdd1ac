package history

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// PruneConfig configures chat retention.
type PruneConfig struct {
	// RetentionDays deletes chats not updated for this many days.
	// 0 keeps chats forever.
	RetentionDays int

	// Schedule is a standard cron expression, e.g. "0 3 * * *".
	// Empty disables scheduled pruning.
	Schedule string
}

// PruneScheduler deletes stale chats on a cron schedule.
type PruneScheduler struct {
	store  Store
	config PruneConfig
	clock  clockwork.Clock
	logger *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruneScheduler creates a scheduler over store. A nil clock uses the
// real clock.
func NewPruneScheduler(store Store, cfg PruneConfig, clock clockwork.Clock) *PruneScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PruneScheduler{
		store:  store,
		config: cfg,
		clock:  clock,
		cron:   cron.New(),
		logger: slog.Default().With("component", "history.retention"),
	}
}

// Prune deletes chats whose last activity is older than the retention
// period and returns how many were removed.
func (s *PruneScheduler) Prune(ctx context.Context) (int64, error) {
	if s.config.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-time.Duration(s.config.RetentionDays) * 24 * time.Hour)
	return s.store.PruneBefore(ctx, cutoff)
}

// Start schedules Prune. It stops when ctx is cancelled or Stop is called.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
func (s *PruneScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" || s.config.RetentionDays <= 0 {
		s.logger.Info("chat retention disabled, skipping scheduler")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}
	if _, err := s.cron.AddFunc(s.config.Schedule, func() { s.run(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("chat retention scheduler started",
		"schedule", s.config.Schedule,
		"retention_days", s.config.RetentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *PruneScheduler) run(ctx context.Context) {
	deleted, err := s.Prune(ctx)
	if err != nil {
		s.logger.Error("scheduled pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("scheduled pruning completed", "deleted_count", deleted)
	} else {
		s.logger.Debug("scheduled pruning completed, no chats deleted")
	}
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *PruneScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("chat retention scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *PruneScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled prune, or nil when not scheduled.
func (s *PruneScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
