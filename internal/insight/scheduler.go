package insight

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// defaultSweepInterval is the default period between scheduler sweeps.
const defaultSweepInterval = time.Hour

// SummaryScheduler periodically generates weekly summaries so users get a
// reflection without asking for one. Each sweep visits every known user and
// generates a weekly summary when the newest one is older than a week.
// Users with no entries in the period are skipped.
//
// All methods are safe for concurrent use.
type SummaryScheduler struct {
	summaries *Summarizer
	interval  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
}

// SummarySchedulerConfig configures a [SummaryScheduler].
type SummarySchedulerConfig struct {
	// Summaries generates and stores the weekly summaries.
	Summaries *Summarizer

	// Interval is how often to sweep. Defaults to 1 hour if zero.
	Interval time.Duration

	// Now overrides the clock. Test use only.
	Now func() time.Time
}

// NewSummaryScheduler creates a new [SummaryScheduler] with the given
// configuration.
func NewSummaryScheduler(cfg SummarySchedulerConfig) (*SummaryScheduler, error) {
	if cfg.Summaries == nil {
		return nil, errors.New("insight: summarizer is required")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &SummaryScheduler{
		summaries: cfg.Summaries,
		interval:  interval,
		now:       now,
		done:      make(chan struct{}),
	}, nil
}

// Start begins periodic sweeps in a background goroutine. The goroutine
// runs until [SummaryScheduler.Stop] is called or ctx is cancelled.
func (s *SummaryScheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

// Stop halts the sweep loop. Safe to call multiple times.
func (s *SummaryScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
}

// SweepNow performs an immediate sweep over all users.
func (s *SummaryScheduler) SweepNow(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweep(ctx)
}

// loop runs the periodic sweep ticker.
func (s *SummaryScheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if err := s.sweep(ctx); err != nil {
				slog.Warn("weekly summary sweep failed", "error", err)
			}
			s.mu.Unlock()
		}
	}
}

// sweep generates a weekly summary for every user who is due one. Must be
// called with s.mu held.
func (s *SummaryScheduler) sweep(ctx context.Context) error {
	ids, err := s.summaries.store.ListUserIDs(ctx)
	if err != nil {
		return err
	}

	for _, userID := range ids {
		due, err := s.dueForWeekly(ctx, userID)
		if err != nil {
			slog.Warn("weekly summary check failed", "user", userID, "error", err)
			continue
		}
		if !due {
			continue
		}
		if _, err := s.summaries.Generate(ctx, userID, SummaryWeekly); err != nil {
			// A quiet week is not an error worth logging.
			if errors.Is(err, ErrNoEntries) {
				continue
			}
			slog.Warn("weekly summary generation failed", "user", userID, "error", err)
			continue
		}
		slog.Info("weekly summary generated", "user", userID)
	}
	return nil
}

// dueForWeekly reports whether the user's newest weekly summary is older
// than a week (or missing).
func (s *SummaryScheduler) dueForWeekly(ctx context.Context, userID string) (bool, error) {
	summaries, err := s.summaries.store.ListSummaries(ctx, userID)
	if err != nil {
		return false, err
	}
	cutoff := s.now().AddDate(0, 0, -7)
	for _, sum := range summaries {
		if sum.Kind == SummaryWeekly && sum.CreatedAt.After(cutoff) {
			return false, nil
		}
	}
	return true, nil
}
