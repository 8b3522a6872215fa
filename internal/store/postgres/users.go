package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yashv6655/journalai/internal/journal"
)

// User implements [journal.Store].
func (s *Store) User(ctx context.Context, userID string) (journal.User, error) {
	const q = `
		SELECT id, created_at, goals, total_entries, current_streak, longest_streak, last_entry_at
		FROM   users
		WHERE  id = $1`

	var (
		u           journal.User
		lastEntryAt *time.Time
	)
	err := s.pool.QueryRow(ctx, q, userID).Scan(
		&u.ID,
		&u.CreatedAt,
		&u.Goals,
		&u.TotalEntries,
		&u.CurrentStreak,
		&u.LongestStreak,
		&lastEntryAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return journal.User{}, journal.ErrNotFound
	}
	if err != nil {
		return journal.User{}, fmt.Errorf("postgres store: get user: %w", err)
	}
	if lastEntryAt != nil {
		u.LastEntryAt = *lastEntryAt
	}
	return u, nil
}

// SaveUser implements [journal.Store]. It upserts the full per-user state.
func (s *Store) SaveUser(ctx context.Context, user journal.User) error {
	const q = `
		INSERT INTO users
		    (id, created_at, goals, total_entries, current_streak, longest_streak, last_entry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    goals          = EXCLUDED.goals,
		    total_entries  = EXCLUDED.total_entries,
		    current_streak = EXCLUDED.current_streak,
		    longest_streak = EXCLUDED.longest_streak,
		    last_entry_at  = EXCLUDED.last_entry_at`

	_, err := s.pool.Exec(ctx, q,
		user.ID,
		user.CreatedAt,
		user.Goals,
		user.TotalEntries,
		user.CurrentStreak,
		user.LongestStreak,
		nullTime(user.LastEntryAt),
	)
	if err != nil {
		return fmt.Errorf("postgres store: save user: %w", err)
	}
	return nil
}

// ListUserIDs implements [journal.Store].
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list user ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: list user ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// DailyPrompt implements [journal.Store]. Prompts are keyed by UTC calendar
// day.
func (s *Store) DailyPrompt(ctx context.Context, userID string, day time.Time) (journal.DailyPrompt, error) {
	const q = `
		SELECT user_id, day, prompt, answered, answered_at, created_at
		FROM   daily_prompts
		WHERE  user_id = $1 AND day = $2`

	var (
		p          journal.DailyPrompt
		answeredAt *time.Time
	)
	err := s.pool.QueryRow(ctx, q, userID, utcDay(day)).Scan(
		&p.UserID,
		&p.Day,
		&p.Prompt,
		&p.Answered,
		&answeredAt,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return journal.DailyPrompt{}, journal.ErrNotFound
	}
	if err != nil {
		return journal.DailyPrompt{}, fmt.Errorf("postgres store: get daily prompt: %w", err)
	}
	if answeredAt != nil {
		p.AnsweredAt = *answeredAt
	}
	return p, nil
}

// SaveDailyPrompt implements [journal.Store]. It upserts the prompt for its
// day.
func (s *Store) SaveDailyPrompt(ctx context.Context, prompt journal.DailyPrompt) error {
	const q = `
		INSERT INTO daily_prompts
		    (user_id, day, prompt, answered, answered_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, day) DO UPDATE SET
		    prompt      = EXCLUDED.prompt,
		    answered    = EXCLUDED.answered,
		    answered_at = EXCLUDED.answered_at,
		    created_at  = EXCLUDED.created_at`

	_, err := s.pool.Exec(ctx, q,
		prompt.UserID,
		utcDay(prompt.Day),
		prompt.Prompt,
		prompt.Answered,
		nullTime(prompt.AnsweredAt),
		prompt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save daily prompt: %w", err)
	}
	return nil
}

// utcDay truncates t to its UTC calendar day so the DATE column resolves the
// same row for any time on that day.
func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// nullTime maps the zero time to SQL NULL.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
