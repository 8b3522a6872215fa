package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yashv6655/journalai/internal/journal"
)

// SaveSummary implements [journal.Store].
func (s *Store) SaveSummary(ctx context.Context, summary journal.Summary) error {
	const q = `
		INSERT INTO summaries
		    (id, user_id, kind, period_start, period_end, content, insights, entries_analyzed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, q,
		summary.ID,
		summary.UserID,
		summary.Kind,
		summary.PeriodStart,
		summary.PeriodEnd,
		summary.Content,
		summary.Insights,
		summary.EntriesAnalyzed,
		summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save summary: %w", err)
	}
	return nil
}

// ListSummaries implements [journal.Store]. Summaries are returned newest
// first.
func (s *Store) ListSummaries(ctx context.Context, userID string) ([]journal.Summary, error) {
	const q = `
		SELECT id, user_id, kind, period_start, period_end, content, insights, entries_analyzed, created_at
		FROM   summaries
		WHERE  user_id = $1
		ORDER  BY created_at DESC, id DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list summaries: %w", err)
	}
	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.Summary, error) {
		var sum journal.Summary
		if err := row.Scan(
			&sum.ID,
			&sum.UserID,
			&sum.Kind,
			&sum.PeriodStart,
			&sum.PeriodEnd,
			&sum.Content,
			&sum.Insights,
			&sum.EntriesAnalyzed,
			&sum.CreatedAt,
		); err != nil {
			return journal.Summary{}, err
		}
		return sum, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan summaries: %w", err)
	}
	if summaries == nil {
		summaries = []journal.Summary{}
	}
	return summaries, nil
}

// Analysis implements [journal.Store].
func (s *Store) Analysis(ctx context.Context, userID, kind string) (journal.Analysis, error) {
	const q = `
		SELECT user_id, kind, payload, created_at
		FROM   analyses
		WHERE  user_id = $1 AND kind = $2`

	var a journal.Analysis
	err := s.pool.QueryRow(ctx, q, userID, kind).Scan(
		&a.UserID,
		&a.Kind,
		&a.Payload,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return journal.Analysis{}, journal.ErrNotFound
	}
	if err != nil {
		return journal.Analysis{}, fmt.Errorf("postgres store: get analysis: %w", err)
	}
	return a, nil
}

// SaveAnalysis implements [journal.Store]. It upserts the cache row for the
// analysis kind.
func (s *Store) SaveAnalysis(ctx context.Context, analysis journal.Analysis) error {
	const q = `
		INSERT INTO analyses (user_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, kind) DO UPDATE SET
		    payload    = EXCLUDED.payload,
		    created_at = EXCLUDED.created_at`

	_, err := s.pool.Exec(ctx, q,
		analysis.UserID,
		analysis.Kind,
		analysis.Payload,
		analysis.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save analysis: %w", err)
	}
	return nil
}

// DeleteAnalyses implements [journal.Store]. It drops every cached analysis
// for the user; missing rows are not an error.
func (s *Store) DeleteAnalyses(ctx context.Context, userID string) error {
	const q = `DELETE FROM analyses WHERE user_id = $1`

	if _, err := s.pool.Exec(ctx, q, userID); err != nil {
		return fmt.Errorf("postgres store: delete analyses: %w", err)
	}
	return nil
}
