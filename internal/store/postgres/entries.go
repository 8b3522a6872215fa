package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yashv6655/journalai/internal/journal"
)

const entryColumns = `id, user_id, content, created_at, updated_at,
       sentiment, word_count, prompt, time_of_day, entry_type, transcript, tags`

// SaveEntry implements [journal.Store]. It inserts the entry; metadata fields
// are stored as flat columns and the transcript as JSONB.
func (s *Store) SaveEntry(ctx context.Context, entry journal.Entry) error {
	const q = `
		INSERT INTO entries
		    (id, user_id, content, created_at, updated_at,
		     sentiment, word_count, prompt, time_of_day, entry_type, transcript, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, q,
		entry.ID,
		entry.UserID,
		entry.Content,
		entry.CreatedAt,
		entry.UpdatedAt,
		entry.Sentiment,
		entry.Metadata.WordCount,
		entry.Metadata.Prompt,
		entry.Metadata.TimeOfDay,
		entry.Metadata.EntryType,
		entry.Metadata.FullTranscript,
		entry.Tags,
	)
	if err != nil {
		return fmt.Errorf("postgres store: save entry: %w", err)
	}
	return nil
}

// Entry implements [journal.Store].
func (s *Store) Entry(ctx context.Context, userID, id string) (journal.Entry, error) {
	q := "SELECT " + entryColumns + "\nFROM entries WHERE user_id = $1 AND id = $2"

	rows, err := s.pool.Query(ctx, q, userID, id)
	if err != nil {
		return journal.Entry{}, fmt.Errorf("postgres store: get entry: %w", err)
	}
	entry, err := pgx.CollectOneRow(rows, scanEntry)
	if errors.Is(err, pgx.ErrNoRows) {
		return journal.Entry{}, journal.ErrNotFound
	}
	if err != nil {
		return journal.Entry{}, fmt.Errorf("postgres store: get entry: %w", err)
	}
	return entry, nil
}

// ListEntries implements [journal.Store]. Entries are returned newest first.
func (s *Store) ListEntries(ctx context.Context, userID string, opts journal.ListOptions) ([]journal.Entry, error) {
	q := "SELECT " + entryColumns + `
		FROM   entries
		WHERE  user_id = $1
		ORDER  BY created_at DESC, id DESC`

	args := []any{userID}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		q += fmt.Sprintf("\nOFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list entries: %w", err)
	}
	return collectEntries(rows)
}

// EntriesBetween implements [journal.Store]. The range is [from, to) and
// results are ordered oldest first.
func (s *Store) EntriesBetween(ctx context.Context, userID string, from, to time.Time) ([]journal.Entry, error) {
	q := "SELECT " + entryColumns + `
		FROM   entries
		WHERE  user_id = $1
		  AND  created_at >= $2
		  AND  created_at <  $3
		ORDER  BY created_at, id`

	rows, err := s.pool.Query(ctx, q, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres store: entries between: %w", err)
	}
	return collectEntries(rows)
}

// DeleteEntry implements [journal.Store]. The entry's embedding row is removed
// by the ON DELETE CASCADE on entry_embeddings.
func (s *Store) DeleteEntry(ctx context.Context, userID, id string) error {
	const q = `DELETE FROM entries WHERE user_id = $1 AND id = $2`

	tag, err := s.pool.Exec(ctx, q, userID, id)
	if err != nil {
		return fmt.Errorf("postgres store: delete entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return journal.ErrNotFound
	}
	return nil
}

// scanEntry scans one entries row into a journal.Entry.
func scanEntry(row pgx.CollectableRow) (journal.Entry, error) {
	var e journal.Entry
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Content,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.Sentiment,
		&e.Metadata.WordCount,
		&e.Metadata.Prompt,
		&e.Metadata.TimeOfDay,
		&e.Metadata.EntryType,
		&e.Metadata.FullTranscript,
		&e.Tags,
	); err != nil {
		return journal.Entry{}, err
	}
	return e, nil
}

// collectEntries scans pgx rows into a slice of Entry values.
func collectEntries(rows pgx.Rows) ([]journal.Entry, error) {
	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("postgres store: scan rows: %w", err)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return entries, nil
}
