package journal

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("journal: not found")

// ErrInvalidInput is returned for requests that fail validation, such as an
// empty entry body or an unknown stats period.
var ErrInvalidInput = errors.New("journal: invalid input")

// Store persists journal state. internal/journal/memstore provides an
// in-memory implementation; internal/store/postgres a durable one.
//
// All implementations must be safe for concurrent use. Every operation is
// scoped to a user ID; implementations must never return another user's rows.
type Store interface {
	// SaveEntry inserts the entry. The entry's ID must be set.
	SaveEntry(ctx context.Context, entry Entry) error

	// Entry retrieves one entry.
	// Returns [ErrNotFound] when no such entry exists for the user.
	Entry(ctx context.Context, userID, id string) (Entry, error)

	// ListEntries returns the user's entries ordered newest first.
	ListEntries(ctx context.Context, userID string, opts ListOptions) ([]Entry, error)

	// EntriesBetween returns entries with CreatedAt in [from, to), oldest
	// first.
	EntriesBetween(ctx context.Context, userID string, from, to time.Time) ([]Entry, error)

	// DeleteEntry removes one entry and its embedding.
	// Returns [ErrNotFound] when no such entry exists for the user.
	DeleteEntry(ctx context.Context, userID, id string) error

	// User retrieves per-user state.
	// Returns [ErrNotFound] for unknown users.
	User(ctx context.Context, userID string) (User, error)

	// SaveUser inserts or replaces per-user state.
	SaveUser(ctx context.Context, user User) error

	// ListUserIDs returns the IDs of all known users. The background
	// summary sweep uses this to visit every user.
	ListUserIDs(ctx context.Context) ([]string, error)

	// DailyPrompt retrieves the prompt for the given UTC calendar day.
	// Returns [ErrNotFound] when none has been generated yet.
	DailyPrompt(ctx context.Context, userID string, day time.Time) (DailyPrompt, error)

	// SaveDailyPrompt inserts or replaces the prompt for its day.
	SaveDailyPrompt(ctx context.Context, prompt DailyPrompt) error

	// SaveSummary stores a generated summary.
	SaveSummary(ctx context.Context, summary Summary) error

	// ListSummaries returns the user's summaries, newest first.
	ListSummaries(ctx context.Context, userID string) ([]Summary, error)

	// Analysis retrieves a cached analysis by kind.
	// Returns [ErrNotFound] when the cache is cold or was invalidated.
	Analysis(ctx context.Context, userID, kind string) (Analysis, error)

	// SaveAnalysis inserts or replaces a cached analysis.
	SaveAnalysis(ctx context.Context, analysis Analysis) error

	// DeleteAnalyses drops all cached analyses for the user. Entry writes
	// call this so stale themes/topics/correlations are regenerated on the
	// next read.
	DeleteAnalyses(ctx context.Context, userID string) error

	// SaveEmbedding stores the semantic vector for an entry.
	SaveEmbedding(ctx context.Context, userID, entryID string, vector []float32) error

	// SimilarEntries returns up to limit entries closest to the query
	// vector, best match first. Entries without embeddings are excluded.
	SimilarEntries(ctx context.Context, userID string, vector []float32, limit int) ([]Entry, error)
}

// ListOptions pages [Store.ListEntries].
type ListOptions struct {
	// Limit caps the number of entries returned. Zero means no cap.
	Limit int

	// Offset skips that many entries from the newest end.
	Offset int
}
