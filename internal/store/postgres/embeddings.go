package postgres

import (
	"context"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/yashv6655/journalai/internal/journal"
)

// SaveEmbedding implements [journal.Store]. It upserts the semantic vector for
// an entry.
func (s *Store) SaveEmbedding(ctx context.Context, userID, entryID string, vector []float32) error {
	const q = `
		INSERT INTO entry_embeddings (entry_id, user_id, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (entry_id) DO UPDATE SET
		    user_id   = EXCLUDED.user_id,
		    embedding = EXCLUDED.embedding`

	_, err := s.pool.Exec(ctx, q, entryID, userID, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("postgres store: save embedding: %w", err)
	}
	return nil
}

// SimilarEntries implements [journal.Store]. It finds the limit entries whose
// embeddings are closest (cosine distance) to the supplied query vector,
// ordered most similar first. Entries without an embedding row are excluded.
func (s *Store) SimilarEntries(ctx context.Context, userID string, vector []float32, limit int) ([]journal.Entry, error) {
	q := "SELECT " + qualifiedEntryColumns + `
		FROM   entry_embeddings emb
		JOIN   entries e ON e.id = emb.entry_id
		WHERE  emb.user_id = $1
		ORDER  BY emb.embedding <=> $2
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, userID, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres store: similar entries: %w", err)
	}
	return collectEntries(rows)
}

const qualifiedEntryColumns = `e.id, e.user_id, e.content, e.created_at, e.updated_at,
       e.sentiment, e.word_count, e.prompt, e.time_of_day, e.entry_type, e.transcript, e.tags`
