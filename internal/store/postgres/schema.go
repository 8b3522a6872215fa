// Package postgres provides the durable PostgreSQL implementation of
// [journal.Store]. Journal entries, per-user state, daily prompts, summaries
// and cached analyses live in relational tables; entry embeddings live in a
// pgvector column so similar-entry lookups run as cosine-distance queries.
//
// All tables share a single [pgxpool.Pool] connection pool. The pgvector
// extension must be available in the target database; [Migrate] installs it
// automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.SaveEntry(ctx, entry)
//	similar, _ := store.SimilarEntries(ctx, userID, vec, 5)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — users and entries
// ─────────────────────────────────────────────────────────────────────────────

const ddlUsers = `
CREATE TABLE IF NOT EXISTS users (
    id             TEXT         PRIMARY KEY,
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now(),
    goals          JSONB        NOT NULL DEFAULT '[]',
    total_entries  INTEGER      NOT NULL DEFAULT 0,
    current_streak INTEGER      NOT NULL DEFAULT 0,
    longest_streak INTEGER      NOT NULL DEFAULT 0,
    last_entry_at  TIMESTAMPTZ
);
`

const ddlEntries = `
CREATE TABLE IF NOT EXISTS entries (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    content     TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    sentiment   JSONB,
    word_count  INTEGER      NOT NULL DEFAULT 0,
    prompt      TEXT         NOT NULL DEFAULT '',
    time_of_day TEXT         NOT NULL DEFAULT '',
    entry_type  TEXT         NOT NULL DEFAULT 'text',
    transcript  JSONB,
    tags        JSONB
);

CREATE INDEX IF NOT EXISTS idx_entries_user_created
    ON entries (user_id, created_at DESC);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — derived artifacts (prompts, summaries, analyses)
// ─────────────────────────────────────────────────────────────────────────────

const ddlDerived = `
CREATE TABLE IF NOT EXISTS daily_prompts (
    user_id     TEXT         NOT NULL,
    day         DATE         NOT NULL,
    prompt      TEXT         NOT NULL,
    answered    BOOLEAN      NOT NULL DEFAULT FALSE,
    answered_at TIMESTAMPTZ,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, day)
);

CREATE TABLE IF NOT EXISTS summaries (
    id               TEXT         PRIMARY KEY,
    user_id          TEXT         NOT NULL,
    kind             TEXT         NOT NULL,
    period_start     TIMESTAMPTZ  NOT NULL,
    period_end       TIMESTAMPTZ  NOT NULL,
    content          TEXT         NOT NULL,
    insights         JSONB        NOT NULL DEFAULT '[]',
    entries_analyzed INTEGER      NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_summaries_user_created
    ON summaries (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS analyses (
    user_id    TEXT         NOT NULL,
    kind       TEXT         NOT NULL,
    payload    JSONB        NOT NULL,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, kind)
);
`

// ddlEmbeddings returns the embeddings DDL with the vector dimension
// substituted. The dimension is baked into the column type at schema creation
// time.
func ddlEmbeddings(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS entry_embeddings (
    entry_id  TEXT       PRIMARY KEY REFERENCES entries (id) ON DELETE CASCADE,
    user_id   TEXT       NOT NULL,
    embedding vector(%d) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entry_embeddings_user
    ON entry_embeddings (user_id);

CREATE INDEX IF NOT EXISTS idx_entry_embeddings_vec
    ON entry_embeddings USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS)
// and safe to call on every application start.
//
// embeddingDimensions must match the output dimension of the configured
// embedding model (e.g., 1536 for OpenAI text-embedding-3-small, 768 for
// nomic-embed-text). Changing this value after the first migration requires a
// manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlUsers,
		ddlEntries,
		ddlDerived,
		ddlEmbeddings(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
