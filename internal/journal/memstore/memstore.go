// Package memstore provides a thread-safe, in-memory implementation of
// [journal.Store]. It backs tests and deployments without Postgres; data is
// lost on restart.
package memstore

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/yashv6655/journalai/internal/journal"
)

// Compile-time assertion that Store satisfies journal.Store.
var _ journal.Store = (*Store)(nil)

// Store is an in-memory [journal.Store].
type Store struct {
	mu         sync.RWMutex
	entries    map[string][]journal.Entry // userID -> newest first
	users      map[string]journal.User
	prompts    map[string]journal.DailyPrompt // userID+day
	summaries  map[string][]journal.Summary
	analyses   map[string]journal.Analysis // userID+kind
	embeddings map[string][]float32        // userID+entryID
}

// New returns an initialised [Store].
func New() *Store {
	return &Store{
		entries:    make(map[string][]journal.Entry),
		users:      make(map[string]journal.User),
		prompts:    make(map[string]journal.DailyPrompt),
		summaries:  make(map[string][]journal.Summary),
		analyses:   make(map[string]journal.Analysis),
		embeddings: make(map[string][]float32),
	}
}

// SaveEntry implements [journal.Store.SaveEntry].
func (s *Store) SaveEntry(ctx context.Context, entry journal.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[entry.UserID]
	list = append(list, entry)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	s.entries[entry.UserID] = list
	return nil
}

// Entry implements [journal.Store.Entry].
func (s *Store) Entry(ctx context.Context, userID, id string) (journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries[userID] {
		if e.ID == id {
			return e, nil
		}
	}
	return journal.Entry{}, journal.ErrNotFound
}

// ListEntries implements [journal.Store.ListEntries].
func (s *Store) ListEntries(ctx context.Context, userID string, opts journal.ListOptions) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.entries[userID]
	if opts.Offset >= len(list) {
		return nil, nil
	}
	list = list[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(list) {
		list = list[:opts.Limit]
	}
	out := make([]journal.Entry, len(list))
	copy(out, list)
	return out, nil
}

// EntriesBetween implements [journal.Store.EntriesBetween].
func (s *Store) EntriesBetween(ctx context.Context, userID string, from, to time.Time) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []journal.Entry
	for _, e := range s.entries[userID] {
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	// Stored newest first; callers want oldest first.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteEntry implements [journal.Store.DeleteEntry].
func (s *Store) DeleteEntry(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.entries[userID]
	for i, e := range list {
		if e.ID == id {
			s.entries[userID] = append(list[:i:i], list[i+1:]...)
			delete(s.embeddings, userID+"/"+id)
			return nil
		}
	}
	return journal.ErrNotFound
}

// User implements [journal.Store.User].
func (s *Store) User(ctx context.Context, userID string) (journal.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return journal.User{}, journal.ErrNotFound
	}
	return u, nil
}

// SaveUser implements [journal.Store.SaveUser].
func (s *Store) SaveUser(ctx context.Context, user journal.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[user.ID] = user
	return nil
}

// ListUserIDs implements [journal.Store.ListUserIDs].
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DailyPrompt implements [journal.Store.DailyPrompt].
func (s *Store) DailyPrompt(ctx context.Context, userID string, day time.Time) (journal.DailyPrompt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prompts[promptKey(userID, day)]
	if !ok {
		return journal.DailyPrompt{}, journal.ErrNotFound
	}
	return p, nil
}

// SaveDailyPrompt implements [journal.Store.SaveDailyPrompt].
func (s *Store) SaveDailyPrompt(ctx context.Context, prompt journal.DailyPrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts[promptKey(prompt.UserID, prompt.Day)] = prompt
	return nil
}

// SaveSummary implements [journal.Store.SaveSummary].
func (s *Store) SaveSummary(ctx context.Context, summary journal.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append(s.summaries[summary.UserID], summary)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	s.summaries[summary.UserID] = list
	return nil
}

// ListSummaries implements [journal.Store.ListSummaries].
func (s *Store) ListSummaries(ctx context.Context, userID string) ([]journal.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.summaries[userID]
	out := make([]journal.Summary, len(list))
	copy(out, list)
	return out, nil
}

// Analysis implements [journal.Store.Analysis].
func (s *Store) Analysis(ctx context.Context, userID, kind string) (journal.Analysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.analyses[userID+"/"+kind]
	if !ok {
		return journal.Analysis{}, journal.ErrNotFound
	}
	return a, nil
}

// SaveAnalysis implements [journal.Store.SaveAnalysis].
func (s *Store) SaveAnalysis(ctx context.Context, analysis journal.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.analyses[analysis.UserID+"/"+analysis.Kind] = analysis
	return nil
}

// DeleteAnalyses implements [journal.Store.DeleteAnalyses].
func (s *Store) DeleteAnalyses(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.analyses {
		if len(key) > len(userID) && key[:len(userID)+1] == userID+"/" {
			delete(s.analyses, key)
		}
	}
	return nil
}

// SaveEmbedding implements [journal.Store.SaveEmbedding].
func (s *Store) SaveEmbedding(ctx context.Context, userID, entryID string, vector []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vec := make([]float32, len(vector))
	copy(vec, vector)
	s.embeddings[userID+"/"+entryID] = vec
	return nil
}

// SimilarEntries implements [journal.Store.SimilarEntries] with a linear
// cosine-similarity scan. Fine for the entry counts a single user produces.
func (s *Store) SimilarEntries(ctx context.Context, userID string, vector []float32, limit int) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		entry journal.Entry
		score float64
	}
	var candidates []scored
	for _, e := range s.entries[userID] {
		vec, ok := s.embeddings[userID+"/"+e.ID]
		if !ok {
			continue
		}
		candidates = append(candidates, scored{entry: e, score: cosine(vector, vec)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	out := make([]journal.Entry, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out, nil
}

func promptKey(userID string, day time.Time) string {
	return userID + "/" + day.UTC().Format(time.DateOnly)
}

// cosine returns the cosine similarity of a and b, or 0 when either has no
// magnitude or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
