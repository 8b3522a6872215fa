package journal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// SentimentAnalyzer reads the emotional tone of entry content.
// internal/insight provides the LLM-backed implementation.
type SentimentAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, content string) (Sentiment, error)
}

// Embedder produces semantic vectors for entry content.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service implements the entry lifecycle on top of a [Store].
// Sentiment analysis and embedding are optional collaborators; when absent,
// entries are stored without them.
type Service struct {
	store     Store
	sentiment SentimentAnalyzer
	embedder  Embedder
	now       func() time.Time
}

// ServiceOption configures a [Service].
type ServiceOption func(*Service)

// WithSentimentAnalyzer attaches sentiment analysis to entry creation.
func WithSentimentAnalyzer(a SentimentAnalyzer) ServiceOption {
	return func(s *Service) { s.sentiment = a }
}

// WithEmbedder attaches semantic indexing to entry creation.
func WithEmbedder(e Embedder) ServiceOption {
	return func(s *Service) { s.embedder = e }
}

// WithClock overrides the service clock. Test use only.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a journal service backed by store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("journal: store is required")
	}
	s := &Service{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateEntryRequest is the input to [Service.CreateEntry].
type CreateEntryRequest struct {
	Content        string
	Prompt         string
	Tags           []string
	EntryType      string
	FullTranscript []TranscriptLine
}

// CreateEntry validates and stores a new entry, then performs the
// bookkeeping that hangs off an entry write: sentiment analysis, daily
// prompt matching, streak and totals, analysis-cache invalidation, and
// semantic indexing. Sentiment and the daily-prompt lookup run concurrently;
// everything past validation and the entry insert is best effort and never
// fails the call.
func (s *Service) CreateEntry(ctx context.Context, userID string, req CreateEntryRequest) (Entry, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return Entry{}, fmt.Errorf("%w: entry content is empty", ErrInvalidInput)
	}
	if userID == "" {
		return Entry{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	id, err := generateID()
	if err != nil {
		return Entry{}, fmt.Errorf("journal: generate entry id: %w", err)
	}

	now := s.now()
	entryType := req.EntryType
	if entryType == "" {
		entryType = "text"
	}

	entry := Entry{
		ID:        id,
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      req.Tags,
		Metadata: EntryMetadata{
			WordCount:      len(strings.Fields(content)),
			Prompt:         strings.TrimSpace(req.Prompt),
			TimeOfDay:      timeOfDay(now),
			EntryType:      entryType,
			FullTranscript: req.FullTranscript,
		},
	}

	// Sentiment and the daily-prompt lookup are independent; run them in
	// parallel before touching the store.
	var (
		daily    DailyPrompt
		hasDaily bool
	)
	g, gctx := errgroup.WithContext(ctx)
	if s.sentiment != nil {
		g.Go(func() error {
			sent, err := s.sentiment.AnalyzeSentiment(gctx, content)
			if err != nil {
				slog.Warn("sentiment analysis failed, storing entry without it", "err", err)
				return nil
			}
			entry.Sentiment = &sent
			return nil
		})
	}
	g.Go(func() error {
		p, err := s.store.DailyPrompt(gctx, userID, now.UTC())
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				slog.Warn("daily prompt lookup failed", "err", err)
			}
			return nil
		}
		daily, hasDaily = p, true
		return nil
	})
	// The goroutines swallow their own errors.
	_ = g.Wait()

	if err := s.store.SaveEntry(ctx, entry); err != nil {
		return Entry{}, fmt.Errorf("journal: save entry: %w", err)
	}

	if hasDaily && !daily.Answered && promptMatches(entry.Metadata.Prompt, daily.Prompt) {
		daily.Answered = true
		daily.AnsweredAt = now
		if err := s.store.SaveDailyPrompt(ctx, daily); err != nil {
			slog.Warn("failed to mark daily prompt answered", "err", err)
		}
	}

	if err := s.recordEntryWrite(ctx, userID, now); err != nil {
		slog.Warn("failed to update user streak", "user", userID, "err", err)
	}

	if err := s.store.DeleteAnalyses(ctx, userID); err != nil {
		slog.Warn("failed to invalidate analysis cache", "user", userID, "err", err)
	}

	if s.embedder != nil {
		if err := s.embedEntry(ctx, entry); err != nil {
			slog.Warn("failed to index entry embedding", "entry", entry.ID, "err", err)
		}
	}

	return entry, nil
}

// Entry retrieves one entry.
func (s *Service) Entry(ctx context.Context, userID, id string) (Entry, error) {
	return s.store.Entry(ctx, userID, id)
}

// ListEntries returns the user's entries, newest first.
func (s *Service) ListEntries(ctx context.Context, userID string, opts ListOptions) ([]Entry, error) {
	return s.store.ListEntries(ctx, userID, opts)
}

// DeleteEntry removes one entry. The analysis cache is invalidated since
// derived analyses may have included it.
func (s *Service) DeleteEntry(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteEntry(ctx, userID, id); err != nil {
		return err
	}
	if err := s.store.DeleteAnalyses(ctx, userID); err != nil {
		slog.Warn("failed to invalidate analysis cache", "user", userID, "err", err)
	}
	return nil
}

// maxGoals bounds the goal list a user may set.
const maxGoals = 10

// Goals returns the user's journaling goals. Users without a record yet
// have none.
func (s *Service) Goals(ctx context.Context, userID string) ([]string, error) {
	user, err := s.store.User(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if user.Goals == nil {
		return []string{}, nil
	}
	return user.Goals, nil
}

// SetGoals replaces the user's journaling goals, creating the user record
// when none exists. Goals are trimmed and blank entries dropped; prompt
// generation uses them to seed prompts for users with little history.
func (s *Service) SetGoals(ctx context.Context, userID string, goals []string) ([]string, error) {
	cleaned := make([]string, 0, len(goals))
	for _, g := range goals {
		if g = strings.TrimSpace(g); g != "" {
			cleaned = append(cleaned, g)
		}
	}
	if len(cleaned) > maxGoals {
		return nil, fmt.Errorf("%w: at most %d goals allowed", ErrInvalidInput, maxGoals)
	}

	user, err := s.store.User(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		user = User{ID: userID, CreatedAt: s.now()}
	} else if err != nil {
		return nil, err
	}
	user.Goals = cleaned
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// recordEntryWrite advances the user's streak and totals for an entry
// written at ts, creating the user record on first write.
func (s *Service) recordEntryWrite(ctx context.Context, userID string, ts time.Time) error {
	user, err := s.store.User(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		user = User{ID: userID, CreatedAt: ts}
	} else if err != nil {
		return err
	}

	advanceStreak(&user, ts)
	user.TotalEntries++
	user.LastEntryAt = ts

	return s.store.SaveUser(ctx, user)
}

func (s *Service) embedEntry(ctx context.Context, entry Entry) error {
	vec, err := s.embedder.Embed(ctx, entry.Content)
	if err != nil {
		return err
	}
	return s.store.SaveEmbedding(ctx, entry.UserID, entry.ID, vec)
}

// timeOfDay buckets t's local hour into morning, afternoon, evening, night.
func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 21:
		return "evening"
	default:
		return "night"
	}
}

// generateID produces a random 16-byte hex string using crypto/rand.
func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
