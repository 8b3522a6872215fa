package insight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yashv6655/journalai/internal/journal"
	"github.com/yashv6655/journalai/pkg/provider/llm"
)

// summarySystem instructs the model to reflect over a period of entries.
const summarySystem = `You write a reflective summary of a period of personal
journal entries: what the writer experienced, recurring feelings, and gentle
observations. Write in second person. Respond with a JSON object:
{"content": string, "insights": [up to 5 short observation strings]}.`

// Summary kinds.
const (
	SummaryWeekly  = "weekly"
	SummaryMonthly = "monthly"
)

// Summarizer generates weekly and monthly reflections.
type Summarizer struct {
	store journal.Store
	llm   llm.Provider
	now   func() time.Time
}

// NewSummarizer creates a summarizer. Both store and provider are required.
func NewSummarizer(store journal.Store, provider llm.Provider, opts ...SummarizerOption) (*Summarizer, error) {
	if store == nil {
		return nil, errors.New("insight: store is required")
	}
	if provider == nil {
		return nil, errors.New("insight: llm provider is required")
	}
	s := &Summarizer{store: store, llm: provider, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SummarizerOption configures a [Summarizer].
type SummarizerOption func(*Summarizer)

// WithSummarizerClock overrides the clock. Test use only.
func WithSummarizerClock(now func() time.Time) SummarizerOption {
	return func(s *Summarizer) { s.now = now }
}

// Generate produces and stores a summary of the period ending now. Kind is
// [SummaryWeekly] (last 7 days) or [SummaryMonthly] (last 30 days). It fails
// when the period contains no entries.
func (s *Summarizer) Generate(ctx context.Context, userID, kind string) (journal.Summary, error) {
	var days int
	switch kind {
	case SummaryWeekly:
		days = 7
	case SummaryMonthly:
		days = 30
	default:
		return journal.Summary{}, fmt.Errorf("%w: summary kind %q", ErrUnknownKind, kind)
	}

	end := s.now()
	start := end.AddDate(0, 0, -days)
	entries, err := s.store.EntriesBetween(ctx, userID, start, end)
	if err != nil {
		return journal.Summary{}, fmt.Errorf("insight: load entries for summary: %w", err)
	}
	if len(entries) == 0 {
		return journal.Summary{}, fmt.Errorf("%w: no entries in the last %d days", ErrNoEntries, days)
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarySystem,
		Messages: []llm.Message{
			{Role: "user", Content: formatEntries(entries)},
		},
		Temperature:  0.5,
		JSONResponse: true,
	})
	if err != nil {
		return journal.Summary{}, fmt.Errorf("insight: summary generation: %w", err)
	}

	var parsed struct {
		Content  string   `json:"content"`
		Insights []string `json:"insights"`
	}
	if err := decodeJSONResponse(resp.Content, &parsed); err != nil {
		return journal.Summary{}, err
	}
	if len(parsed.Insights) > 5 {
		parsed.Insights = parsed.Insights[:5]
	}

	id, err := newID()
	if err != nil {
		return journal.Summary{}, fmt.Errorf("insight: generate summary id: %w", err)
	}
	summary := journal.Summary{
		ID:              id,
		UserID:          userID,
		Kind:            kind,
		PeriodStart:     start,
		PeriodEnd:       end,
		Content:         parsed.Content,
		Insights:        parsed.Insights,
		EntriesAnalyzed: len(entries),
		CreatedAt:       end,
	}
	if err := s.store.SaveSummary(ctx, summary); err != nil {
		return journal.Summary{}, fmt.Errorf("insight: save summary: %w", err)
	}
	return summary, nil
}

// List returns the user's stored summaries, newest first.
func (s *Summarizer) List(ctx context.Context, userID string) ([]journal.Summary, error) {
	return s.store.ListSummaries(ctx, userID)
}
