package insight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yashv6655/journalai/internal/journal"
	"github.com/yashv6655/journalai/pkg/provider/llm"
)

// answeredCooldown is how long after answering a regenerate request keeps
// returning the answered prompt instead of producing a fresh one.
const answeredCooldown = 12 * time.Hour

// relatedEntryLimit caps how many semantically related past entries feed the
// generation prompt.
const relatedEntryLimit = 3

// dailyPromptSystem instructs the model to produce one journaling question.
const dailyPromptSystem = `You write a single journaling prompt: one open,
specific question the writer can answer today. Ground it in the writer's
recent entries when provided. Avoid yes/no questions and avoid repeating a
question they already answered. Respond with a JSON object: {"prompt": string}.`

// fallbackPrompts are served when no LLM is configured or generation fails.
var fallbackPrompts = []string{
	"What gave you energy today?",
	"What is one thing you are avoiding, and why?",
	"Describe a moment today you want to remember.",
	"What would make tomorrow feel lighter?",
	"What are you grateful for right now?",
	"What did you learn about yourself this week?",
	"Which conversation stayed with you today?",
}

// PromptService produces the per-day journaling prompt. Prompts are cached
// per UTC day in the store; generation only runs on a cold day or an
// explicit regenerate.
type PromptService struct {
	store    journal.Store
	llm      llm.Provider
	embedder journal.Embedder
	now      func() time.Time
}

// PromptOption configures a [PromptService].
type PromptOption func(*PromptService)

// WithPromptLLM attaches LLM generation. Without it the static fallback
// list is used.
func WithPromptLLM(p llm.Provider) PromptOption {
	return func(s *PromptService) { s.llm = p }
}

// WithPromptEmbedder enables pulling semantically related past entries into
// the generation context.
func WithPromptEmbedder(e journal.Embedder) PromptOption {
	return func(s *PromptService) { s.embedder = e }
}

// WithPromptClock overrides the clock. Test use only.
func WithPromptClock(now func() time.Time) PromptOption {
	return func(s *PromptService) { s.now = now }
}

// NewPromptService creates a prompt service backed by store.
func NewPromptService(store journal.Store, opts ...PromptOption) (*PromptService, error) {
	if store == nil {
		return nil, errors.New("insight: store is required")
	}
	s := &PromptService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Daily returns today's prompt, generating and caching it on first access.
func (s *PromptService) Daily(ctx context.Context, userID string) (journal.DailyPrompt, error) {
	now := s.now()
	cached, err := s.store.DailyPrompt(ctx, userID, now.UTC())
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, journal.ErrNotFound) {
		return journal.DailyPrompt{}, fmt.Errorf("insight: daily prompt lookup: %w", err)
	}
	return s.generate(ctx, userID, now)
}

// Regenerate replaces today's prompt with a fresh one. A prompt answered
// within the last 12 hours is kept as-is so a completed reflection is not
// immediately churned away.
func (s *PromptService) Regenerate(ctx context.Context, userID string) (journal.DailyPrompt, error) {
	now := s.now()
	cached, err := s.store.DailyPrompt(ctx, userID, now.UTC())
	if err == nil && cached.Answered && now.Sub(cached.AnsweredAt) < answeredCooldown {
		return cached, nil
	}
	if err != nil && !errors.Is(err, journal.ErrNotFound) {
		return journal.DailyPrompt{}, fmt.Errorf("insight: daily prompt lookup: %w", err)
	}
	return s.generate(ctx, userID, now)
}

// generate builds today's prompt from recent and related entries, falling
// back to the static list, and caches the result.
func (s *PromptService) generate(ctx context.Context, userID string, now time.Time) (journal.DailyPrompt, error) {
	text := s.generateText(ctx, userID, now)

	prompt := journal.DailyPrompt{
		UserID:    userID,
		Day:       now.UTC(),
		Prompt:    text,
		CreatedAt: now,
	}
	if err := s.store.SaveDailyPrompt(ctx, prompt); err != nil {
		return journal.DailyPrompt{}, fmt.Errorf("insight: save daily prompt: %w", err)
	}
	return prompt, nil
}

func (s *PromptService) generateText(ctx context.Context, userID string, now time.Time) string {
	fallback := fallbackPrompts[now.UTC().YearDay()%len(fallbackPrompts)]
	if s.llm == nil {
		return fallback
	}

	recent, err := s.store.ListEntries(ctx, userID, journal.ListOptions{Limit: 3})
	if err != nil {
		slog.Warn("daily prompt: loading recent entries failed", "err", err)
		return fallback
	}

	var sb strings.Builder
	if len(recent) == 0 {
		sb.WriteString("The writer has no journal entries yet.\n")
	} else {
		sb.WriteString("Recent entries, newest first:\n")
		for _, e := range recent {
			fmt.Fprintf(&sb, "- [%s] %s\n", e.CreatedAt.UTC().Format(time.DateOnly), e.Content)
		}
	}

	// New users get goal-aware prompts; established users get prompts
	// grounded in semantically related history.
	user, err := s.store.User(ctx, userID)
	if err == nil && user.TotalEntries < 3 && len(user.Goals) > 0 {
		fmt.Fprintf(&sb, "The writer's journaling goals: %s\n", strings.Join(user.Goals, "; "))
	}
	if related := s.relatedEntries(ctx, userID, recent); len(related) > 0 {
		sb.WriteString("Related past entries:\n")
		for _, e := range related {
			fmt.Fprintf(&sb, "- [%s] %s\n", e.CreatedAt.UTC().Format(time.DateOnly), e.Content)
		}
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: dailyPromptSystem,
		Messages: []llm.Message{
			{Role: "user", Content: sb.String()},
		},
		Temperature:  0.8,
		MaxTokens:    200,
		JSONResponse: true,
	})
	if err != nil {
		slog.Warn("daily prompt generation failed, serving fallback", "err", err)
		return fallback
	}

	var parsed struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSONResponse(resp.Content, &parsed); err != nil || strings.TrimSpace(parsed.Prompt) == "" {
		slog.Warn("daily prompt response unparseable, serving fallback", "err", err)
		return fallback
	}
	return strings.TrimSpace(parsed.Prompt)
}

// relatedEntries finds past entries semantically close to the newest recent
// entry, excluding the recent entries themselves.
func (s *PromptService) relatedEntries(ctx context.Context, userID string, recent []journal.Entry) []journal.Entry {
	if s.embedder == nil || len(recent) == 0 {
		return nil
	}

	vec, err := s.embedder.Embed(ctx, recent[0].Content)
	if err != nil {
		slog.Warn("daily prompt: embedding recent entry failed", "err", err)
		return nil
	}
	hits, err := s.store.SimilarEntries(ctx, userID, vec, relatedEntryLimit+len(recent))
	if err != nil {
		slog.Warn("daily prompt: semantic search failed", "err", err)
		return nil
	}

	seen := make(map[string]bool, len(recent))
	for _, e := range recent {
		seen[e.ID] = true
	}
	var out []journal.Entry
	for _, e := range hits {
		if seen[e.ID] {
			continue
		}
		out = append(out, e)
		if len(out) == relatedEntryLimit {
			break
		}
	}
	return out
}
