package insight

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/yashv6655/journalai/internal/journal"
	"github.com/yashv6655/journalai/pkg/provider/llm"
)

// completeWordCount is the heuristic draft length past which the fallback
// considers an entry finished.
const completeWordCount = 50

// writingSystem asks the model to nudge an in-progress entry forward.
const writingSystem = `The writer is mid-draft on a journal entry. Decide if
the draft already feels like a finished reflection and, if not, offer ONE
short follow-up question that deepens it, matched to the draft's emotional
tone. Respond with a JSON object: {"complete": boolean, "question": string}.
When complete is true, question must be an empty string.`

// Follow-up fallbacks bucketed by sentiment score.
var (
	positiveFollowUps = []string{
		"What made that moment possible?",
		"How can you make more room for this feeling?",
	}
	negativeFollowUps = []string{
		"What would you tell a friend feeling this way?",
		"What is one small thing that might help right now?",
	}
	neutralFollowUps = []string{
		"What else happened today that deserves a sentence?",
		"How did that actually make you feel?",
	}
)

// WritingPrompt is the result of a follow-up request.
type WritingPrompt struct {
	// Complete reports whether the draft already reads as finished.
	Complete bool `json:"complete"`

	// Question is the suggested follow-up; empty when Complete.
	Question string `json:"question"`
}

// WritingCoach produces follow-up questions for in-progress entries.
type WritingCoach struct {
	llm llm.Provider
}

// NewWritingCoach creates a coach. The provider may be nil, in which case
// only the static fallbacks are served.
func NewWritingCoach(provider llm.Provider) *WritingCoach {
	return &WritingCoach{llm: provider}
}

// FollowUp evaluates the draft and suggests how to continue it. The
// sentiment, when available, steers the fallback bucket; it may be nil.
// Provider failures degrade to the fallback instead of erroring.
func (c *WritingCoach) FollowUp(ctx context.Context, draft string, sentiment *journal.Sentiment) (WritingPrompt, error) {
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return WritingPrompt{}, errors.New("insight: draft is empty")
	}

	if c.llm == nil {
		return c.fallback(draft, sentiment), nil
	}

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: writingSystem,
		Messages: []llm.Message{
			{Role: "user", Content: draft},
		},
		Temperature:  0.7,
		MaxTokens:    150,
		JSONResponse: true,
	})
	if err != nil {
		slog.Warn("writing follow-up generation failed, serving fallback", "err", err)
		return c.fallback(draft, sentiment), nil
	}

	var parsed WritingPrompt
	if err := decodeJSONResponse(resp.Content, &parsed); err != nil {
		slog.Warn("writing follow-up response unparseable, serving fallback", "err", err)
		return c.fallback(draft, sentiment), nil
	}
	if parsed.Complete {
		parsed.Question = ""
	} else if strings.TrimSpace(parsed.Question) == "" {
		return c.fallback(draft, sentiment), nil
	}
	return parsed, nil
}

// fallback applies the word-count completeness heuristic and picks a static
// question from the sentiment bucket.
func (c *WritingCoach) fallback(draft string, sentiment *journal.Sentiment) WritingPrompt {
	words := len(strings.Fields(draft))
	if words >= completeWordCount {
		return WritingPrompt{Complete: true}
	}

	pool := neutralFollowUps
	if sentiment != nil {
		switch {
		case sentiment.Score > 0.2:
			pool = positiveFollowUps
		case sentiment.Score < -0.2:
			pool = negativeFollowUps
		}
	}
	return WritingPrompt{Question: pool[words%len(pool)]}
}
