package insight

import (
	"context"
	"log/slog"
	"slices"

	"github.com/yashv6655/journalai/internal/journal"
	"github.com/yashv6655/journalai/pkg/provider/llm"
)

// sentimentPrompt is the system prompt for per-entry sentiment analysis.
const sentimentPrompt = `You analyse the emotional tone of a personal journal entry.
Respond with a JSON object: {"overall": "positive"|"neutral"|"negative"|"mixed",
"score": number in [-1,1], "emotions": up to 5 lowercase emotion words,
"confidence": number in [0,1]}. Judge only what the writer expresses; do not
moralise or give advice.`

var validOveralls = []string{"positive", "neutral", "negative", "mixed"}

// SentimentAnalyzer reads entry sentiment through an LLM. It implements
// journal.SentimentAnalyzer.
type SentimentAnalyzer struct {
	llm llm.Provider
}

// NewSentimentAnalyzer creates an analyzer backed by the given provider.
func NewSentimentAnalyzer(provider llm.Provider) *SentimentAnalyzer {
	return &SentimentAnalyzer{llm: provider}
}

// AnalyzeSentiment returns the sentiment of content. Analysis must never
// block entry creation, so any provider or parse failure logs a warning and
// falls back to a neutral read instead of returning an error.
func (a *SentimentAnalyzer) AnalyzeSentiment(ctx context.Context, content string) (journal.Sentiment, error) {
	resp, err := a.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: sentimentPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: content},
		},
		Temperature:  0.3,
		MaxTokens:    300,
		JSONResponse: true,
	})
	if err != nil {
		slog.Warn("sentiment analysis failed, using neutral fallback", "err", err)
		return neutralSentiment(), nil
	}

	var parsed struct {
		Overall    string   `json:"overall"`
		Score      float64  `json:"score"`
		Emotions   []string `json:"emotions"`
		Confidence float64  `json:"confidence"`
	}
	if err := decodeJSONResponse(resp.Content, &parsed); err != nil {
		slog.Warn("sentiment response unparseable, using neutral fallback", "err", err)
		return neutralSentiment(), nil
	}

	if !slices.Contains(validOveralls, parsed.Overall) {
		parsed.Overall = "neutral"
	}
	if len(parsed.Emotions) > 5 {
		parsed.Emotions = parsed.Emotions[:5]
	}

	return journal.Sentiment{
		Overall:    parsed.Overall,
		Score:      clamp(parsed.Score, -1, 1),
		Emotions:   parsed.Emotions,
		Confidence: clamp(parsed.Confidence, 0, 1),
	}, nil
}

// neutralSentiment is the fallback read when analysis is unavailable.
func neutralSentiment() journal.Sentiment {
	return journal.Sentiment{Overall: "neutral", Score: 0, Confidence: 0}
}
