// Package journal implements the server-side entry lifecycle: creating and
// listing journal entries, tracking per-user streaks and totals, and
// assembling period statistics. Derived artifacts (sentiment, daily prompts,
// summaries, cached analyses) are produced by internal/insight and persisted
// through the [Store] interface defined here.
//
// All store implementations must be safe for concurrent use.
package journal

import "time"

// Entry is a single journal entry.
type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Sentiment is nil until analysis has run for this entry.
	Sentiment *Sentiment `json:"sentiment,omitempty"`

	Metadata EntryMetadata `json:"metadata"`
	Tags     []string      `json:"tags,omitempty"`
}

// EntryMetadata carries descriptive fields captured at creation time.
type EntryMetadata struct {
	WordCount int    `json:"wordCount"`
	Prompt    string `json:"prompt,omitempty"`
	TimeOfDay string `json:"timeOfDay"`

	// EntryType is "text" or "voice".
	EntryType string `json:"entryType"`

	// FullTranscript is present for voice entries.
	FullTranscript []TranscriptLine `json:"fullTranscript,omitempty"`
}

// TranscriptLine is one exchange of a voice session transcript.
type TranscriptLine struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Sentiment is the emotional read of a single entry.
type Sentiment struct {
	// Overall is one of "positive", "neutral", "negative", "mixed".
	Overall string `json:"overall"`

	// Score is in [-1, 1].
	Score float64 `json:"score"`

	Emotions []string `json:"emotions,omitempty"`

	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence"`
}

// User holds per-user journaling state.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	// Goals seed prompt generation for users with little history.
	Goals []string `json:"goals,omitempty"`

	TotalEntries  int       `json:"totalEntries"`
	CurrentStreak int       `json:"currentStreak"`
	LongestStreak int       `json:"longestStreak"`
	LastEntryAt   time.Time `json:"lastEntryAt"`
}

// DailyPrompt is the per-day generated journaling prompt.
type DailyPrompt struct {
	UserID string `json:"userId"`

	// Day is the UTC calendar day the prompt belongs to.
	Day time.Time `json:"day"`

	Prompt     string    `json:"prompt"`
	Answered   bool      `json:"answered"`
	AnsweredAt time.Time `json:"answeredAt,omitzero"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Summary is a generated reflection over a date range.
type Summary struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`

	// Kind is "weekly" or "monthly".
	Kind string `json:"kind"`

	PeriodStart     time.Time `json:"periodStart"`
	PeriodEnd       time.Time `json:"periodEnd"`
	Content         string    `json:"content"`
	Insights        []string  `json:"insights,omitempty"`
	EntriesAnalyzed int       `json:"entriesAnalyzed"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Analysis is a cached derived analysis (themes, topics, correlations).
// Payload is the analysis-specific JSON document; it is regenerated on demand
// after entry writes invalidate the cache.
type Analysis struct {
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}

// Analysis cache kinds.
const (
	AnalysisThemes       = "themes"
	AnalysisTopics       = "topics"
	AnalysisCorrelations = "correlations"
)
