package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yashv6655/journalai/internal/journal"
	"github.com/yashv6655/journalai/pkg/provider/llm"
)

// analysisEntryLimit caps how many recent entries feed a derived analysis.
const analysisEntryLimit = 50

var analysisSystems = map[string]string{
	journal.AnalysisThemes: `You identify recurring themes across personal
journal entries. Respond with a JSON object: {"themes": [{"name": string,
"description": string, "frequency": integer count of entries touching it}]}.
At most 6 themes.`,

	journal.AnalysisTopics: `You extract concrete topics the writer journals
about (people, places, activities, projects). Respond with a JSON object:
{"topics": [{"name": string, "mentions": integer}]}. At most 10 topics.`,

	journal.AnalysisCorrelations: `You look for correlations between the
writer's activities and their mood across journal entries. Respond with a
JSON object: {"correlations": [{"factor": string, "effect": "positive"|
"negative", "note": string}]}. Only report patterns with at least two
supporting entries. At most 5 correlations.`,
}

// AnalysisService serves the cached derived analyses. A cache miss
// regenerates from recent entries; entry writes invalidate the cache
// (journal.Service), so results track the journal without recomputing on
// every read.
type AnalysisService struct {
	store journal.Store
	llm   llm.Provider
	now   func() time.Time
}

// NewAnalysisService creates an analysis service. Both store and provider
// are required.
func NewAnalysisService(store journal.Store, provider llm.Provider, opts ...AnalysisOption) (*AnalysisService, error) {
	if store == nil {
		return nil, errors.New("insight: store is required")
	}
	if provider == nil {
		return nil, errors.New("insight: llm provider is required")
	}
	s := &AnalysisService{store: store, llm: provider, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AnalysisOption configures an [AnalysisService].
type AnalysisOption func(*AnalysisService)

// WithAnalysisClock overrides the clock. Test use only.
func WithAnalysisClock(now func() time.Time) AnalysisOption {
	return func(s *AnalysisService) { s.now = now }
}

// Themes returns the themes analysis for the user.
func (s *AnalysisService) Themes(ctx context.Context, userID string) (json.RawMessage, error) {
	return s.cached(ctx, userID, journal.AnalysisThemes)
}

// Topics returns the topics analysis for the user.
func (s *AnalysisService) Topics(ctx context.Context, userID string) (json.RawMessage, error) {
	return s.cached(ctx, userID, journal.AnalysisTopics)
}

// Correlations returns the mood-correlation analysis for the user.
func (s *AnalysisService) Correlations(ctx context.Context, userID string) (json.RawMessage, error) {
	return s.cached(ctx, userID, journal.AnalysisCorrelations)
}

// cached serves kind from the store's analysis cache, regenerating on miss.
func (s *AnalysisService) cached(ctx context.Context, userID, kind string) (json.RawMessage, error) {
	hit, err := s.store.Analysis(ctx, userID, kind)
	if err == nil {
		return hit.Payload, nil
	}
	if !errors.Is(err, journal.ErrNotFound) {
		return nil, fmt.Errorf("insight: analysis cache lookup: %w", err)
	}

	payload, err := s.regenerate(ctx, userID, kind)
	if err != nil {
		return nil, err
	}

	save := journal.Analysis{UserID: userID, Kind: kind, Payload: payload, CreatedAt: s.now()}
	if err := s.store.SaveAnalysis(ctx, save); err != nil {
		return nil, fmt.Errorf("insight: save %s analysis: %w", kind, err)
	}
	return payload, nil
}

func (s *AnalysisService) regenerate(ctx context.Context, userID, kind string) (json.RawMessage, error) {
	system, ok := analysisSystems[kind]
	if !ok {
		return nil, fmt.Errorf("%w: analysis kind %q", ErrUnknownKind, kind)
	}

	entries, err := s.store.ListEntries(ctx, userID, journal.ListOptions{Limit: analysisEntryLimit})
	if err != nil {
		return nil, fmt.Errorf("insight: load entries for %s analysis: %w", kind, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: nothing recorded for %s", ErrNoEntries, kind)
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages: []llm.Message{
			{Role: "user", Content: formatEntries(entries)},
		},
		Temperature:  0.4,
		JSONResponse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("insight: %s analysis generation: %w", kind, err)
	}

	// Payloads are passed through to clients verbatim; only validate that
	// the model produced a JSON document.
	var probe map[string]any
	if err := decodeJSONResponse(resp.Content, &probe); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(probe)
	if err != nil {
		return nil, fmt.Errorf("insight: normalize %s analysis: %w", kind, err)
	}
	return normalized, nil
}
