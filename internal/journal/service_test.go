package journal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yashv6655/journalai/internal/journal"
	"github.com/yashv6655/journalai/internal/journal/memstore"
)

// ── test doubles ─────────────────────────────────────────────────────────────

type fakeAnalyzer struct {
	result journal.Sentiment
	err    error
	calls  int
}

func (f *fakeAnalyzer) AnalyzeSentiment(ctx context.Context, content string) (journal.Sentiment, error) {
	f.calls++
	return f.result, f.err
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var noon = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// ── CreateEntry ──────────────────────────────────────────────────────────────

func TestCreateEntry_FullPipeline(t *testing.T) {
	store := memstore.New()
	analyzer := &fakeAnalyzer{result: journal.Sentiment{Overall: "positive", Score: 0.7, Confidence: 0.9}}
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}

	svc, err := journal.NewService(store,
		journal.WithSentimentAnalyzer(analyzer),
		journal.WithEmbedder(embedder),
		journal.WithClock(fixedClock(noon)),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{
		Content: "Went for a long walk and felt grateful for the quiet morning.",
		Tags:    []string{"gratitude"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if entry.ID == "" {
		t.Error("entry ID not generated")
	}
	if entry.Metadata.WordCount != 12 {
		t.Errorf("word count: got %d, want 12", entry.Metadata.WordCount)
	}
	if entry.Metadata.TimeOfDay != "afternoon" {
		t.Errorf("time of day: got %q, want afternoon", entry.Metadata.TimeOfDay)
	}
	if entry.Metadata.EntryType != "text" {
		t.Errorf("entry type: got %q, want text", entry.Metadata.EntryType)
	}
	if entry.Sentiment == nil || entry.Sentiment.Overall != "positive" {
		t.Errorf("sentiment not attached: %+v", entry.Sentiment)
	}
	if embedder.calls != 1 {
		t.Errorf("embedder calls: got %d, want 1", embedder.calls)
	}

	stored, err := store.Entry(context.Background(), "alice", entry.ID)
	if err != nil {
		t.Fatalf("stored entry not found: %v", err)
	}
	if stored.Content != entry.Content {
		t.Errorf("stored content mismatch: %q", stored.Content)
	}

	user, err := store.User(context.Background(), "alice")
	if err != nil {
		t.Fatalf("user record not created: %v", err)
	}
	if user.TotalEntries != 1 || user.CurrentStreak != 1 {
		t.Errorf("user counters: %+v", user)
	}
}

func TestCreateEntry_RejectsEmptyContent(t *testing.T) {
	svc, _ := journal.NewService(memstore.New())
	if _, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{Content: "   "}); err == nil {
		t.Fatal("expected error for blank content, got nil")
	}
}

func TestCreateEntry_RejectsMissingUser(t *testing.T) {
	svc, _ := journal.NewService(memstore.New())
	if _, err := svc.CreateEntry(context.Background(), "", journal.CreateEntryRequest{Content: "hello"}); err == nil {
		t.Fatal("expected error for missing user id, got nil")
	}
}

func TestCreateEntry_SentimentFailureDoesNotBlock(t *testing.T) {
	store := memstore.New()
	analyzer := &fakeAnalyzer{err: errors.New("provider down")}
	svc, _ := journal.NewService(store, journal.WithSentimentAnalyzer(analyzer))

	entry, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{Content: "still works"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Sentiment != nil {
		t.Errorf("expected nil sentiment after analyzer failure, got %+v", entry.Sentiment)
	}
}

func TestCreateEntry_EmbedderFailureDoesNotBlock(t *testing.T) {
	store := memstore.New()
	embedder := &fakeEmbedder{err: errors.New("provider down")}
	svc, _ := journal.NewService(store, journal.WithEmbedder(embedder))

	if _, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{Content: "still works"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateEntry_MarksDailyPromptAnswered(t *testing.T) {
	store := memstore.New()
	svc, _ := journal.NewService(store, journal.WithClock(fixedClock(noon)))

	prompt := journal.DailyPrompt{
		UserID: "alice",
		Day:    noon.Truncate(24 * time.Hour),
		Prompt: "What gave you energy today?",
	}
	if err := store.SaveDailyPrompt(context.Background(), prompt); err != nil {
		t.Fatalf("seed prompt: %v", err)
	}

	// Voice transcription mangles the wording slightly.
	_, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{
		Content: "The morning run, honestly.",
		Prompt:  "what gave you energy to day",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.DailyPrompt(context.Background(), "alice", noon)
	if err != nil {
		t.Fatalf("prompt lookup: %v", err)
	}
	if !got.Answered {
		t.Error("daily prompt not marked answered")
	}
	if got.AnsweredAt.IsZero() {
		t.Error("AnsweredAt not set")
	}
}

func TestCreateEntry_UnrelatedPromptLeavesDailyUnanswered(t *testing.T) {
	store := memstore.New()
	svc, _ := journal.NewService(store, journal.WithClock(fixedClock(noon)))

	prompt := journal.DailyPrompt{UserID: "alice", Day: noon, Prompt: "What gave you energy today?"}
	if err := store.SaveDailyPrompt(context.Background(), prompt); err != nil {
		t.Fatalf("seed prompt: %v", err)
	}

	_, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{
		Content: "Free writing.",
		Prompt:  "Describe a place you felt at home",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := store.DailyPrompt(context.Background(), "alice", noon)
	if got.Answered {
		t.Error("daily prompt should not be marked answered")
	}
}

func TestCreateEntry_InvalidatesAnalysisCache(t *testing.T) {
	store := memstore.New()
	svc, _ := journal.NewService(store)

	seed := journal.Analysis{UserID: "alice", Kind: journal.AnalysisThemes, Payload: []byte(`{"themes":[]}`)}
	if err := store.SaveAnalysis(context.Background(), seed); err != nil {
		t.Fatalf("seed analysis: %v", err)
	}

	if _, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{Content: "new entry"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := store.Analysis(context.Background(), "alice", journal.AnalysisThemes); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("cache should be invalidated, got: %v", err)
	}
}

func TestCreateEntry_StreakAcrossDays(t *testing.T) {
	store := memstore.New()
	current := noon
	svc, _ := journal.NewService(store, journal.WithClock(func() time.Time { return current }))

	for i := 0; i < 3; i++ {
		if _, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{Content: "daily entry"}); err != nil {
			t.Fatalf("day %d: %v", i, err)
		}
		current = current.AddDate(0, 0, 1)
	}

	user, err := store.User(context.Background(), "alice")
	if err != nil {
		t.Fatalf("user lookup: %v", err)
	}
	if user.CurrentStreak != 3 {
		t.Errorf("CurrentStreak: got %d, want 3", user.CurrentStreak)
	}
	if user.TotalEntries != 3 {
		t.Errorf("TotalEntries: got %d, want 3", user.TotalEntries)
	}
}

// ── DeleteEntry ──────────────────────────────────────────────────────────────

func TestDeleteEntry_InvalidatesAnalysisCache(t *testing.T) {
	store := memstore.New()
	svc, _ := journal.NewService(store)

	entry, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{Content: "to be deleted"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	seed := journal.Analysis{UserID: "alice", Kind: journal.AnalysisTopics, Payload: []byte(`{}`)}
	if err := store.SaveAnalysis(context.Background(), seed); err != nil {
		t.Fatalf("seed analysis: %v", err)
	}

	if err := svc.DeleteEntry(context.Background(), "alice", entry.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Analysis(context.Background(), "alice", journal.AnalysisTopics); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("cache should be invalidated, got: %v", err)
	}
}

func TestDeleteEntry_NotFound(t *testing.T) {
	svc, _ := journal.NewService(memstore.New())
	if err := svc.DeleteEntry(context.Background(), "alice", "missing"); !errors.Is(err, journal.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got: %v", err)
	}
}

// ── Stats ────────────────────────────────────────────────────────────────────

func TestStats_WeeklyChart(t *testing.T) {
	store := memstore.New()
	svc, _ := journal.NewService(store, journal.WithClock(fixedClock(noon)))

	score := func(v float64) *journal.Sentiment {
		return &journal.Sentiment{Overall: "positive", Score: v, Confidence: 1}
	}
	entries := []journal.Entry{
		{ID: "a", UserID: "alice", Content: "x", CreatedAt: noon.AddDate(0, 0, -1), Sentiment: score(0.25)},
		{ID: "b", UserID: "alice", Content: "y", CreatedAt: noon.AddDate(0, 0, -1), Sentiment: score(0.75)},
		{ID: "c", UserID: "alice", Content: "z", CreatedAt: noon.AddDate(0, 0, -3)},
	}
	for _, e := range entries {
		if err := store.SaveEntry(context.Background(), e); err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}

	stats, err := svc.Stats(context.Background(), "alice", journal.PeriodWeekly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(stats.Chart) != 7 {
		t.Fatalf("chart length: got %d, want 7", len(stats.Chart))
	}
	if stats.EntriesInPeriod != 3 {
		t.Errorf("EntriesInPeriod: got %d, want 3", stats.EntriesInPeriod)
	}
	if len(stats.Scores) != 2 {
		t.Errorf("Scores: got %d, want 2", len(stats.Scores))
	}

	// Yesterday has two analysed entries averaging 0.5.
	yesterday := stats.Chart[5]
	if yesterday.Count != 2 {
		t.Errorf("yesterday count: got %d, want 2", yesterday.Count)
	}
	if yesterday.Score == nil || *yesterday.Score != 0.5 {
		t.Errorf("yesterday score: got %v, want 0.5", yesterday.Score)
	}

	// Three days ago has one entry but no sentiment.
	threeBack := stats.Chart[3]
	if threeBack.Count != 1 {
		t.Errorf("3-days-ago count: got %d, want 1", threeBack.Count)
	}
	if threeBack.Score != nil {
		t.Errorf("3-days-ago score should be nil, got %v", *threeBack.Score)
	}

	// Empty days are present with zero counts.
	if stats.Chart[0].Count != 0 || stats.Chart[0].Score != nil {
		t.Errorf("oldest day should be empty: %+v", stats.Chart[0])
	}
}

func TestStats_InvalidPeriod(t *testing.T) {
	svc, _ := journal.NewService(memstore.New())
	if _, err := svc.Stats(context.Background(), "alice", journal.Period("fortnight")); err == nil {
		t.Fatal("expected error for invalid period, got nil")
	}
}

func TestStats_UnknownUserHasZeroCounters(t *testing.T) {
	svc, _ := journal.NewService(memstore.New(), journal.WithClock(fixedClock(noon)))
	stats, err := svc.Stats(context.Background(), "ghost", journal.PeriodWeekly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalEntries != 0 || stats.CurrentStreak != 0 {
		t.Errorf("expected zero counters, got %+v", stats)
	}
}

// ── Goals ────────────────────────────────────────────────────────────────────

func TestSetGoals_CreatesUserAndTrims(t *testing.T) {
	store := memstore.New()
	svc, err := journal.NewService(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.SetGoals(context.Background(), "alice", []string{"  sleep better ", "", "worry less"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "sleep better" || got[1] != "worry less" {
		t.Errorf("goals = %v", got)
	}

	// The user record was created and carries the goals, so prompt
	// generation can seed from them.
	user, err := store.User(context.Background(), "alice")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if len(user.Goals) != 2 {
		t.Errorf("stored goals = %v", user.Goals)
	}
}

func TestSetGoals_PreservesStreakState(t *testing.T) {
	store := memstore.New()
	svc, err := journal.NewService(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.CreateEntry(context.Background(), "alice", journal.CreateEntryRequest{Content: "First entry."}); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	if _, err := svc.SetGoals(context.Background(), "alice", []string{"keep writing"}); err != nil {
		t.Fatalf("set goals: %v", err)
	}

	user, err := store.User(context.Background(), "alice")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if user.TotalEntries != 1 || user.CurrentStreak != 1 {
		t.Errorf("counters clobbered: %+v", user)
	}
}

func TestSetGoals_RejectsTooMany(t *testing.T) {
	svc, err := journal.NewService(memstore.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	goals := make([]string, 11)
	for i := range goals {
		goals[i] = "goal"
	}
	_, err = svc.SetGoals(context.Background(), "alice", goals)
	if !errors.Is(err, journal.ErrInvalidInput) {
		t.Fatalf("error = %v, want ErrInvalidInput", err)
	}
}

func TestGoals_UnknownUserHasNone(t *testing.T) {
	svc, err := journal.NewService(memstore.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := svc.Goals(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("goals = %#v, want empty non-nil slice", got)
	}
}
