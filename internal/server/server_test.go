package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yashv6655/journalai/internal/insight"
	"github.com/yashv6655/journalai/internal/journal"
	"github.com/yashv6655/journalai/internal/journal/memstore"
	"github.com/yashv6655/journalai/internal/ratelimit"
	"github.com/yashv6655/journalai/internal/server"
	"github.com/yashv6655/journalai/pkg/provider/llm"
	llmmock "github.com/yashv6655/journalai/pkg/provider/llm/mock"
)

const testToken = "tok-alice"

// newTestServer assembles a server over the in-memory store with a mock LLM.
// mutate may adjust the config before the server is built; it receives the
// backing store so replacement services can share it.
func newTestServer(t *testing.T, mutate func(*memstore.Store, *server.Config)) *httptest.Server {
	t.Helper()

	store := memstore.New()
	svc, err := journal.NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	provider := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: `{"content":"A calm week.","insights":["walks help"]}`},
	}
	prompts, err := insight.NewPromptService(store, insight.WithPromptLLM(provider))
	if err != nil {
		t.Fatalf("NewPromptService: %v", err)
	}
	summaries, err := insight.NewSummarizer(store, provider)
	if err != nil {
		t.Fatalf("NewSummarizer: %v", err)
	}
	analyses, err := insight.NewAnalysisService(store, provider)
	if err != nil {
		t.Fatalf("NewAnalysisService: %v", err)
	}

	cfg := server.Config{
		Journal:   svc,
		Prompts:   prompts,
		Summaries: summaries,
		Analyses:  analyses,
		Writing:   insight.NewWritingCoach(nil),
		Auth:      server.NewStaticTokens(map[string]string{testToken: "alice"}),
	}
	if mutate != nil {
		mutate(store, &cfg)
	}

	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// do issues an authenticated request against the test server.
func do(t *testing.T, ts *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Auth boundary
// ─────────────────────────────────────────────────────────────────────────────

func TestAuth_MissingTokenIs401(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/api/entries")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error == "" {
		t.Error("expected {error} JSON body")
	}
}

func TestAuth_UnknownTokenIs401(t *testing.T) {
	ts := newTestServer(t, nil)

	req, _ := http.NewRequest("GET", ts.URL+"/api/entries", nil)
	req.Header.Set("Authorization", "Bearer nope")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuth_HealthEndpointsAreOpen(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestStaticTokens_Replace(t *testing.T) {
	auth := server.NewStaticTokens(map[string]string{"a": "alice"})
	req := httptest.NewRequest("GET", "/api/entries", nil)
	req.Header.Set("Authorization", "Bearer a")

	if id, err := auth.Authenticate(req); err != nil || id != "alice" {
		t.Fatalf("Authenticate = %q, %v", id, err)
	}

	auth.Replace(map[string]string{"b": "bob"})
	if _, err := auth.Authenticate(req); err == nil {
		t.Error("revoked token still authenticates")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Entries
// ─────────────────────────────────────────────────────────────────────────────

func TestEntries_CreateGetDelete(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, ts, "POST", "/api/entries", `{"content":"Slept well and took a long walk before work."}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201", resp.StatusCode)
	}
	var created journal.Entry
	decodeBody(t, resp, &created)
	if created.ID == "" || created.UserID != "alice" {
		t.Fatalf("created entry malformed: %+v", created)
	}
	if created.Metadata.WordCount != 9 {
		t.Errorf("WordCount = %d, want 9", created.Metadata.WordCount)
	}

	resp = do(t, ts, "GET", "/api/entries/"+created.ID, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get: status = %d, want 200", resp.StatusCode)
	}

	resp = do(t, ts, "DELETE", "/api/entries/"+created.ID, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", resp.StatusCode)
	}

	resp = do(t, ts, "GET", "/api/entries/"+created.ID, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", resp.StatusCode)
	}
}

func TestEntries_EmptyContentIs400(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, ts, "POST", "/api/entries", `{"content":"   "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestEntries_ListPaging(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, content := range []string{"first entry today", "second entry today", "third entry today"} {
		resp := do(t, ts, "POST", "/api/entries", `{"content":"`+content+`"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed: status = %d", resp.StatusCode)
		}
	}

	resp := do(t, ts, "GET", "/api/entries?limit=2", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status = %d, want 200", resp.StatusCode)
	}
	var entries []journal.Entry
	decodeBody(t, resp, &entries)
	if len(entries) != 2 {
		t.Errorf("limit=2: got %d entries", len(entries))
	}
}

func TestStats_DefaultsToWeekly(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, ts, "GET", "/api/stats", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var stats journal.Stats
	decodeBody(t, resp, &stats)
	if stats.Period != journal.PeriodWeekly {
		t.Errorf("Period = %q, want weekly", stats.Period)
	}
	if len(stats.Chart) != 7 {
		t.Errorf("Chart length = %d, want 7", len(stats.Chart))
	}
}

func TestStats_UnknownPeriodIs400(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, ts, "GET", "/api/stats?period=fortnight", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Prompts, summaries, analyses, writing
// ─────────────────────────────────────────────────────────────────────────────

func TestPrompts_DailyAndRegenerate(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, ts, "GET", "/api/prompts", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("daily: status = %d, want 200", resp.StatusCode)
	}
	var prompt journal.DailyPrompt
	decodeBody(t, resp, &prompt)
	if prompt.Prompt == "" {
		t.Error("daily prompt is empty")
	}

	resp = do(t, ts, "POST", "/api/prompts/regenerate", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("regenerate: status = %d, want 200", resp.StatusCode)
	}
}

func TestSummaries_GenerateAndList(t *testing.T) {
	ts := newTestServer(t, nil)

	// No entries yet: generation is a 422.
	resp := do(t, ts, "POST", "/api/summaries", `{"kind":"weekly"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty period: status = %d, want 422", resp.StatusCode)
	}

	if r := do(t, ts, "POST", "/api/entries", `{"content":"Long walk by the river after work."}`); r.StatusCode != http.StatusCreated {
		t.Fatalf("seed entry: status = %d", r.StatusCode)
	}

	resp = do(t, ts, "POST", "/api/summaries", `{"kind":"weekly"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate: status = %d, want 201", resp.StatusCode)
	}
	var summary journal.Summary
	decodeBody(t, resp, &summary)
	if summary.Content == "" || summary.Kind != "weekly" {
		t.Errorf("summary malformed: %+v", summary)
	}

	resp = do(t, ts, "GET", "/api/summaries", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status = %d, want 200", resp.StatusCode)
	}
	var listed []journal.Summary
	decodeBody(t, resp, &listed)
	if len(listed) != 1 {
		t.Errorf("listed %d summaries, want 1", len(listed))
	}
}

func TestSummaries_UnknownKindIs400(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, ts, "POST", "/api/summaries", `{"kind":"quarterly"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyses_ThemesRoute(t *testing.T) {
	ts := newTestServer(t, func(store *memstore.Store, cfg *server.Config) {
		// Swap the LLM response for a themes-shaped payload.
		provider := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: `{"themes":[{"name":"gratitude","mentions":2}]}`},
		}
		analyses, err := insight.NewAnalysisService(store, provider)
		if err != nil {
			t.Fatalf("NewAnalysisService: %v", err)
		}
		cfg.Analyses = analyses
	})

	// Cold cache with no entries: 422.
	resp := do(t, ts, "GET", "/api/themes", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("no entries: status = %d, want 422", resp.StatusCode)
	}

	if r := do(t, ts, "POST", "/api/entries", `{"content":"Grateful for a quiet day."}`); r.StatusCode != http.StatusCreated {
		t.Fatalf("seed entry: status = %d", r.StatusCode)
	}

	resp = do(t, ts, "GET", "/api/themes", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("themes: status = %d, want 200", resp.StatusCode)
	}
	var payload map[string]json.RawMessage
	decodeBody(t, resp, &payload)
	if _, ok := payload["themes"]; !ok {
		t.Errorf("payload missing themes key: %v", payload)
	}
}

func TestWritingPrompts_Fallback(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, ts, "POST", "/api/writing-prompts", `{"content":"Short note."}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var followUp insight.WritingPrompt
	decodeBody(t, resp, &followUp)
	if followUp.Complete {
		t.Error("short draft should not be complete")
	}
	if followUp.Question == "" {
		t.Error("expected a follow-up question")
	}

	resp = do(t, ts, "POST", "/api/writing-prompts", `{"content":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty content: status = %d, want 400", resp.StatusCode)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Rate limiting
// ─────────────────────────────────────────────────────────────────────────────

func TestRateLimit_EntriesRouteReturns429(t *testing.T) {
	ts := newTestServer(t, func(_ *memstore.Store, cfg *server.Config) {
		cfg.EntryLimiter = ratelimit.New(2, time.Hour)
	})

	for i := 0; i < 2; i++ {
		resp := do(t, ts, "POST", "/api/entries", `{"content":"within the budget"}`)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("request %d: status = %d, want 201", i, resp.StatusCode)
		}
	}

	resp := do(t, ts, "POST", "/api/entries", `{"content":"over the budget"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Limit") != "2" {
		t.Errorf("X-RateLimit-Limit = %q, want 2", resp.Header.Get("X-RateLimit-Limit"))
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", resp.Header.Get("X-RateLimit-Remaining"))
	}
	if resp.Header.Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset header missing")
	}
	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, resp, &body)
	if body.Error == "" {
		t.Error("expected {error} JSON body")
	}
}

func TestRateLimit_ReadRoutesUnaffectedByEntryLimiter(t *testing.T) {
	ts := newTestServer(t, func(_ *memstore.Store, cfg *server.Config) {
		cfg.EntryLimiter = ratelimit.New(1, time.Hour)
	})

	if r := do(t, ts, "POST", "/api/entries", `{"content":"uses the budget"}`); r.StatusCode != http.StatusCreated {
		t.Fatalf("seed: status = %d", r.StatusCode)
	}
	for i := 0; i < 3; i++ {
		resp := do(t, ts, "GET", "/api/entries", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("read %d: status = %d, want 200", i, resp.StatusCode)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Voice client configuration
// ─────────────────────────────────────────────────────────────────────────────

func TestVoiceConfig_ServedAndHotSwapped(t *testing.T) {
	store := memstore.New()
	svc, err := journal.NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv, err := server.New(server.Config{
		Journal: svc,
		Auth:    server.NewStaticTokens(map[string]string{testToken: "alice"}),
		Voice: server.VoiceSettings{
			FirstMessage:   "Hi! How was your day?",
			MaxCallSeconds: 360,
			SilenceEnd:     false,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	resp := do(t, ts, http.MethodGet, "/api/voice-config", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got server.VoiceSettings
	decodeBody(t, resp, &got)
	if got.FirstMessage != "Hi! How was your day?" || got.MaxCallSeconds != 360 {
		t.Fatalf("settings = %+v", got)
	}

	srv.SetVoiceSettings(server.VoiceSettings{FirstMessage: "Welcome back."})

	resp = do(t, ts, http.MethodGet, "/api/voice-config", "")
	decodeBody(t, resp, &got)
	if got.FirstMessage != "Welcome back." {
		t.Fatalf("FirstMessage after swap = %q", got.FirstMessage)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// User goals
// ─────────────────────────────────────────────────────────────────────────────

func TestGoals_PutThenGet(t *testing.T) {
	ts := newTestServer(t, nil)

	// A fresh user has no goals.
	resp := do(t, ts, http.MethodGet, "/api/user/goals", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Goals []string `json:"goals"`
	}
	decodeBody(t, resp, &body)
	if len(body.Goals) != 0 {
		t.Fatalf("initial goals = %v, want none", body.Goals)
	}

	resp = do(t, ts, http.MethodPut, "/api/user/goals", `{"goals":["  sleep better ","worry less"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want 200", resp.StatusCode)
	}
	decodeBody(t, resp, &body)
	if len(body.Goals) != 2 || body.Goals[0] != "sleep better" {
		t.Fatalf("put response goals = %v", body.Goals)
	}

	resp = do(t, ts, http.MethodGet, "/api/user/goals", "")
	decodeBody(t, resp, &body)
	if len(body.Goals) != 2 || body.Goals[1] != "worry less" {
		t.Errorf("round-trip goals = %v", body.Goals)
	}
}

func TestGoals_MalformedBodyIs400(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := do(t, ts, http.MethodPut, "/api/user/goals", `{"goals":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}
