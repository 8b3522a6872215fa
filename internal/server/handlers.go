package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/yashv6655/journalai/internal/journal"
)

// createEntryRequest is the POST /api/entries body.
type createEntryRequest struct {
	Content        string                   `json:"content"`
	Prompt         string                   `json:"prompt,omitempty"`
	Tags           []string                 `json:"tags,omitempty"`
	EntryType      string                   `json:"entryType,omitempty"`
	FullTranscript []journal.TranscriptLine `json:"fullTranscript,omitempty"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := s.cfg.Journal.CreateEntry(r.Context(), userID(r.Context()), journal.CreateEntryRequest{
		Content:        req.Content,
		Prompt:         req.Prompt,
		Tags:           req.Tags,
		EntryType:      req.EntryType,
		FullTranscript: req.FullTranscript,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.cfg.Metrics.RecordEntryCreated(r.Context(), entry.Metadata.EntryType)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	opts := journal.ListOptions{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	entries, err := s.cfg.Journal.ListEntries(r.Context(), userID(r.Context()), opts)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.cfg.Journal.Entry(r.Context(), userID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Journal.DeleteEntry(r.Context(), userID(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	period := journal.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = journal.PeriodWeekly
	}
	stats, err := s.cfg.Journal.Stats(r.Context(), userID(r.Context()), period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type goalsBody struct {
	Goals []string `json:"goals"`
}

func (s *Server) handleGetGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.cfg.Journal.Goals(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goalsBody{Goals: goals})
}

func (s *Server) handleSetGoals(w http.ResponseWriter, r *http.Request) {
	var req goalsBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	goals, err := s.cfg.Journal.SetGoals(r.Context(), userID(r.Context()), req.Goals)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goalsBody{Goals: goals})
}

func (s *Server) handleDailyPrompt(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Prompts == nil {
		writeError(w, http.StatusServiceUnavailable, "prompts unavailable")
		return
	}
	prompt, err := s.cfg.Prompts.Daily(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleRegeneratePrompt(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Prompts == nil {
		writeError(w, http.StatusServiceUnavailable, "prompts unavailable")
		return
	}
	prompt, err := s.cfg.Prompts.Regenerate(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prompt)
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Summaries == nil {
		writeError(w, http.StatusServiceUnavailable, "summaries unavailable")
		return
	}
	summaries, err := s.cfg.Summaries.List(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// generateSummaryRequest is the POST /api/summaries body.
type generateSummaryRequest struct {
	// Kind is "weekly" or "monthly".
	Kind string `json:"kind"`
}

func (s *Server) handleGenerateSummary(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Summaries == nil {
		writeError(w, http.StatusServiceUnavailable, "summaries unavailable")
		return
	}
	var req generateSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	summary, err := s.cfg.Summaries.Generate(r.Context(), userID(r.Context()), req.Kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// analysisHandler serves one cached analysis kind.
func (s *Server) analysisHandler(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Analyses == nil {
			writeError(w, http.StatusServiceUnavailable, "analyses unavailable")
			return
		}
		var (
			payload json.RawMessage
			err     error
		)
		uid := userID(r.Context())
		switch kind {
		case journal.AnalysisThemes:
			payload, err = s.cfg.Analyses.Themes(r.Context(), uid)
		case journal.AnalysisTopics:
			payload, err = s.cfg.Analyses.Topics(r.Context(), uid)
		default:
			payload, err = s.cfg.Analyses.Correlations(r.Context(), uid)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

// writingPromptRequest is the POST /api/writing-prompts body.
type writingPromptRequest struct {
	Content   string             `json:"content"`
	Sentiment *journal.Sentiment `json:"sentiment,omitempty"`
}

func (s *Server) handleWritingPrompt(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Writing == nil {
		writeError(w, http.StatusServiceUnavailable, "writing prompts unavailable")
		return
	}
	var req writingPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	followUp, err := s.cfg.Writing.FollowUp(r.Context(), req.Content, req.Sentiment)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, followUp)
}

// queryInt parses an optional non-negative integer query parameter. Missing
// or malformed values map to zero.
func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}
