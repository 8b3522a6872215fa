// Package server exposes the journaling platform over HTTP: entry CRUD,
// stats, daily prompts, summaries, cached analyses, and writing follow-ups,
// plus health probes and Prometheus metrics.
//
// Every /api route runs behind the [Authenticator] boundary and resolves the
// request to one user; handlers never accept a user ID from the client.
// Errors are always a JSON object with a single "error" field.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yashv6655/journalai/internal/health"
	"github.com/yashv6655/journalai/internal/insight"
	"github.com/yashv6655/journalai/internal/journal"
	"github.com/yashv6655/journalai/internal/observe"
	"github.com/yashv6655/journalai/internal/ratelimit"
)

// Config wires the server's collaborators. Journal and Auth are required;
// the insight services may be nil, in which case their routes return 503.
type Config struct {
	Journal   *journal.Service
	Prompts   *insight.PromptService
	Summaries *insight.Summarizer
	Analyses  *insight.AnalysisService
	Writing   *insight.WritingCoach

	Auth    Authenticator
	Health  *health.Handler
	Metrics *observe.Metrics

	// EntryLimiter bounds entry creations per user; AnalysisLimiter bounds
	// the LLM-backed read endpoints. A nil limiter disables the bound.
	EntryLimiter    *ratelimit.Limiter
	AnalysisLimiter *ratelimit.Limiter

	// Voice is the initial call configuration served to voice clients.
	Voice VoiceSettings
}

// Server is the HTTP front of the journaling platform.
type Server struct {
	cfg   Config
	voice voiceConfig
}

// New validates cfg and builds a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Journal == nil {
		return nil, errors.New("server: journal service is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("server: authenticator is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Health == nil {
		cfg.Health = health.New()
	}
	return &Server{cfg: cfg, voice: voiceConfig{settings: cfg.Voice}}, nil
}

// Handler returns the fully wired HTTP handler: routes, auth, per-route rate
// limits, and the observe middleware on the outside.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/entries",
		s.authed(s.limited(s.cfg.EntryLimiter, "entries", s.handleCreateEntry)))
	mux.Handle("GET /api/entries", s.authed(s.handleListEntries))
	mux.Handle("GET /api/entries/{id}", s.authed(s.handleGetEntry))
	mux.Handle("DELETE /api/entries/{id}", s.authed(s.handleDeleteEntry))

	mux.Handle("GET /api/stats", s.authed(s.handleStats))

	mux.Handle("GET /api/user/goals", s.authed(s.handleGetGoals))
	mux.Handle("PUT /api/user/goals", s.authed(s.handleSetGoals))

	mux.Handle("GET /api/voice-config", s.authed(s.handleVoiceConfig))

	mux.Handle("GET /api/prompts", s.authed(s.handleDailyPrompt))
	mux.Handle("POST /api/prompts/regenerate",
		s.authed(s.limited(s.cfg.AnalysisLimiter, "prompts", s.handleRegeneratePrompt)))

	mux.Handle("GET /api/summaries", s.authed(s.handleListSummaries))
	mux.Handle("POST /api/summaries",
		s.authed(s.limited(s.cfg.AnalysisLimiter, "summaries", s.handleGenerateSummary)))

	mux.Handle("GET /api/themes",
		s.authed(s.limited(s.cfg.AnalysisLimiter, "themes", s.analysisHandler(journal.AnalysisThemes))))
	mux.Handle("GET /api/topics",
		s.authed(s.limited(s.cfg.AnalysisLimiter, "topics", s.analysisHandler(journal.AnalysisTopics))))
	mux.Handle("GET /api/correlations",
		s.authed(s.limited(s.cfg.AnalysisLimiter, "correlations", s.analysisHandler(journal.AnalysisCorrelations))))

	mux.Handle("POST /api/writing-prompts",
		s.authed(s.limited(s.cfg.AnalysisLimiter, "writing-prompts", s.handleWritingPrompt)))

	s.cfg.Health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.cfg.Metrics)(mux)
}

// authed resolves the request's user via the [Authenticator] and stores the
// user ID on the context. Unauthenticated requests get a 401.
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.cfg.Auth.Authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(withUserID(r.Context(), id)))
	})
}

// limited applies a per-user fixed-window rate limit. The decision is always
// reflected in X-RateLimit-* headers; denied requests get a 429 with a reset
// hint.
func (s *Server) limited(l *ratelimit.Limiter, route string, next http.HandlerFunc) http.HandlerFunc {
	if l == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		d := l.Allow(userID(r.Context()))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetTime.Unix(), 10))
		if !d.Allowed {
			s.cfg.Metrics.RecordRateLimitRejection(r.Context(), route)
			if wait := time.Until(d.ResetTime); wait > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			}
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}
