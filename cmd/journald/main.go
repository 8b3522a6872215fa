// Command journald is the journaling platform server: entry API, insight
// generation, and the storage layer behind them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/yashv6655/journalai/internal/config"
	"github.com/yashv6655/journalai/internal/health"
	"github.com/yashv6655/journalai/internal/insight"
	"github.com/yashv6655/journalai/internal/journal"
	"github.com/yashv6655/journalai/internal/journal/memstore"
	"github.com/yashv6655/journalai/internal/observe"
	"github.com/yashv6655/journalai/internal/ratelimit"
	"github.com/yashv6655/journalai/internal/server"
	"github.com/yashv6655/journalai/internal/store/postgres"
	"github.com/yashv6655/journalai/pkg/provider/embeddings"
	ollamaembed "github.com/yashv6655/journalai/pkg/provider/embeddings/ollama"
	oaembed "github.com/yashv6655/journalai/pkg/provider/embeddings/openai"
	"github.com/yashv6655/journalai/pkg/provider/llm"
	"github.com/yashv6655/journalai/pkg/provider/llm/anyllm"
	oallm "github.com/yashv6655/journalai/pkg/provider/llm/openai"
)

const (
	defaultListenAddr          = ":8080"
	defaultEmbeddingDimensions = 1536
	defaultEntriesPerWindow    = 30
	defaultAnalysesPerWindow   = 20
	defaultRateLimitWindow     = time.Hour
	shutdownTimeout            = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "journald: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "journald: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// A LevelVar so the config watcher can raise or lower verbosity live.
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("journald starting",
		"config", *configPath,
		"listen_addr", listenAddr(cfg),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "journalai"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	llmProvider, embedder := buildProviders(cfg, reg)

	// ── Store ─────────────────────────────────────────────────────────────────
	var (
		store    journal.Store
		checkers []health.Checker
	)
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		dims := cfg.Storage.EmbeddingDimensions
		if dims == 0 {
			if embedder != nil {
				dims = embedder.Dimensions()
			} else {
				dims = defaultEmbeddingDimensions
			}
		}
		pg, err := postgres.New(ctx, dsn, dims)
		if err != nil {
			slog.Error("failed to open postgres store", "err", err)
			return 1
		}
		defer pg.Close()
		store = pg
		checkers = append(checkers, health.Checker{Name: "database", Check: pg.Ping})
		slog.Info("postgres store ready", "embedding_dimensions", dims)
	} else {
		store = memstore.New()
		slog.Warn("no postgres_dsn configured, entries are held in memory and lost on restart")
	}

	// ── Journal and insight services ──────────────────────────────────────────
	journalOpts := []journal.ServiceOption{}
	if llmProvider != nil {
		journalOpts = append(journalOpts, journal.WithSentimentAnalyzer(insight.NewSentimentAnalyzer(llmProvider)))
	}
	if embedder != nil {
		journalOpts = append(journalOpts, journal.WithEmbedder(embedder))
	}
	journalSvc, err := journal.NewService(store, journalOpts...)
	if err != nil {
		slog.Error("failed to initialise journal service", "err", err)
		return 1
	}

	promptOpts := []insight.PromptOption{}
	if llmProvider != nil {
		promptOpts = append(promptOpts, insight.WithPromptLLM(llmProvider))
	}
	if embedder != nil {
		promptOpts = append(promptOpts, insight.WithPromptEmbedder(embedder))
	}
	prompts, err := insight.NewPromptService(store, promptOpts...)
	if err != nil {
		slog.Error("failed to initialise prompt service", "err", err)
		return 1
	}

	var (
		summaries *insight.Summarizer
		analyses  *insight.AnalysisService
	)
	if llmProvider != nil {
		if summaries, err = insight.NewSummarizer(store, llmProvider); err != nil {
			slog.Error("failed to initialise summarizer", "err", err)
			return 1
		}
		if analyses, err = insight.NewAnalysisService(store, llmProvider); err != nil {
			slog.Error("failed to initialise analysis service", "err", err)
			return 1
		}
	} else {
		slog.Warn("no llm provider configured, summaries and analyses are unavailable")
	}

	if cfg.Summaries.AutoWeekly && summaries != nil {
		sched, err := insight.NewSummaryScheduler(insight.SummarySchedulerConfig{
			Summaries: summaries,
			Interval:  cfg.Summaries.SweepInterval.Std(),
		})
		if err != nil {
			slog.Error("failed to initialise summary scheduler", "err", err)
			return 1
		}
		sched.Start(ctx)
		defer sched.Stop()
		slog.Info("weekly summary sweep enabled", "interval", cfg.Summaries.SweepInterval.Std())
	}

	// ── Auth and rate limits ──────────────────────────────────────────────────
	auth := server.NewStaticTokens(tokenMap(cfg.Auth))
	if len(cfg.Auth.Tokens) == 0 {
		slog.Warn("no auth tokens configured, every API request will be rejected")
	}

	entryLimiter := ratelimit.New(limitOr(cfg.RateLimit.EntriesPerWindow, defaultEntriesPerWindow), windowOr(cfg.RateLimit.Window))
	analysisLimiter := ratelimit.New(limitOr(cfg.RateLimit.AnalysesPerWindow, defaultAnalysesPerWindow), windowOr(cfg.RateLimit.Window))

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv, err := server.New(server.Config{
		Journal:         journalSvc,
		Prompts:         prompts,
		Summaries:       summaries,
		Analyses:        analyses,
		Writing:         insight.NewWritingCoach(llmProvider),
		Auth:            auth,
		Health:          health.New(checkers...),
		Metrics:         observe.DefaultMetrics(),
		EntryLimiter:    entryLimiter,
		AnalysisLimiter: analysisLimiter,
		Voice:           voiceSettings(cfg.Voice),
	})
	if err != nil {
		slog.Error("failed to assemble server", "err", err)
		return 1
	}

	httpSrv := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.RateLimitChanged {
			entryLimiter.SetLimit(limitOr(d.NewRateLimit.EntriesPerWindow, defaultEntriesPerWindow), windowOr(d.NewRateLimit.Window))
			analysisLimiter.SetLimit(limitOr(d.NewRateLimit.AnalysesPerWindow, defaultAnalysesPerWindow), windowOr(d.NewRateLimit.Window))
			slog.Info("rate limits changed")
		}
		if d.VoicePromptsChanged {
			srv.SetVoiceSettings(voiceSettings(new.Voice))
			slog.Info("voice settings reloaded")
		}
		if d.TokensChanged {
			auth.Replace(tokenMap(new.Auth))
			slog.Info("auth tokens reloaded", "count", len(new.Auth.Tokens))
		}
	})
	if err != nil {
		slog.Warn("config watcher unavailable, hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── Serve ─────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		if tls := cfg.Server.TLS; tls != nil {
			errCh <- httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			errCh <- httpSrv.ListenAndServe()
		}
	}()
	slog.Info("server ready", "addr", httpSrv.Addr, "tls", cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the shipped provider factories into reg.
// "openai" uses the native openai-go client; the remaining LLM names go
// through any-llm-go's unified interface.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oallm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oallm.WithBaseURL(entry.BaseURL))
		}
		return oallm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})
}

// buildProviders instantiates the configured LLM and embeddings providers,
// wrapped so every call records latency and error metrics. Both are
// optional: the journal degrades to static fallbacks without them.
func buildProviders(cfg *config.Config, reg *config.Registry) (llm.Provider, embeddings.Provider) {
	metrics := observe.DefaultMetrics()

	var llmProvider llm.Provider
	if name := cfg.Providers.LLM.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.LLM)
		if err != nil {
			slog.Warn("llm provider unavailable", "name", name, "err", err)
		} else {
			llmProvider = observe.InstrumentLLM(p, metrics, name)
			slog.Info("provider created", "kind", "llm", "name", name, "model", cfg.Providers.LLM.Model)
		}
	}

	var embedder embeddings.Provider
	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			slog.Warn("embeddings provider unavailable", "name", name, "err", err)
		} else {
			embedder = observe.InstrumentEmbeddings(p, metrics, name)
			slog.Info("provider created", "kind", "embeddings", "name", name, "model", cfg.Providers.Embeddings.Model)
		}
	}

	return llmProvider, embedder
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return defaultListenAddr
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func tokenMap(auth config.AuthConfig) map[string]string {
	m := make(map[string]string, len(auth.Tokens))
	for _, t := range auth.Tokens {
		m[t.Token] = t.UserID
	}
	return m
}

func voiceSettings(v config.VoiceConfig) server.VoiceSettings {
	return server.VoiceSettings{
		AssistantID:    v.VapiAssistantID,
		SystemPrompt:   v.SystemPrompt,
		FirstMessage:   v.FirstMessage,
		MaxCallSeconds: int(v.MaxCallDuration.Std().Seconds()),
		MinCallSeconds: int(v.MinCallDuration.Std().Seconds()),
		SettleSeconds:  v.SettleDelay.Std().Seconds(),
		SilenceEnd:     v.SilenceEnd,
		SilenceSeconds: int(v.SilenceTimeout.Std().Seconds()),
	}
}

func limitOr(limit, fallback int) int {
	if limit > 0 {
		return limit
	}
	return fallback
}

func windowOr(w config.Duration) time.Duration {
	if w.Std() > 0 {
		return w.Std()
	}
	return defaultRateLimitWindow
}
