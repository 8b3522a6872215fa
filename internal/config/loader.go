package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider names only warn; custom providers may be registered at startup.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// Provider availability warnings
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; sentiment analysis, prompts, and summaries will be unavailable")
	}

	// Embeddings ↔ storage dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but storage.embedding_dimensions is not set; defaulting to 1536")
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; falling back to the in-memory store and losing data on restart")
	}

	// Voice
	if cfg.Voice.VapiAPIKey != "" && cfg.Voice.VapiAssistantID == "" {
		errs = append(errs, errors.New("voice.vapi_assistant_id is required when voice.vapi_api_key is set"))
	}
	if cfg.Voice.MaxCallDuration < 0 || cfg.Voice.MinCallDuration < 0 ||
		cfg.Voice.SettleDelay < 0 || cfg.Voice.SilenceTimeout < 0 {
		errs = append(errs, errors.New("voice durations must not be negative"))
	}
	if cfg.Voice.MaxCallDuration > 0 && cfg.Voice.MinCallDuration > cfg.Voice.MaxCallDuration {
		errs = append(errs, fmt.Errorf("voice.min_call_duration %s exceeds voice.max_call_duration %s",
			cfg.Voice.MinCallDuration.Std(), cfg.Voice.MaxCallDuration.Std()))
	}

	// Rate limits
	if cfg.RateLimit.EntriesPerWindow < 0 || cfg.RateLimit.AnalysesPerWindow < 0 {
		errs = append(errs, errors.New("rate_limit counts must not be negative"))
	}
	if cfg.RateLimit.Window < 0 {
		errs = append(errs, errors.New("rate_limit.window must not be negative"))
	}

	// Auth tokens
	tokensSeen := make(map[string]int, len(cfg.Auth.Tokens))
	for i, tok := range cfg.Auth.Tokens {
		prefix := fmt.Sprintf("auth.tokens[%d]", i)
		if tok.Token == "" {
			errs = append(errs, fmt.Errorf("%s.token is required", prefix))
		} else {
			if prev, ok := tokensSeen[tok.Token]; ok {
				errs = append(errs, fmt.Errorf("%s.token is a duplicate of auth.tokens[%d]", prefix, prev))
			}
			tokensSeen[tok.Token] = i
		}
		if tok.UserID == "" {
			errs = append(errs, fmt.Errorf("%s.user_id is required", prefix))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
