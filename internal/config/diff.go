package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VoicePromptsChanged is true when the assistant system prompt or first
	// message changed. New voice sessions pick these up immediately.
	VoicePromptsChanged bool

	// RateLimitChanged is true when any rate-limit bound changed.
	RateLimitChanged bool
	NewRateLimit     RateLimitConfig

	// TokensChanged is true when the auth token list changed in any way.
	TokensChanged bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Voice.SystemPrompt != new.Voice.SystemPrompt ||
		old.Voice.FirstMessage != new.Voice.FirstMessage {
		d.VoicePromptsChanged = true
	}

	if old.RateLimit != new.RateLimit {
		d.RateLimitChanged = true
		d.NewRateLimit = new.RateLimit
	}

	d.TokensChanged = tokensDiffer(old.Auth.Tokens, new.Auth.Tokens)

	return d
}

// tokensDiffer reports whether the two token lists map credentials to users
// differently. Order is irrelevant.
func tokensDiffer(old, new []TokenConfig) bool {
	if len(old) != len(new) {
		return true
	}
	users := make(map[string]string, len(old))
	for _, t := range old {
		users[t.Token] = t.UserID
	}
	for _, t := range new {
		if users[t.Token] != t.UserID {
			return true
		}
	}
	return false
}
