package server

import (
	"net/http"
	"sync"
)

// VoiceSettings is the call configuration handed to voice clients. The
// server is the single source of truth, so prompt or duration changes reach
// clients on their next call without an app update. The vendor API key is
// deliberately absent; clients receive only what they need to join a call.
type VoiceSettings struct {
	AssistantID    string  `json:"assistantId,omitempty"`
	SystemPrompt   string  `json:"systemPrompt,omitempty"`
	FirstMessage   string  `json:"firstMessage,omitempty"`
	MaxCallSeconds int     `json:"maxCallSeconds,omitempty"`
	MinCallSeconds int     `json:"minCallSeconds,omitempty"`
	SettleSeconds  float64 `json:"settleSeconds,omitempty"`
	SilenceEnd     bool    `json:"silenceEnd"`
	SilenceSeconds int     `json:"silenceSeconds,omitempty"`
}

type voiceConfig struct {
	mu       sync.RWMutex
	settings VoiceSettings
}

func (v *voiceConfig) get() VoiceSettings {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.settings
}

// SetVoiceSettings replaces the settings served on /api/voice-config. The
// config watcher calls this when the voice section changes.
func (s *Server) SetVoiceSettings(settings VoiceSettings) {
	s.voice.mu.Lock()
	s.voice.settings = settings
	s.voice.mu.Unlock()
}

func (s *Server) handleVoiceConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.voice.get())
}
