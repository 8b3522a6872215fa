package voice

import (
	"testing"
	"time"
)

func TestNormalizeRoleResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload map[string]any
		want    Role
	}{
		{"explicit role field", map[string]any{"role": "user", "content": "hi"}, RoleUser},
		{"explicit role wins over speaker", map[string]any{"role": "system", "speaker": "caller", "content": "hi"}, RoleSystem},
		{"role case-insensitive", map[string]any{"role": "User", "content": "hi"}, RoleUser},
		{"type user-message", map[string]any{"type": "user-message", "text": "hi"}, RoleUser},
		{"type userMessage", map[string]any{"type": "userMessage", "text": "hi"}, RoleUser},
		{"type assistant-message", map[string]any{"type": "assistant-message", "text": "hi"}, RoleAssistant},
		{"speaker caller", map[string]any{"speaker": "caller", "content": "hi"}, RoleUser},
		{"speaker agent", map[string]any{"speaker": "agent", "content": "hi"}, RoleAssistant},
		{"from user", map[string]any{"from": "user", "content": "hi"}, RoleUser},
		{"unknown role string falls through to speaker", map[string]any{"role": "caller?", "speaker": "user", "content": "hi"}, RoleUser},
		{"no identity defaults to assistant", map[string]any{"content": "hi"}, RoleAssistant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, ok := Normalize(tt.payload)
			if !ok {
				t.Fatalf("Normalize returned no message")
			}
			if m.Role != tt.want {
				t.Fatalf("role = %q, want %q", m.Role, tt.want)
			}
		})
	}
}

func TestNormalizeContentResolution(t *testing.T) {
	t.Parallel()

	t.Run("probe order", func(t *testing.T) {
		t.Parallel()
		m, ok := Normalize(map[string]any{
			"text":    "second",
			"content": "first",
			"body":    "last",
		})
		if !ok || m.Content != "first" {
			t.Fatalf("content = %q, want %q", m.Content, "first")
		}
	})

	t.Run("falls to later fields when earlier empty", func(t *testing.T) {
		t.Parallel()
		m, ok := Normalize(map[string]any{
			"content":    "   ",
			"transcript": "the walk was nice",
		})
		if !ok || m.Content != "the walk was nice" {
			t.Fatalf("content = %q, want transcript field", m.Content)
		}
	})

	t.Run("trims whitespace", func(t *testing.T) {
		t.Parallel()
		m, ok := Normalize(map[string]any{"content": "  hello  "})
		if !ok || m.Content != "hello" {
			t.Fatalf("content = %q, want %q", m.Content, "hello")
		}
	})

	t.Run("non-string content fields are skipped", func(t *testing.T) {
		t.Parallel()
		m, ok := Normalize(map[string]any{
			"transcript": []any{"not", "a", "string"},
			"body":       "fallback",
		})
		if !ok || m.Content != "fallback" {
			t.Fatalf("content = %q, want %q", m.Content, "fallback")
		}
	})
}

func TestNormalizeDiscards(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload any
	}{
		{"partial event", map[string]any{"type": "transcript-partial", "content": "I went"}},
		{"interim event", map[string]any{"type": "interim-result", "content": "I went"}},
		{"progress event", map[string]any{"type": "speech-progress", "content": "I went"}},
		{"empty content", map[string]any{"role": "user", "content": ""}},
		{"whitespace content", map[string]any{"role": "user", "content": " \t\n"}},
		{"no content fields", map[string]any{"role": "user", "confidence": 0.9}},
		{"nil payload", nil},
		{"scalar payload", 42},
		{"string payload", "not an event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, ok := Normalize(tt.payload); ok {
				t.Fatalf("Normalize accepted payload %v", tt.payload)
			}
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	t.Parallel()

	t.Run("epoch millis", func(t *testing.T) {
		t.Parallel()
		m, ok := Normalize(map[string]any{"content": "hi", "timestamp": float64(1700000000000)})
		if !ok {
			t.Fatal("no message")
		}
		if got := m.Timestamp.UTC(); got != time.UnixMilli(1700000000000).UTC() {
			t.Fatalf("timestamp = %v", got)
		}
	})

	t.Run("epoch seconds", func(t *testing.T) {
		t.Parallel()
		m, ok := Normalize(map[string]any{"content": "hi", "time": float64(1700000000)})
		if !ok {
			t.Fatal("no message")
		}
		if got := m.Timestamp.UTC(); got != time.Unix(1700000000, 0).UTC() {
			t.Fatalf("timestamp = %v", got)
		}
	})

	t.Run("rfc3339", func(t *testing.T) {
		t.Parallel()
		m, ok := Normalize(map[string]any{"content": "hi", "timestamp": "2026-01-02T15:04:05Z"})
		if !ok {
			t.Fatal("no message")
		}
		want, _ := time.Parse(time.RFC3339, "2026-01-02T15:04:05Z")
		if !m.Timestamp.Equal(want) {
			t.Fatalf("timestamp = %v, want %v", m.Timestamp, want)
		}
	})

	t.Run("missing falls back to local clock", func(t *testing.T) {
		t.Parallel()
		before := time.Now()
		m, ok := Normalize(map[string]any{"content": "hi"})
		after := time.Now()
		if !ok {
			t.Fatal("no message")
		}
		if m.Timestamp.Before(before) || m.Timestamp.After(after) {
			t.Fatalf("timestamp %v outside [%v, %v]", m.Timestamp, before, after)
		}
	})
}

func TestNormalizeBatch(t *testing.T) {
	t.Parallel()

	t.Run("array drops unusable elements", func(t *testing.T) {
		t.Parallel()
		got := NormalizeBatch([]any{
			map[string]any{"role": "user", "content": "one"},
			map[string]any{"type": "transcript-partial", "content": "two"},
			map[string]any{"content": ""},
			map[string]any{"role": "assistant", "content": "three"},
		})
		if len(got) != 2 {
			t.Fatalf("got %d messages, want 2", len(got))
		}
		if got[0].Content != "one" || got[1].Content != "three" {
			t.Fatalf("unexpected batch contents: %+v", got)
		}
	})

	t.Run("only partial events yields empty batch", func(t *testing.T) {
		t.Parallel()
		got := NormalizeBatch([]any{
			map[string]any{"type": "transcript-partial", "content": "a"},
			map[string]any{"type": "interim", "text": "b"},
			map[string]any{"type": "progress-update", "message": "c"},
		})
		if len(got) != 0 {
			t.Fatalf("got %d messages, want 0", len(got))
		}
	})

	t.Run("single object payload", func(t *testing.T) {
		t.Parallel()
		got := NormalizeBatch(map[string]any{"role": "user", "content": "solo"})
		if len(got) != 1 || got[0].Content != "solo" {
			t.Fatalf("unexpected batch: %+v", got)
		}
	})
}
