package voice

import (
	"strings"
	"time"
)

// skipMarkers are event-type substrings identifying incremental vendor
// updates. Events carrying any of these in their type field are discarded
// before role/content resolution — only final transcriptions are kept.
var skipMarkers = []string{"partial", "interim", "progress"}

// contentFields is the ordered list of field names probed for utterance
// text. The first non-empty string wins.
var contentFields = []string{"content", "text", "message", "transcript", "body"}

// Normalize converts an arbitrary vendor event payload into a [Message].
// The second return value is false when the payload carries no usable
// message: partial/interim events, empty or whitespace-only content, and
// structurally malformed payloads are all dropped rather than reported as
// errors.
//
// Normalize is a pure function of its input apart from the local-time
// fallback used when the payload carries no timestamp.
func Normalize(payload any) (Message, bool) {
	switch v := payload.(type) {
	case Message:
		if v.Role.IsValid() && strings.TrimSpace(v.Content) != "" {
			v.Content = strings.TrimSpace(v.Content)
			if v.Timestamp.IsZero() {
				v.Timestamp = time.Now()
			}
			return v, true
		}
		return Message{}, false
	case map[string]any:
		return normalizeFields(v)
	default:
		return Message{}, false
	}
}

// NormalizeBatch applies [Normalize] to each element of a vendor-supplied
// array payload, preserving order and dropping elements that resolve to no
// message. Non-array payloads yield a single-element batch when they
// normalize successfully.
func NormalizeBatch(payload any) []Message {
	items, ok := payload.([]any)
	if !ok {
		if m, ok := Normalize(payload); ok {
			return []Message{m}
		}
		return nil
	}

	out := make([]Message, 0, len(items))
	for _, item := range items {
		if m, ok := Normalize(item); ok {
			out = append(out, m)
		}
	}
	return out
}

func normalizeFields(fields map[string]any) (Message, bool) {
	if typ, ok := stringField(fields, "type"); ok {
		lower := strings.ToLower(typ)
		for _, marker := range skipMarkers {
			if strings.Contains(lower, marker) {
				return Message{}, false
			}
		}
	}

	content := resolveContent(fields)
	if content == "" {
		return Message{}, false
	}

	return Message{
		Role:      resolveRole(fields),
		Content:   content,
		Timestamp: resolveTimestamp(fields),
	}, true
}

// resolveRole probes the payload for the speaker identity. Resolution
// order: explicit role field, event-type string variants, speaker field,
// from field. Unresolvable payloads default to the assistant role — the
// vendor's own speech is the safest assumption for unattributed events.
func resolveRole(fields map[string]any) Role {
	if raw, ok := stringField(fields, "role"); ok {
		if r := Role(strings.ToLower(raw)); r.IsValid() {
			return r
		}
	}

	if typ, ok := stringField(fields, "type"); ok {
		if r, ok := roleFromVariant(typ); ok {
			return r
		}
	}

	for _, field := range []string{"speaker", "from"} {
		if raw, ok := stringField(fields, field); ok {
			if r, ok := roleFromVariant(raw); ok {
				return r
			}
		}
	}

	return RoleAssistant
}

// roleFromVariant maps vendor naming variants ("user-message", "caller",
// "agent", ...) onto a role.
func roleFromVariant(s string) (Role, bool) {
	switch strings.ToLower(s) {
	case "user", "user-message", "usermessage", "caller":
		return RoleUser, true
	case "assistant", "assistant-message", "assistantmessage", "agent":
		return RoleAssistant, true
	}
	return "", false
}

func resolveContent(fields map[string]any) string {
	for _, field := range contentFields {
		if raw, ok := stringField(fields, field); ok {
			if trimmed := strings.TrimSpace(raw); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// resolveTimestamp reads the event timestamp from the "timestamp" or "time"
// field, accepting epoch milliseconds, epoch seconds, or RFC 3339 strings.
// Falls back to the local clock.
func resolveTimestamp(fields map[string]any) time.Time {
	for _, field := range []string{"timestamp", "time"} {
		raw, ok := fields[field]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			if t, ok := epochTime(v); ok {
				return t
			}
		case int64:
			if t, ok := epochTime(float64(v)); ok {
				return t
			}
		case int:
			if t, ok := epochTime(float64(v)); ok {
				return t
			}
		case string:
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return t
			}
		}
	}
	return time.Now()
}

// epochTime interprets v as epoch milliseconds when it is large enough to
// plausibly be one, epoch seconds otherwise.
func epochTime(v float64) (time.Time, bool) {
	if v <= 0 {
		return time.Time{}, false
	}
	const millisThreshold = 1e12 // ~2001 in millis, ~33658 in seconds
	if v >= millisThreshold {
		return time.UnixMilli(int64(v)), true
	}
	return time.Unix(int64(v), 0), true
}

func stringField(fields map[string]any, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}
