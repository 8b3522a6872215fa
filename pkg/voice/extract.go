package voice

import "strings"

// UserContent extracts the journal-worthy text from a transcript: the
// content of every user-role message, trimmed and joined with single
// spaces, preserving order. Returns "" when the user never spoke.
func UserContent(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		if c := strings.TrimSpace(m.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

// AllContent joins the content of every message regardless of role. It is
// the last-resort fallback when user-role extraction yields nothing but
// messages exist — role attribution is heuristic, so a misclassified
// transcript is still worth saving over declaring the session a failure.
func AllContent(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		if c := strings.TrimSpace(m.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}
