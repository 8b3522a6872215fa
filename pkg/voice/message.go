// Package voice implements the voice journaling session engine.
//
// A [Session] drives one real-time call with a conversational voice vendor:
// it normalizes the vendor's heterogeneous event payloads into [Message]
// values, accumulates them in a [Transcript] with duplicate/refinement
// merging, and at call end extracts the user's speech and submits it as a
// journal entry through a [Submitter].
//
// Vendor event payloads are untrusted and best-effort: normalization never
// returns an error and never aborts the call — events that cannot be
// resolved into a message are simply dropped.
package voice

import "time"

// Role identifies who produced an utterance.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is a single normalized speech turn captured during a call.
type Message struct {
	// Role is who produced the utterance.
	Role Role `json:"role"`

	// Content is the non-empty, whitespace-trimmed utterance text.
	Content string `json:"content"`

	// Timestamp is the vendor-supplied event time, or the local capture
	// time when the vendor did not provide one. Not guaranteed strictly
	// increasing across event sources.
	Timestamp time.Time `json:"timestamp"`
}
