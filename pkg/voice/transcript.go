package voice

import (
	"strings"
	"time"
)

// Transcript maintains the ordered, deduplicated message list for one call
// session. Voice vendors emit the same logical utterance multiple times with
// growing completeness ("I went" → "I went for a" → "I went for a walk");
// [Transcript.Append] collapses those repeats so the final transcript holds
// each utterance once.
//
// Transcript is not safe for concurrent use — the owning [Session]
// serializes all access.
type Transcript struct {
	messages       []Message
	lastUserSpeech time.Time
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds candidate to the transcript, applying the merge rule for
// consecutive same-role messages:
//
//   - identical content: the candidate is an exact duplicate and is dropped;
//   - one content a substring of the other (either direction): the candidate
//     refines the same utterance and replaces the last entry — later
//     delivery means a more complete transcription;
//   - otherwise: the candidate is a new, distinct utterance and is appended.
//
// Messages from different roles never merge.
func (t *Transcript) Append(candidate Message) {
	if n := len(t.messages); n > 0 {
		last := t.messages[n-1]
		if last.Role == candidate.Role {
			if last.Content == candidate.Content {
				return
			}
			if strings.Contains(candidate.Content, last.Content) ||
				strings.Contains(last.Content, candidate.Content) {
				t.messages[n-1] = candidate
				t.noteSpeech(candidate)
				return
			}
		}
	}

	t.messages = append(t.messages, candidate)
	t.noteSpeech(candidate)
}

// AppendBatch applies [Transcript.Append] to each candidate in order.
func (t *Transcript) AppendBatch(candidates []Message) {
	for _, c := range candidates {
		t.Append(c)
	}
}

// AppendFinal merges late transcript fragments supplied by a call-end
// payload. Fragments whose exact content is already present anywhere in the
// transcript are skipped — end-of-call payloads typically replay the whole
// conversation — and the rest go through the normal merge rule.
func (t *Transcript) AppendFinal(candidates []Message) {
	if len(candidates) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(t.messages))
	for _, m := range t.messages {
		seen[m.Content] = struct{}{}
	}
	for _, c := range candidates {
		if _, dup := seen[c.Content]; dup {
			continue
		}
		t.Append(c)
		seen[c.Content] = struct{}{}
	}
}

// Messages returns a copy of the accumulated messages in arrival order.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of accumulated messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// LastUserSpeech returns the wall-clock time the most recent user-role
// message was accepted. Zero when the user has not spoken. Used only by the
// optional silence-end heuristic.
func (t *Transcript) LastUserSpeech() time.Time {
	return t.lastUserSpeech
}

func (t *Transcript) noteSpeech(m Message) {
	if m.Role == RoleUser {
		t.lastUserSpeech = time.Now()
	}
}
