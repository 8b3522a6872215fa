// Package insight generates the derived artifacts that hang off journal
// entries: sentiment reads, daily prompts, weekly and monthly summaries,
// cached themes/topics/correlations analyses, and writing follow-ups.
//
// Every generator goes through the pkg/provider/llm abstraction and asks for
// structured JSON output. Generators that feed entry creation degrade to
// static fallbacks instead of failing; on-demand generators (summaries,
// analyses) surface errors to the caller.
package insight

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yashv6655/journalai/internal/journal"
)

// ErrNoEntries is returned by on-demand generators when the user has no
// entries in the requested scope.
var ErrNoEntries = errors.New("insight: no entries to analyze")

// ErrUnknownKind is returned for an unrecognized summary or analysis kind.
var ErrUnknownKind = errors.New("insight: unknown kind")

// decodeJSONResponse parses an LLM reply that is expected to be a single
// JSON object. Models occasionally wrap the object in a markdown code fence
// despite JSON mode; the fence is stripped before decoding.
func decodeJSONResponse(content string, v any) error {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}
	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		return fmt.Errorf("insight: parse model response: %w", err)
	}
	return nil
}

// formatEntries renders entries into a dated plain-text block for analysis
// prompts, oldest first.
func formatEntries(entries []journal.Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "[%s] %s\n", e.CreatedAt.UTC().Format(time.DateOnly), e.Content)
	}
	return sb.String()
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// newID produces a random 16-byte hex string using crypto/rand.
func newID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
