package journal

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// promptMatches reports whether the prompt recorded on an entry answers the
// daily prompt. Voice transcripts garble prompt wording (dropped punctuation,
// misheard words), so after normalization an OSA edit distance of up to 20%
// of the prompt length still counts as a match.
func promptMatches(entryPrompt, dailyPrompt string) bool {
	a := normalizePrompt(entryPrompt)
	b := normalizePrompt(dailyPrompt)
	if a == "" || b == "" {
		return false
	}
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}

	longer := len(a)
	if len(b) > longer {
		longer = len(b)
	}
	tolerance := longer / 5
	if tolerance < 3 {
		tolerance = 3
	}
	return matchr.OSA(a, b) <= tolerance
}

// normalizePrompt lowercases, strips everything but letters, digits, and
// spaces, and collapses whitespace runs.
func normalizePrompt(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}
