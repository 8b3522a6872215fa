package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Submission is the payload handed to the entry-creation boundary when a
// voice session completes.
type Submission struct {
	// Content is the extracted user speech. Must be non-empty after
	// trimming; [Submitter.Submit] rejects empty content.
	Content string

	// Prompt is the reflection prompt the entry is responding to.
	Prompt string

	// Tags are optional entry tags.
	Tags []string

	// Transcript is the full conversation, stored verbatim for voice
	// provenance.
	Transcript []Message
}

// SubmitResult carries the created entry as returned by the entry API,
// including any server-computed fields such as sentiment.
type SubmitResult struct {
	Entry json.RawMessage
}

// Submitter hands a completed voice session to the external entry-creation
// interface. Implementations perform no retries — the caller decides
// whether the user retries the whole session.
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (SubmitResult, error)
}

// defaultSubmitTimeout bounds a single entry-creation request.
const defaultSubmitTimeout = 30 * time.Second

// APISubmitter submits voice entries to the journal entry API over HTTP.
type APISubmitter struct {
	baseURL string
	token   string
	client  *http.Client
}

// APIOption is a functional option for [NewAPISubmitter].
type APIOption func(*APISubmitter)

// WithHTTPClient overrides the HTTP client used for submission.
func WithHTTPClient(c *http.Client) APIOption {
	return func(s *APISubmitter) { s.client = c }
}

// NewAPISubmitter creates a submitter posting to baseURL's /api/entries
// endpoint, authenticating with the given bearer token.
func NewAPISubmitter(baseURL, token string, opts ...APIOption) (*APISubmitter, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("voice: submitter baseURL must not be empty")
	}
	s := &APISubmitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: defaultSubmitTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// entryRequest is the wire shape of the entry-creation request body.
type entryRequest struct {
	Content        string    `json:"content"`
	Prompt         string    `json:"prompt,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	FullTranscript []Message `json:"fullTranscript,omitempty"`
	EntryType      string    `json:"entryType"`
}

// Submit implements [Submitter]. Non-2xx responses surface the API's error
// field when present, a generic failure message otherwise.
func (s *APISubmitter) Submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	if strings.TrimSpace(sub.Content) == "" {
		return SubmitResult{}, fmt.Errorf("voice: submission content must not be empty")
	}

	body, err := json.Marshal(entryRequest{
		Content:        sub.Content,
		Prompt:         sub.Prompt,
		Tags:           sub.Tags,
		FullTranscript: sub.Transcript,
		EntryType:      "voice",
	})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("voice: encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/entries", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("voice: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("voice: submit entry: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("voice: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return SubmitResult{}, fmt.Errorf("voice: entry API: %s", apiErr.Error)
		}
		return SubmitResult{}, fmt.Errorf("voice: entry API returned status %d", resp.StatusCode)
	}

	if !json.Valid(data) {
		return SubmitResult{}, fmt.Errorf("voice: entry API returned malformed body")
	}
	return SubmitResult{Entry: json.RawMessage(data)}, nil
}
