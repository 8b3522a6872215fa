package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Status is the call session lifecycle state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusActive     Status = "active"
	StatusEnding     Status = "ending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Terminal reports whether s is a sink state. Once a session reaches a
// terminal state no further transitions occur; a new session must be
// constructed to start another call.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// EndReason identifies which trigger ended a call. Exactly one trigger wins
// per session; the rest are ignored by the finish latch.
type EndReason string

const (
	EndReasonManual  EndReason = "manual"
	EndReasonVendor  EndReason = "vendor"
	EndReasonTimeout EndReason = "timeout"
	EndReasonSilence EndReason = "silence"
)

// Default call timing. The duration ceiling is enforced; the floor is
// advisory only and gates the optional silence heuristic.
const (
	DefaultMaxCallDuration = 6 * time.Minute
	DefaultMinCallDuration = 2 * time.Minute
	DefaultSettleDelay     = 1 * time.Second
	DefaultSilenceTimeout  = 8 * time.Second
)

// User-facing failure messages. Vendor-supplied detail is preferred where
// available; these are the fallbacks.
const (
	msgMicrophoneDenied = "Microphone access is required for voice journaling. Please allow microphone access and try again."
	msgStartFailed      = "Failed to start voice call. Please try again."
	msgNoSpeech         = "No speech detected. Please try speaking again or switch to text mode."
	msgCallError        = "An error occurred during the call. Please try again."
	msgSaveFailed       = "Failed to save entry. Please try again."
)

// SessionConfig configures a [Session].
type SessionConfig struct {
	// Vendor is the voice vendor client. Required.
	Vendor VendorClient

	// Microphone is the host platform's media-permission boundary.
	// Required.
	Microphone MicrophoneSource

	// Submitter receives the completed entry. Required.
	Submitter Submitter

	// Prompt is the reflection prompt for this session.
	Prompt string

	// Tags are optional tags attached to the resulting entry.
	Tags []string

	// SystemPrompt and FirstMessage are forwarded to the vendor call.
	SystemPrompt string
	FirstMessage string

	// MaxCallDuration is the hard ceiling on call length. Defaults to
	// [DefaultMaxCallDuration] when zero.
	MaxCallDuration time.Duration

	// MinCallDuration is the advisory floor. The silence heuristic does not
	// arm before it elapses. Defaults to [DefaultMinCallDuration].
	MinCallDuration time.Duration

	// SettleDelay is how long the session waits after the end trigger for
	// last-moment vendor events before processing the transcript. Defaults
	// to [DefaultSettleDelay].
	SettleDelay time.Duration

	// SilenceEnd enables auto-ending the call after SilenceTimeout without
	// user speech, once MinCallDuration has elapsed. Off by default.
	SilenceEnd     bool
	SilenceTimeout time.Duration

	// OnStatusChange, OnCompleted, and OnError notify the host of lifecycle
	// progress. All are optional and invoked without internal locks held.
	OnStatusChange func(Status)
	OnCompleted    func(SubmitResult)
	OnError        func(message string)
}

// Session is the state machine for one voice journaling call:
//
//	idle → connecting → active → ending → processing → {completed | error}
//
// error is reachable from any non-terminal state. A Session runs exactly one
// call; construct a new Session to try again.
//
// All exported methods and event handlers are safe for concurrent use.
type Session struct {
	cfg SessionConfig

	mu         sync.Mutex
	status     Status
	transcript *Transcript
	startTime  time.Time
	ctx        context.Context

	// finishing is the one-shot end latch: the first end trigger wins and
	// duplicate triggers are ignored. Reset only on error, so a failed
	// session can be inspected but never double-submits.
	finishing bool
	closed    bool

	maxTimer     *time.Timer
	settleTimer  *time.Timer
	silenceTimer *time.Timer
}

var _ EventHandler = (*Session)(nil)

// NewSession creates a session in the idle state.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Vendor == nil {
		return nil, fmt.Errorf("voice: session requires a vendor client")
	}
	if cfg.Microphone == nil {
		return nil, fmt.Errorf("voice: session requires a microphone source")
	}
	if cfg.Submitter == nil {
		return nil, fmt.Errorf("voice: session requires a submitter")
	}
	if cfg.MaxCallDuration <= 0 {
		cfg.MaxCallDuration = DefaultMaxCallDuration
	}
	if cfg.MinCallDuration <= 0 {
		cfg.MinCallDuration = DefaultMinCallDuration
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = DefaultSilenceTimeout
	}
	return &Session{
		cfg:        cfg,
		status:     StatusIdle,
		transcript: NewTranscript(),
	}, nil
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Messages returns a copy of the accumulated transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Messages()
}

// Start obtains microphone access and establishes the vendor call. On
// success the session is active and the duration timer is armed. Failure to
// obtain permission or start the call moves the session to the error state;
// there is no automatic retry.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("voice: session is closed")
	}
	if s.status != StatusIdle {
		s.mu.Unlock()
		return fmt.Errorf("voice: session already started (status=%s)", s.status)
	}
	s.status = StatusConnecting
	s.ctx = ctx
	s.mu.Unlock()
	s.notifyStatus(StatusConnecting)

	if err := s.cfg.Microphone.RequestAccess(ctx); err != nil {
		s.fail(msgMicrophoneDenied)
		return fmt.Errorf("voice: microphone access: %w", err)
	}

	callCfg := CallConfig{
		Prompt:       s.cfg.Prompt,
		SystemPrompt: s.cfg.SystemPrompt,
		FirstMessage: s.cfg.FirstMessage,
	}
	if err := s.cfg.Vendor.Start(ctx, callCfg, s); err != nil {
		msg := msgStartFailed
		if v := strings.TrimSpace(err.Error()); v != "" {
			msg = v
		}
		s.fail(msg)
		return fmt.Errorf("voice: vendor start: %w", err)
	}

	s.mu.Lock()
	if s.closed || s.status != StatusConnecting {
		// The session was torn down or failed while the vendor call was
		// being established; let the call die quietly.
		s.mu.Unlock()
		go s.stopVendor()
		return fmt.Errorf("voice: session no longer connecting")
	}
	s.status = StatusActive
	s.startTime = time.Now()
	s.maxTimer = time.AfterFunc(s.cfg.MaxCallDuration, s.onMaxDuration)
	s.mu.Unlock()
	s.notifyStatus(StatusActive)

	slog.Info("voice session active", "prompt", s.cfg.Prompt, "max_duration", s.cfg.MaxCallDuration)
	return nil
}

// End is the explicit user "end call" action. Honored at any time while the
// call is active; duplicate invocations after the first end trigger are
// no-ops.
func (s *Session) End() {
	if s.finish(EndReasonManual, nil) {
		go s.stopVendor()
	}
}

// Close tears the session down regardless of state: all timers are
// cancelled and no further transitions occur, even if a previously
// scheduled timer callback fires afterwards. Safe to call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	active := s.status == StatusConnecting || s.status == StatusActive
	s.stopTimersLocked()
	s.mu.Unlock()

	if active {
		s.stopVendor()
	}
}

// ─── Vendor event handlers ───────────────────────────────────────────────────

// HandleMessage implements [EventHandler]. Accepted only while the call is
// active or ending; once processing begins the transcript is frozen.
func (s *Session) HandleMessage(payload any) {
	msgs := NormalizeBatch(payload)
	if len(msgs) == 0 {
		return
	}

	s.mu.Lock()
	if s.closed || (s.status != StatusActive && s.status != StatusEnding) {
		s.mu.Unlock()
		return
	}
	s.transcript.AppendBatch(msgs)
	userSpoke := false
	for _, m := range msgs {
		if m.Role == RoleUser {
			userSpoke = true
			break
		}
	}
	if userSpoke && s.status == StatusActive {
		s.resetSilenceTimerLocked()
	}
	s.mu.Unlock()
}

// HandleCallEnd implements [EventHandler].
func (s *Session) HandleCallEnd(payload any) {
	s.finish(EndReasonVendor, payload)
}

// HandleStatusUpdate implements [EventHandler]. A status of "ended" (in any
// vendor spelling) is treated as a call-end trigger.
func (s *Session) HandleStatusUpdate(payload any) {
	fields, ok := payload.(map[string]any)
	if !ok {
		return
	}
	status, _ := stringField(fields, "status")
	switch strings.ToLower(status) {
	case "ended", "call-ended", "call-end":
		s.finish(EndReasonVendor, fields)
	}
}

// HandleError implements [EventHandler]. Vendor errors are surfaced only
// while the session is connecting or active — a late or spurious error
// signal must not preempt an in-flight graceful shutdown.
func (s *Session) HandleError(payload any) {
	s.mu.Lock()
	if s.closed || (s.status != StatusConnecting && s.status != StatusActive) {
		s.mu.Unlock()
		slog.Debug("voice: vendor error ignored outside connecting/active", "status", s.status)
		return
	}
	s.mu.Unlock()

	s.fail(vendorErrorMessage(payload))
}

// ─── Internal transitions ────────────────────────────────────────────────────

// finish is the single convergence point for all end-of-call triggers.
// The first caller wins the latch, moves the session to ending, merges any
// final fragments from the end payload, and schedules processing after the
// settle delay. Returns false when the trigger lost the latch or the
// session was not active.
func (s *Session) finish(reason EndReason, payload any) bool {
	s.mu.Lock()
	if s.closed || s.finishing || s.status != StatusActive {
		// A duplicate end trigger loses the latch, but if it carries final
		// fragments and the settle window is still open, keep them.
		if !s.closed && s.status == StatusEnding && payload != nil {
			s.mergeFinalLocked(payload)
		}
		s.mu.Unlock()
		return false
	}
	s.finishing = true
	s.status = StatusEnding
	s.stopCallTimersLocked()
	s.mergeFinalLocked(payload)
	s.settleTimer = time.AfterFunc(s.cfg.SettleDelay, s.process)
	s.mu.Unlock()

	slog.Info("voice call ending", "reason", reason)
	s.notifyStatus(StatusEnding)
	return true
}

// mergeFinalLocked pulls final transcript fragments out of a call-end
// payload. Must be called with s.mu held.
func (s *Session) mergeFinalLocked(payload any) {
	fields, ok := payload.(map[string]any)
	if !ok {
		return
	}
	for _, key := range []string{"messages", "transcript"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		// A transcript field may itself wrap a messages array.
		if inner, ok := raw.(map[string]any); ok {
			raw = inner["messages"]
		}
		s.transcript.AppendFinal(NormalizeBatch(raw))
	}
}

// process extracts content from the frozen transcript and submits it.
// Runs after the settle delay.
func (s *Session) process() {
	s.mu.Lock()
	if s.closed || s.status != StatusEnding {
		s.mu.Unlock()
		return
	}
	s.status = StatusProcessing
	msgs := s.transcript.Messages()
	ctx := s.ctx
	s.mu.Unlock()
	s.notifyStatus(StatusProcessing)

	if ctx == nil {
		ctx = context.Background()
	}

	content := UserContent(msgs)
	if content == "" {
		if len(msgs) == 0 {
			s.fail(msgNoSpeech)
			return
		}
		// Role attribution is heuristic; salvage the session by joining
		// everything before giving up.
		slog.Warn("voice: no user-role content extracted, falling back to all roles", "messages", len(msgs))
		content = AllContent(msgs)
		if content == "" {
			s.fail(msgNoSpeech)
			return
		}
	}

	if wc := len(strings.Fields(content)); wc < 5 {
		slog.Debug("voice: short entry content", "words", wc)
	}

	result, err := s.cfg.Submitter.Submit(ctx, Submission{
		Content:    content,
		Prompt:     s.cfg.Prompt,
		Tags:       s.cfg.Tags,
		Transcript: msgs,
	})
	if err != nil {
		msg := msgSaveFailed
		if v := strings.TrimSpace(err.Error()); v != "" {
			msg = v
		}
		s.fail(msg)
		return
	}

	s.mu.Lock()
	if s.closed || s.status != StatusProcessing {
		s.mu.Unlock()
		return
	}
	s.status = StatusCompleted
	s.stopTimersLocked()
	s.mu.Unlock()

	slog.Info("voice session completed", "words", len(strings.Fields(content)))
	s.notifyStatus(StatusCompleted)
	if s.cfg.OnCompleted != nil {
		s.cfg.OnCompleted(result)
	}
}

// fail moves the session to the error state and surfaces msg through the
// error callback. The finish latch is released so the failure is final but
// inspectable. No-op when the session is closed or already terminal.
func (s *Session) fail(msg string) {
	s.mu.Lock()
	if s.closed || s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.status = StatusError
	s.finishing = false
	s.stopTimersLocked()
	s.mu.Unlock()

	slog.Warn("voice session failed", "message", msg)
	s.notifyStatus(StatusError)
	if s.cfg.OnError != nil {
		s.cfg.OnError(msg)
	}
}

// onMaxDuration fires when the call duration ceiling is reached.
func (s *Session) onMaxDuration() {
	if s.finish(EndReasonTimeout, nil) {
		go s.stopVendor()
	}
}

// onSilence fires when the silence heuristic detects no user speech for
// the configured window.
func (s *Session) onSilence() {
	s.mu.Lock()
	if s.closed || s.status != StatusActive {
		s.mu.Unlock()
		return
	}
	idle := time.Since(s.transcript.LastUserSpeech())
	s.mu.Unlock()

	if idle < s.cfg.SilenceTimeout {
		return
	}
	if s.finish(EndReasonSilence, nil) {
		go s.stopVendor()
	}
}

// resetSilenceTimerLocked re-arms the silence timer after accepted user
// speech. Disabled unless SilenceEnd is set, and never armed before the
// minimum call duration has elapsed. Must be called with s.mu held.
func (s *Session) resetSilenceTimerLocked() {
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
	if !s.cfg.SilenceEnd {
		return
	}
	if time.Since(s.startTime) < s.cfg.MinCallDuration {
		return
	}
	s.silenceTimer = time.AfterFunc(s.cfg.SilenceTimeout, s.onSilence)
}

// stopCallTimersLocked clears the timers that only make sense while the
// call is live. Must be called with s.mu held.
func (s *Session) stopCallTimersLocked() {
	if s.maxTimer != nil {
		s.maxTimer.Stop()
		s.maxTimer = nil
	}
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
}

// stopTimersLocked clears every timer. Must be called with s.mu held.
func (s *Session) stopTimersLocked() {
	s.stopCallTimersLocked()
	if s.settleTimer != nil {
		s.settleTimer.Stop()
		s.settleTimer = nil
	}
}

func (s *Session) stopVendor() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.cfg.Vendor.Stop(ctx); err != nil {
		slog.Warn("voice: vendor stop error", "err", err)
	}
}

func (s *Session) notifyStatus(st Status) {
	if s.cfg.OnStatusChange != nil {
		s.cfg.OnStatusChange(st)
	}
}

// vendorErrorMessage digs a human-readable message out of an arbitrary
// vendor error payload.
func vendorErrorMessage(payload any) string {
	switch v := payload.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case error:
		if s := strings.TrimSpace(v.Error()); s != "" {
			return s
		}
	case map[string]any:
		if inner, ok := v["error"].(map[string]any); ok {
			if msg, ok := stringField(inner, "msg"); ok && strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}
		}
		for _, key := range []string{"message", "msg", "error"} {
			if msg, ok := stringField(v, key); ok && strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg)
			}
		}
	}
	return msgCallError
}
