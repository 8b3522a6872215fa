package voice_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yashv6655/journalai/pkg/voice"
	"github.com/yashv6655/journalai/pkg/voice/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

type fixture struct {
	vendor    *mock.VendorClient
	mic       *mock.Microphone
	submitter *mock.Submitter
	errCh     chan string
	session   *voice.Session
}

func newFixture(t *testing.T, mutate func(*voice.SessionConfig)) *fixture {
	t.Helper()

	f := &fixture{
		vendor:    &mock.VendorClient{},
		mic:       &mock.Microphone{},
		submitter: &mock.Submitter{},
		errCh:     make(chan string, 4),
	}
	cfg := voice.SessionConfig{
		Vendor:          f.vendor,
		Microphone:      f.mic,
		Submitter:       f.submitter,
		Prompt:          "What gave you energy today?",
		MaxCallDuration: time.Minute,
		SettleDelay:     5 * time.Millisecond,
		OnError:         func(msg string) { f.errCh <- msg },
	}
	if mutate != nil {
		mutate(&cfg)
	}

	sess, err := voice.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	f.session = sess
	t.Cleanup(sess.Close)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := f.session.Status(); got != voice.StatusActive {
		t.Fatalf("status after Start = %s, want active", got)
	}
}

func waitStatus(t *testing.T, s *voice.Session, want voice.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Status() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("status = %s, want %s", s.Status(), want)
}

func userEvent(content string) map[string]any {
	return map[string]any{"role": "user", "content": content}
}

// ── lifecycle ────────────────────────────────────────────────────────────────

func TestSessionScenarioRefinedSpeech(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.vendor.Handler.HandleMessage(userEvent("hi"))
	f.vendor.Handler.HandleMessage(userEvent("hi there"))
	f.vendor.Handler.HandleCallEnd(nil)

	waitStatus(t, f.session, voice.StatusCompleted)

	subs := f.submitter.Submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0].Content != "hi there" {
		t.Fatalf("content = %q, want %q", subs[0].Content, "hi there")
	}
	if subs[0].Prompt != "What gave you energy today?" {
		t.Fatalf("prompt = %q", subs[0].Prompt)
	}
	if len(subs[0].Transcript) != 1 {
		t.Fatalf("transcript len = %d, want 1 (refinements collapsed)", len(subs[0].Transcript))
	}
}

func TestSessionScenarioTrueSilence(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.vendor.Handler.HandleCallEnd(nil)

	waitStatus(t, f.session, voice.StatusError)

	select {
	case msg := <-f.errCh:
		if !strings.Contains(msg, "No speech detected") {
			t.Fatalf("error message = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no error callback")
	}
	if n := len(f.submitter.Submissions()); n != 0 {
		t.Fatalf("submissions = %d, want 0", n)
	}
}

func TestSessionScenarioDurationCeiling(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *voice.SessionConfig) {
		cfg.MaxCallDuration = 20 * time.Millisecond
	})
	f.start(t)

	f.vendor.Handler.HandleMessage(userEvent("made it just in time"))

	// No manual end: the duration ceiling must drive ending → processing.
	waitStatus(t, f.session, voice.StatusCompleted)

	deadline := time.Now().Add(time.Second)
	for f.vendor.Stops() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("vendor Stop not called on timeout end")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if n := len(f.submitter.Submissions()); n != 1 {
		t.Fatalf("submissions = %d, want 1", n)
	}
}

func TestSessionScenarioLateVendorError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *voice.SessionConfig) {
		cfg.SettleDelay = 30 * time.Millisecond
	})
	f.start(t)

	f.vendor.Handler.HandleMessage(userEvent("everything is fine"))
	f.vendor.Handler.HandleCallEnd(nil)

	// A spurious vendor error during the graceful shutdown must not
	// preempt processing.
	f.vendor.Handler.HandleError(map[string]any{"message": "socket closed"})

	waitStatus(t, f.session, voice.StatusCompleted)

	select {
	case msg := <-f.errCh:
		t.Fatalf("unexpected error callback: %q", msg)
	default:
	}
}

func TestSessionIdempotentEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.vendor.Handler.HandleMessage(userEvent("only once please"))

	// Manual end, vendor call-end, and a status update race to finish the
	// call; exactly one trigger may win.
	f.session.End()
	f.vendor.Handler.HandleCallEnd(nil)
	f.vendor.Handler.HandleStatusUpdate(map[string]any{"status": "ended"})

	waitStatus(t, f.session, voice.StatusCompleted)

	if n := len(f.submitter.Submissions()); n != 1 {
		t.Fatalf("submissions = %d, want exactly 1", n)
	}
}

func TestSessionStatusUpdateEndsCall(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.vendor.Handler.HandleMessage(userEvent("wrapping up"))
	f.vendor.Handler.HandleStatusUpdate(map[string]any{"status": "call-ended"})

	waitStatus(t, f.session, voice.StatusCompleted)
}

func TestSessionFinalFragmentsMerged(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.vendor.Handler.HandleMessage(userEvent("I went"))
	f.vendor.Handler.HandleCallEnd(map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "I went for a walk"},
		},
	})

	waitStatus(t, f.session, voice.StatusCompleted)

	subs := f.submitter.Submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0].Content != "I went for a walk" {
		t.Fatalf("content = %q, want merged refinement", subs[0].Content)
	}
}

func TestSessionMessagesDuringSettleWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *voice.SessionConfig) {
		cfg.SettleDelay = 50 * time.Millisecond
	})
	f.start(t)

	f.vendor.Handler.HandleMessage(userEvent("first thought"))
	f.session.End()
	waitStatus(t, f.session, voice.StatusEnding)

	// Last-moment vendor event arriving inside the settle window.
	f.vendor.Handler.HandleMessage(userEvent("final thought"))

	waitStatus(t, f.session, voice.StatusCompleted)

	subs := f.submitter.Submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if want := "first thought final thought"; subs[0].Content != want {
		t.Fatalf("content = %q, want %q", subs[0].Content, want)
	}
}

func TestSessionFallbackToAllRoles(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	// Role misattribution: everything came through as assistant speech.
	f.vendor.Handler.HandleMessage(map[string]any{"role": "assistant", "content": "today was hard"})
	f.vendor.Handler.HandleCallEnd(nil)

	waitStatus(t, f.session, voice.StatusCompleted)

	subs := f.submitter.Submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0].Content != "today was hard" {
		t.Fatalf("content = %q, want all-roles fallback", subs[0].Content)
	}
}

// ── failure paths ────────────────────────────────────────────────────────────

func TestSessionMicrophoneDenied(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.mic.Err = errors.New("permission denied")

	if err := f.session.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded despite microphone denial")
	}
	if got := f.session.Status(); got != voice.StatusError {
		t.Fatalf("status = %s, want error", got)
	}
	select {
	case msg := <-f.errCh:
		if !strings.Contains(msg, "Microphone access") {
			t.Fatalf("error message = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no error callback")
	}
	if len(f.vendor.StartCalls) != 0 {
		t.Fatal("vendor started despite microphone denial")
	}
}

func TestSessionVendorStartFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.vendor.StartErr = errors.New("assistant configuration rejected")

	if err := f.session.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded despite vendor failure")
	}
	if got := f.session.Status(); got != voice.StatusError {
		t.Fatalf("status = %s, want error", got)
	}
	select {
	case msg := <-f.errCh:
		if !strings.Contains(msg, "assistant configuration rejected") {
			t.Fatalf("error message = %q, want vendor detail", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no error callback")
	}
}

func TestSessionSubmitFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.submitter.Err = errors.New("Too many requests. Please try again later.")
	f.start(t)

	f.vendor.Handler.HandleMessage(userEvent("this will not save"))
	f.vendor.Handler.HandleCallEnd(nil)

	waitStatus(t, f.session, voice.StatusError)

	select {
	case msg := <-f.errCh:
		if !strings.Contains(msg, "Too many requests") {
			t.Fatalf("error message = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no error callback")
	}
}

func TestSessionVendorErrorWhileActive(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.vendor.Handler.HandleError(map[string]any{
		"error": map[string]any{"msg": "media stream lost"},
	})

	waitStatus(t, f.session, voice.StatusError)
	select {
	case msg := <-f.errCh:
		if msg != "media stream lost" {
			t.Fatalf("error message = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no error callback")
	}
}

// ── terminal and disposal behaviour ──────────────────────────────────────────

func TestSessionTerminalStatesAreSinks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.vendor.Handler.HandleMessage(userEvent("done now"))
	f.vendor.Handler.HandleCallEnd(nil)
	waitStatus(t, f.session, voice.StatusCompleted)

	// Nothing moves a completed session.
	f.vendor.Handler.HandleError(map[string]any{"message": "late failure"})
	f.vendor.Handler.HandleMessage(userEvent("too late"))
	f.session.End()

	if got := f.session.Status(); got != voice.StatusCompleted {
		t.Fatalf("status = %s, want completed to be a sink", got)
	}
	if n := len(f.session.Messages()); n != 1 {
		t.Fatalf("transcript mutated after terminal state: len = %d", n)
	}
	if n := len(f.submitter.Submissions()); n != 1 {
		t.Fatalf("submissions = %d, want 1", n)
	}
}

func TestSessionCloseCancelsTimers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *voice.SessionConfig) {
		cfg.MaxCallDuration = 15 * time.Millisecond
	})
	f.start(t)
	f.session.Close()

	// Let the duration timer's original deadline pass well behind us.
	time.Sleep(60 * time.Millisecond)

	if got := f.session.Status(); got != voice.StatusActive {
		t.Fatalf("status transitioned after Close: %s", got)
	}
	if n := len(f.submitter.Submissions()); n != 0 {
		t.Fatalf("submissions after Close = %d, want 0", n)
	}
}

func TestSessionSingleUse(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	if err := f.session.Start(context.Background()); err == nil {
		t.Fatal("second Start succeeded on an active session")
	}
}

func TestNewSessionValidation(t *testing.T) {
	t.Parallel()

	_, err := voice.NewSession(voice.SessionConfig{})
	if err == nil {
		t.Fatal("NewSession accepted an empty config")
	}
}
