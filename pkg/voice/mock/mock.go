// Package mock provides test doubles for the voice package's boundary
// interfaces: the vendor client, the microphone source, and the entry
// submitter.
//
// The vendor mock records the handler passed to Start so tests can emit
// events into the session under test:
//
//	vendor := &mock.VendorClient{}
//	sess, _ := voice.NewSession(voice.SessionConfig{Vendor: vendor, ...})
//	_ = sess.Start(ctx)
//	vendor.Handler.HandleMessage(map[string]any{"role": "user", "content": "hi"})
package mock

import (
	"context"
	"sync"

	"github.com/yashv6655/journalai/pkg/voice"
)

// VendorClient is a mock implementation of voice.VendorClient.
// Zero values make Start and Stop succeed. Set the Err fields to inject
// failures.
type VendorClient struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StopErr, if non-nil, is returned by Stop.
	StopErr error

	// Handler is the event handler captured by the most recent Start call.
	Handler voice.EventHandler

	// StartCalls records the CallConfig of every Start invocation.
	StartCalls []voice.CallConfig

	// StopCalls counts Stop invocations.
	StopCalls int

	// OnStop, if set, runs inside Stop before StopErr is returned. Use it
	// to emit the vendor's call-end event synchronously.
	OnStop func()
}

// Start implements voice.VendorClient.
func (v *VendorClient) Start(_ context.Context, cfg voice.CallConfig, h voice.EventHandler) error {
	v.mu.Lock()
	v.StartCalls = append(v.StartCalls, cfg)
	if v.StartErr != nil {
		err := v.StartErr
		v.mu.Unlock()
		return err
	}
	v.Handler = h
	v.mu.Unlock()
	return nil
}

// Stop implements voice.VendorClient.
func (v *VendorClient) Stop(context.Context) error {
	v.mu.Lock()
	v.StopCalls++
	onStop := v.OnStop
	err := v.StopErr
	v.mu.Unlock()

	if onStop != nil {
		onStop()
	}
	return err
}

// Stops returns the number of Stop invocations so far.
func (v *VendorClient) Stops() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.StopCalls
}

// Microphone is a mock implementation of voice.MicrophoneSource.
type Microphone struct {
	// Err, if non-nil, is returned by RequestAccess (simulating a denied
	// permission prompt).
	Err error

	// Calls counts RequestAccess invocations.
	Calls int
}

// RequestAccess implements voice.MicrophoneSource.
func (m *Microphone) RequestAccess(context.Context) error {
	m.Calls++
	return m.Err
}

// Submitter is a mock implementation of voice.Submitter.
type Submitter struct {
	mu sync.Mutex

	// Result is returned by Submit on success.
	Result voice.SubmitResult

	// Err, if non-nil, is returned by Submit.
	Err error

	// Calls records every submission in order.
	Calls []voice.Submission
}

// Submit implements voice.Submitter.
func (s *Submitter) Submit(_ context.Context, sub voice.Submission) (voice.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, sub)
	if s.Err != nil {
		return voice.SubmitResult{}, s.Err
	}
	return s.Result, nil
}

// Submissions returns a copy of the recorded submissions.
func (s *Submitter) Submissions() []voice.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]voice.Submission, len(s.Calls))
	copy(out, s.Calls)
	return out
}
