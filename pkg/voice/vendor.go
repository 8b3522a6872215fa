package voice

import "context"

// CallConfig describes the assistant behaviour for one vendor call.
type CallConfig struct {
	// Prompt is the reflection prompt the assistant opens the conversation
	// with and that the resulting journal entry responds to.
	Prompt string

	// SystemPrompt steers the assistant's conversational style. Empty means
	// use the vendor's default.
	SystemPrompt string

	// FirstMessage is the assistant's spoken greeting. Empty means let the
	// vendor derive one from Prompt.
	FirstMessage string
}

// EventHandler receives vendor events for one call. All payloads are
// vendor-defined and untrusted; implementations must tolerate any shape.
// [Session] implements EventHandler.
type EventHandler interface {
	// HandleMessage delivers a message/transcript event. The payload may be
	// a single event object or an array of them.
	HandleMessage(payload any)

	// HandleCallEnd delivers the vendor's call-end event. The payload may
	// carry final transcript fragments under "messages" or "transcript".
	HandleCallEnd(payload any)

	// HandleStatusUpdate delivers a call status-update event.
	HandleStatusUpdate(payload any)

	// HandleError delivers a vendor error event.
	HandleError(payload any)
}

// VendorClient is the boundary to the third-party real-time voice API.
// Implementations deliver call events to the [EventHandler] passed to Start
// until the call ends or Stop is called.
type VendorClient interface {
	// Start establishes the call. Events begin flowing to h before Start
	// returns. A non-nil error means the call was never established.
	Start(ctx context.Context, cfg CallConfig, h EventHandler) error

	// Stop requests call termination. The vendor is expected to emit a
	// call-end event as a result; Stop itself does not tear down handler
	// delivery.
	Stop(ctx context.Context) error
}

// MicrophoneSource abstracts the host platform's media-permission prompt.
// Denial is a terminal error for the session — no automatic retry.
type MicrophoneSource interface {
	RequestAccess(ctx context.Context) error
}
