// Package vapiws implements voice.VendorClient on top of the Vapi
// websocket call transport. A call is created over the REST API, then the
// returned websocket URL carries both the JSON control channel (transcripts,
// status updates, errors, end-of-call report) and binary audio frames.
//
// Uplink audio is accepted as little-endian PCM int16 via [Client.SendAudio]
// and encoded to Opus frames before transmission. Downlink audio frames are
// delivered to the optional sink configured with [WithAudioSink].
package vapiws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"layeh.com/gopus"

	"github.com/yashv6655/journalai/pkg/voice"
)

const (
	defaultAPIBase = "https://api.vapi.ai"

	// Vapi websocket calls run 16 kHz mono with 20 ms Opus frames.
	sampleRate  = 16000
	channels    = 1
	frameSizeMs = 20
	// frameSize is the number of samples per channel per 20 ms frame.
	frameSize = sampleRate * frameSizeMs / 1000 // 320
)

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithAPIBase overrides the Vapi API base URL. Useful for tests.
func WithAPIBase(base string) Option {
	return func(c *Client) {
		c.apiBase = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient overrides the HTTP client used for call creation.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAudioSink registers a receiver for downlink audio frames. Frames are
// delivered in websocket arrival order from the read loop; a slow sink
// stalls event dispatch, so implementations should hand off quickly.
func WithAudioSink(sink func([]byte)) Option {
	return func(c *Client) {
		c.sink = sink
	}
}

// Client implements voice.VendorClient against the Vapi websocket
// transport. A Client may be reused across sequential calls but carries at
// most one live call at a time.
type Client struct {
	apiKey      string
	assistantID string
	apiBase     string
	httpClient  *http.Client
	sink        func([]byte)

	mu   sync.Mutex
	call *liveCall
}

var _ voice.VendorClient = (*Client)(nil)

// New creates a Vapi websocket client. apiKey and assistantID must be
// non-empty.
func New(apiKey, assistantID string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("vapiws: apiKey must not be empty")
	}
	if assistantID == "" {
		return nil, errors.New("vapiws: assistantID must not be empty")
	}
	c := &Client{
		apiKey:      apiKey,
		assistantID: assistantID,
		apiBase:     defaultAPIBase,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// createCallRequest is the Vapi REST body for a websocket-transport call.
type createCallRequest struct {
	AssistantID string         `json:"assistantId"`
	Transport   map[string]any `json:"transport"`
	Overrides   map[string]any `json:"assistantOverrides,omitempty"`
}

// createCallResponse is the subset of the Vapi call object we need.
type createCallResponse struct {
	ID        string `json:"id"`
	Transport struct {
		WebsocketCallURL string `json:"websocketCallUrl"`
	} `json:"transport"`
}

// Start implements voice.VendorClient. It creates the call, dials the
// websocket, and spawns the read and write loops. The handler receives
// vendor events until the call ends or Stop is called.
func (c *Client) Start(ctx context.Context, cfg voice.CallConfig, h voice.EventHandler) error {
	c.mu.Lock()
	if c.call != nil {
		c.mu.Unlock()
		return errors.New("vapiws: a call is already in progress")
	}
	c.mu.Unlock()

	created, err := c.createCall(ctx, cfg)
	if err != nil {
		return err
	}
	if created.Transport.WebsocketCallURL == "" {
		return errors.New("vapiws: call response carried no websocket URL")
	}

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.apiKey)
	conn, _, err := websocket.Dial(ctx, created.Transport.WebsocketCallURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return fmt.Errorf("vapiws: dial call %s: %w", created.ID, err)
	}

	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Voip)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encoder setup failed")
		return fmt.Errorf("vapiws: create opus encoder: %w", err)
	}

	call := &liveCall{
		id:      created.ID,
		conn:    conn,
		handler: h,
		sink:    c.sink,
		enc:     enc,
		audio:   make(chan []byte, 256),
		done:    make(chan struct{}),
	}

	c.mu.Lock()
	c.call = call
	c.mu.Unlock()

	call.wg.Add(2)
	go func() {
		defer c.clearCall(call)
		call.readLoop(ctx)
	}()
	go call.writeLoop(ctx)

	slog.Info("vapi call started", "call_id", created.ID)
	return nil
}

// createCall provisions a websocket-transport call over the Vapi REST API.
func (c *Client) createCall(ctx context.Context, cfg voice.CallConfig) (*createCallResponse, error) {
	reqBody := createCallRequest{
		AssistantID: c.assistantID,
		Transport: map[string]any{
			"provider": "vapi.websocket",
			"audioFormat": map[string]any{
				"format":     "opus",
				"container":  "raw",
				"sampleRate": sampleRate,
			},
		},
	}

	overrides := map[string]any{}
	if cfg.FirstMessage != "" {
		overrides["firstMessage"] = cfg.FirstMessage
	}
	if cfg.SystemPrompt != "" {
		overrides["model"] = map[string]any{
			"messages": []map[string]any{
				{"role": "system", "content": cfg.SystemPrompt},
			},
		}
	}
	if cfg.Prompt != "" {
		overrides["variableValues"] = map[string]any{"prompt": cfg.Prompt}
	}
	if len(overrides) > 0 {
		reqBody.Overrides = overrides
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("vapiws: encode call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/call", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vapiws: build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vapiws: create call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vapiws: read call response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("vapiws: create call returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var created createCallResponse
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("vapiws: decode call response: %w", err)
	}
	return &created, nil
}

// SendAudio queues uplink PCM (little-endian int16 mono at 16 kHz). The
// write loop slices it into 20 ms frames and Opus-encodes each before
// transmission. Returns an error when no call is live.
func (c *Client) SendAudio(pcm []byte) error {
	c.mu.Lock()
	call := c.call
	c.mu.Unlock()
	if call == nil {
		return errors.New("vapiws: no call in progress")
	}
	return call.sendAudio(pcm)
}

// Stop implements voice.VendorClient. It asks Vapi to hang up, closes the
// websocket, and waits for the loops to drain. Stopping an already-stopped
// client is a no-op.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	call := c.call
	c.call = nil
	c.mu.Unlock()
	if call == nil {
		return nil
	}
	return call.stop(ctx)
}

func (c *Client) clearCall(call *liveCall) {
	c.mu.Lock()
	if c.call == call {
		c.call = nil
	}
	c.mu.Unlock()
}

// ---- live call ----

// liveCall is one established websocket call.
type liveCall struct {
	id      string
	conn    *websocket.Conn
	handler voice.EventHandler
	sink    func([]byte)
	enc     *gopus.Encoder

	audio chan []byte
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	// pending buffers uplink PCM bytes until a full frame accumulates.
	// Only the write loop touches it.
	pending []byte
}

func (lc *liveCall) sendAudio(pcm []byte) error {
	select {
	case <-lc.done:
		return errors.New("vapiws: call has ended")
	default:
	}
	select {
	case lc.audio <- pcm:
		return nil
	case <-lc.done:
		return errors.New("vapiws: call has ended")
	}
}

func (lc *liveCall) stop(ctx context.Context) error {
	lc.once.Do(func() {
		// Ask the assistant side to hang up before tearing the socket down.
		_ = lc.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"hangup"}`))
		close(lc.done)
		lc.conn.Close(websocket.StatusNormalClosure, "call ended")
	})

	waited := make(chan struct{})
	go func() {
		lc.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("vapiws: stop call %s: %w", lc.id, ctx.Err())
	}
}

// closed reports whether the call has been deliberately stopped.
func (lc *liveCall) closed() bool {
	select {
	case <-lc.done:
		return true
	default:
		return false
	}
}

// readLoop receives websocket messages and dispatches them: text frames are
// JSON control events routed to the handler, binary frames are downlink
// audio routed to the sink.
func (lc *liveCall) readLoop(ctx context.Context) {
	defer lc.wg.Done()

	for {
		typ, data, err := lc.conn.Read(ctx)
		if err != nil {
			if lc.closed() || ctx.Err() != nil {
				return
			}
			// The socket dropped out from under a live call.
			lc.handler.HandleError(fmt.Errorf("vapiws: connection lost: %w", err))
			return
		}

		if typ == websocket.MessageBinary {
			if lc.sink != nil {
				lc.sink(data)
			}
			continue
		}

		lc.dispatch(data)
	}
}

// dispatch routes one JSON control event to the handler.
func (lc *liveCall) dispatch(data []byte) {
	var evt map[string]any
	if err := json.Unmarshal(data, &evt); err != nil {
		slog.Debug("vapiws: undecodable control event", "err", err)
		return
	}

	typ, _ := evt["type"].(string)
	switch strings.ToLower(typ) {
	case "transcript":
		// Only final transcriptions feed the session; partials are a UI
		// concern.
		if tt, _ := evt["transcriptType"].(string); strings.EqualFold(tt, "partial") {
			return
		}
		lc.handler.HandleMessage(evt)
	case "conversation-update":
		if msgs, ok := evt["messages"]; ok {
			lc.handler.HandleMessage(msgs)
		}
	case "status-update":
		lc.handler.HandleStatusUpdate(evt)
	case "end-of-call-report", "call-end", "hang":
		lc.handler.HandleCallEnd(evt)
	case "error":
		lc.handler.HandleError(evt)
	default:
		slog.Debug("vapiws: ignoring control event", "type", typ)
	}
}

// writeLoop slices queued PCM into frames, Opus-encodes each, and sends
// them as binary websocket messages.
func (lc *liveCall) writeLoop(ctx context.Context) {
	defer lc.wg.Done()

	const frameBytes = frameSize * channels * 2

	for {
		select {
		case pcm := <-lc.audio:
			lc.pending = append(lc.pending, pcm...)
			for len(lc.pending) >= frameBytes {
				frame := lc.pending[:frameBytes]
				lc.pending = lc.pending[frameBytes:]
				packet, err := lc.enc.Encode(bytesToInt16s(frame), frameSize, frameBytes)
				if err != nil {
					slog.Warn("vapiws: opus encode failed", "err", err)
					continue
				}
				if err := lc.conn.Write(ctx, websocket.MessageBinary, packet); err != nil {
					return
				}
			}
		case <-lc.done:
			return
		}
	}
}

// bytesToInt16s converts little-endian bytes to int16 PCM samples.
func bytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
