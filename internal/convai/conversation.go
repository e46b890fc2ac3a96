// Package convai is the realtime conversation transport. A Conversation wraps
// one websocket connection to a signed session URL and turns provider events
// into the four callbacks a page or headless client wires up: connect,
// disconnect, error, mode change.
package convai

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Mode reports whether the assistant is currently producing audio.
type Mode string

const (
	ModeSpeaking  Mode = "speaking"
	ModeListening Mode = "listening"
)

// Callbacks receive conversation lifecycle events. Nil callbacks are skipped.
// All callbacks are invoked from the conversation's single read goroutine, so
// they observe events in arrival order.
type Callbacks struct {
	OnConnect    func()
	OnDisconnect func()
	OnError      func(err error)
	OnModeChange func(mode Mode)
}

// Conversation is one live session. It is discarded after End; a new attempt
// dials a new signed URL.
type Conversation struct {
	conn      *websocket.Conn
	callbacks Callbacks
	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// Dial opens the signed session URL and starts the event loop. OnConnect fires
// before Dial returns; OnDisconnect fires exactly once when the session ends,
// whether by End, provider close, or transport failure.
func Dial(ctx context.Context, signedURL string, callbacks Callbacks) (*Conversation, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial conversation: %w", err)
	}

	c := &Conversation{
		conn:      conn,
		callbacks: callbacks,
		done:      make(chan struct{}),
	}
	if callbacks.OnConnect != nil {
		callbacks.OnConnect()
	}
	go c.readLoop()
	return c, nil
}

// End closes the session. Safe to call more than once and after the provider
// has already disconnected.
func (c *Conversation) End() error {
	var retErr error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client end"))
		c.writeMu.Unlock()
		retErr = c.conn.Close()
	})
	<-c.done
	return retErr
}

// Done is closed once the session has fully ended.
func (c *Conversation) Done() <-chan struct{} { return c.done }

func (c *Conversation) readLoop() {
	defer func() {
		c.closeOnce.Do(func() { _ = c.conn.Close() })
		if c.callbacks.OnDisconnect != nil {
			c.callbacks.OnDisconnect()
		}
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var raw map[string]any
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}
		c.dispatch(raw)
	}
}

// dispatch maps provider payloads onto callbacks. Audio-bearing events mean
// the assistant is speaking; transcript and interruption events mean it is
// back to listening.
func (c *Conversation) dispatch(raw map[string]any) {
	switch asString(raw["type"]) {
	case "ping":
		c.pong(raw)
	case "audio", "agent_response":
		c.modeChange(ModeSpeaking)
	case "agent_response_end", "user_transcript", "interruption":
		c.modeChange(ModeListening)
	case "error":
		if c.callbacks.OnError != nil {
			c.callbacks.OnError(fmt.Errorf("conversation error: %s", asString(raw["message"])))
		}
	default:
		// Metadata and unknown events are ignored.
	}
}

func (c *Conversation) modeChange(mode Mode) {
	if c.callbacks.OnModeChange != nil {
		c.callbacks.OnModeChange(mode)
	}
}

func (c *Conversation) pong(raw map[string]any) {
	payload := map[string]any{"type": "pong"}
	if event, ok := raw["ping_event"].(map[string]any); ok {
		if id := asString(event["event_id"]); id != "" {
			payload["event_id"] = id
		}
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteJSON(payload)
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
