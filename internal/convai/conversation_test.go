package convai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestDialFiresCallbacksInOrder(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"type": "agent_response"})
		_ = conn.WriteJSON(map[string]any{"type": "agent_response_end"})
	}))
	defer ts.Close()

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	conv, err := Dial(context.Background(), wsURL(ts), Callbacks{
		OnConnect:    func() { record("connect") },
		OnDisconnect: func() { record("disconnect") },
		OnModeChange: func(mode Mode) { record("mode:" + string(mode)) },
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	select {
	case <-conv.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("conversation did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"connect", "mode:speaking", "mode:listening", "disconnect"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events[%d] = %q, want %q (all: %v)", i, events[i], want[i], events)
		}
	}
}

func TestEndIsIdempotent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	disconnects := 0
	var mu sync.Mutex
	conv, err := Dial(context.Background(), wsURL(ts), Callbacks{
		OnDisconnect: func() {
			mu.Lock()
			disconnects++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	_ = conv.End()
	_ = conv.End()

	mu.Lock()
	defer mu.Unlock()
	if disconnects != 1 {
		t.Fatalf("disconnect callbacks = %d, want 1", disconnects)
	}
}

func TestPingAnsweredWithPong(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotPong := make(chan map[string]any, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{
			"type":       "ping",
			"ping_event": map[string]any{"event_id": "ev-1"},
		})
		var reply map[string]any
		if err := conn.ReadJSON(&reply); err == nil {
			gotPong <- reply
		}
	}))
	defer ts.Close()

	conv, err := Dial(context.Background(), wsURL(ts), Callbacks{})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conv.End()

	select {
	case reply := <-gotPong:
		if reply["type"] != "pong" || reply["event_id"] != "ev-1" {
			t.Fatalf("pong reply = %v", reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no pong received")
	}
}

func TestErrorEventSurfacesViaCallback(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "agent overloaded"})
	}))
	defer ts.Close()

	errCh := make(chan error, 1)
	conv, err := Dial(context.Background(), wsURL(ts), Callbacks{
		OnError: func(err error) { errCh <- err },
	})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conv.End()

	select {
	case got := <-errCh:
		if !strings.Contains(got.Error(), "agent overloaded") {
			t.Fatalf("error = %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no error callback")
	}
}
