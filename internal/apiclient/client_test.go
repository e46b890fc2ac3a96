package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/falavox/falavox/internal/resolver"
)

func fastClient(baseURL string) *Client {
	return New(Config{
		BaseURL:     baseURL,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffCap:  2 * time.Millisecond,
	})
}

func TestFetchViewSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/assistants/lina" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(resolver.View{Nome: "Lina", VoiceID: "v123", SignedURL: "wss://example/s"})
	}))
	defer ts.Close()

	view, err := fastClient(ts.URL).FetchView(context.Background(), "lina")
	if err != nil {
		t.Fatalf("FetchView() error = %v", err)
	}
	if view.Nome != "Lina" || view.SignedURL == "" {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestFetchViewNotFoundIsPermanent(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "assistant not found", "code": "assistant_not_found"})
	}))
	defer ts.Close()

	_, err := fastClient(ts.URL).FetchView(context.Background(), "ghost")
	if !errors.Is(err, resolver.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, 404 must not be retried", calls)
	}
}

func TestFetchViewRetriesTransientFailures(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"code": "upstream_error"})
			return
		}
		_ = json.NewEncoder(w).Encode(resolver.View{Nome: "Lina", SignedURL: "wss://example/s"})
	}))
	defer ts.Close()

	view, err := fastClient(ts.URL).FetchView(context.Background(), "lina")
	if err != nil {
		t.Fatalf("FetchView() error = %v", err)
	}
	if view.Nome != "Lina" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestFetchViewGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := fastClient(ts.URL).FetchView(context.Background(), "lina")
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if status.Status != http.StatusServiceUnavailable {
		t.Fatalf("Status = %d, want 503", status.Status)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestFetchViewNonRetryableStatusFailsFast(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "invalid_slug"})
	}))
	defer ts.Close()

	_, err := fastClient(ts.URL).FetchView(context.Background(), "lina")
	var status *StatusError
	if !errors.As(err, &status) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if status.Code != "invalid_slug" {
		t.Fatalf("Code = %q", status.Code)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}
