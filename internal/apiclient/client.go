// Package apiclient is the HTTP client for the resolver endpoint, used by the
// headless conversation client.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/falavox/falavox/internal/reliability"
	"github.com/falavox/falavox/internal/resolver"
)

// StatusError reports a non-success resolver response.
type StatusError struct {
	Status int
	Code   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("resolve request failed: status %d code %q", e.Status, e.Code)
}

type Config struct {
	BaseURL string
	// MaxAttempts bounds retries on transient failures. NotFound is permanent
	// and never retried.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 200 * time.Millisecond
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 2 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// FetchView resolves a slug into a persona view with a fresh signed URL.
// Transient failures are retried with capped exponential backoff; a 404 maps
// to resolver.ErrNotFound immediately.
func (c *Client) FetchView(ctx context.Context, slug string) (resolver.View, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/api/assistants/" + url.PathEscape(slug)

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, c.cfg.BackoffBase, c.cfg.BackoffCap)
			select {
			case <-ctx.Done():
				return resolver.View{}, ctx.Err()
			case <-time.After(wait):
			}
		}

		view, err := c.fetchOnce(ctx, endpoint)
		if err == nil {
			return view, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return resolver.View{}, ctx.Err()
		}
		if errors.Is(err, resolver.ErrNotFound) {
			return resolver.View{}, err
		}
		var status *StatusError
		if errors.As(err, &status) && !reliability.IsRetryableHTTPStatus(status.Status) {
			return resolver.View{}, err
		}
	}
	return resolver.View{}, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (resolver.View, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return resolver.View{}, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return resolver.View{}, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return resolver.View{}, resolver.ErrNotFound
	}
	if res.StatusCode != http.StatusOK {
		var body struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(res.Body).Decode(&body)
		return resolver.View{}, &StatusError{Status: res.StatusCode, Code: body.Code}
	}

	var view resolver.View
	if err := json.NewDecoder(res.Body).Decode(&view); err != nil {
		return resolver.View{}, fmt.Errorf("decode resolve response: %w", err)
	}
	return view, nil
}
