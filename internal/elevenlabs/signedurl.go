// Package elevenlabs holds the outbound client for the conversational-voice
// provider. The only call this service makes is the signed-URL mint: a signed
// URL authorizes one realtime conversation session for one agent and is
// short-lived by the provider's own semantics, so it is requested fresh for
// every resolve and never cached.
package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const signedURLPath = "/v1/convai/conversation/get_signed_url"

// maxUpstreamBody caps how much of an upstream error body is retained for logs.
const maxUpstreamBody = 2048

// SignedSession is the ephemeral result of one mint. It is held in memory for
// a single conversation attempt and never persisted.
type SignedSession struct {
	URL       string
	IssuedFor string
}

// UpstreamError reports a non-success provider response. Status and Body are
// for server-side logs only; handlers must not forward them to requesters.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("signed url request failed: status %d", e.Status)
}

type Config struct {
	APIKey     string
	APIBaseURL string
	Timeout    time.Duration
}

// SignedURLClient mints signed conversation URLs. The API key travels only in
// the xi-api-key request header, never in the URL or any response structure.
type SignedURLClient struct {
	cfg  Config
	http *http.Client
}

func NewSignedURLClient(cfg Config) *SignedURLClient {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = "https://api.elevenlabs.io"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SignedURLClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// SignedURL requests a fresh signed session URL for the given agent.
func (c *SignedURLClient) SignedURL(ctx context.Context, agentID string) (SignedSession, error) {
	if strings.TrimSpace(agentID) == "" {
		return SignedSession{}, fmt.Errorf("agent id is required")
	}

	u, err := url.Parse(strings.TrimRight(c.cfg.APIBaseURL, "/") + signedURLPath)
	if err != nil {
		return SignedSession{}, err
	}
	q := u.Query()
	q.Set("agent_id", agentID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return SignedSession{}, err
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	res, err := c.http.Do(req)
	if err != nil {
		return SignedSession{}, &UpstreamError{Status: 0, Body: err.Error()}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxUpstreamBody))
		return SignedSession{}, &UpstreamError{Status: res.StatusCode, Body: string(body)}
	}

	var payload struct {
		SignedURL string `json:"signed_url"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return SignedSession{}, &UpstreamError{Status: res.StatusCode, Body: "invalid json response: " + err.Error()}
	}
	if strings.TrimSpace(payload.SignedURL) == "" {
		return SignedSession{}, &UpstreamError{Status: res.StatusCode, Body: "response missing signed_url"}
	}

	return SignedSession{URL: payload.SignedURL, IssuedFor: agentID}, nil
}
