// Package resolver turns a slug into everything a page needs to start a
// conversation: the persona's public fields plus a freshly minted signed
// session URL.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/falavox/falavox/internal/elevenlabs"
	"github.com/falavox/falavox/internal/observability"
	"github.com/falavox/falavox/internal/persona"
)

// View is the read-only projection returned to clients. It never carries the
// provider API key.
type View struct {
	Nome            string `json:"nome"`
	Descricao       string `json:"descricao"`
	FotoURL         string `json:"foto_url"`
	BackgroundImage string `json:"background_image"`
	VoiceID         string `json:"voice_id"`
	SignedURL       string `json:"signed_url"`
}

// ErrNotFound reports an unknown slug. Permanent for that slug; callers should
// not retry.
var ErrNotFound = errors.New("assistant not found")

// StoreError reports a datastore failure (unreachable, query error). Transient.
type StoreError struct {
	Err error
}

func (e *StoreError) Error() string { return "persona store failure: " + e.Err.Error() }
func (e *StoreError) Unwrap() error { return e.Err }

// SignedURLProvider mints a fresh session URL for a voice identifier.
type SignedURLProvider interface {
	SignedURL(ctx context.Context, agentID string) (elevenlabs.SignedSession, error)
}

type Resolver struct {
	store    persona.Store
	provider SignedURLProvider
	metrics  *observability.Metrics
}

func New(store persona.Store, provider SignedURLProvider, metrics *observability.Metrics) *Resolver {
	return &Resolver{store: store, provider: provider, metrics: metrics}
}

// Resolve looks up the persona and requests a signed URL for its voice
// identifier. The store is consulted first so that a guaranteed miss performs
// no provider call. Every successful resolve carries a new signed URL; nothing
// is cached between calls.
func (r *Resolver) Resolve(ctx context.Context, slug string) (View, error) {
	rec, err := r.store.BySlug(ctx, slug)
	if errors.Is(err, persona.ErrNotFound) {
		r.observe("not_found")
		return View{}, ErrNotFound
	}
	if err != nil {
		r.observe("store_error")
		return View{}, &StoreError{Err: err}
	}

	start := time.Now()
	sess, err := r.provider.SignedURL(ctx, rec.VoiceID)
	if err != nil {
		var upstream *elevenlabs.UpstreamError
		if errors.As(err, &upstream) && r.metrics != nil {
			r.metrics.ProviderErrors.WithLabelValues(strconv.Itoa(upstream.Status)).Inc()
		}
		r.observe("upstream_error")
		return View{}, fmt.Errorf("mint signed url for %q: %w", slug, err)
	}
	if r.metrics != nil {
		r.metrics.ObserveSignedURLLatency(time.Since(start))
	}
	r.observe("ok")

	return View{
		Nome:            rec.Nome,
		Descricao:       rec.Descricao,
		FotoURL:         rec.FotoURL,
		BackgroundImage: rec.BackgroundImage,
		VoiceID:         rec.VoiceID,
		SignedURL:       sess.URL,
	}, nil
}

func (r *Resolver) observe(outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.ResolveRequests.WithLabelValues(outcome).Inc()
}
