package persona

import (
	"context"
	"errors"
)

// Record is one assistant persona row. Slug is the immutable lookup key;
// VoiceID is the opaque identifier handed to the signed-URL provider and is
// never shown on the page itself.
type Record struct {
	Slug            string `json:"slug"`
	Nome            string `json:"nome"`
	Descricao       string `json:"descricao"`
	FotoURL         string `json:"foto_url"`
	BackgroundImage string `json:"background_image"`
	VoiceID         string `json:"elevenlabs_voice_id"`
}

// ErrNotFound reports that no persona exists for a slug. Store failures are
// returned as distinct errors so callers can tell a miss from an outage.
var ErrNotFound = errors.New("persona not found")

// Store looks up persona records. Writes happen through an administrative
// process outside this service; the store is read-only here.
type Store interface {
	BySlug(ctx context.Context, slug string) (Record, error)
	Close() error
}
