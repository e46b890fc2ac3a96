package persona

import (
	"context"
	"errors"
	"testing"
)

func TestInMemoryStoreBySlug(t *testing.T) {
	s := NewInMemoryStore(Record{
		Slug:    "lina",
		Nome:    "Lina",
		VoiceID: "v123",
	})

	got, err := s.BySlug(context.Background(), "lina")
	if err != nil {
		t.Fatalf("BySlug() error = %v", err)
	}
	if got.Nome != "Lina" || got.VoiceID != "v123" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestInMemoryStoreMissIsNotFound(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.BySlug(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("BySlug() error = %v, want ErrNotFound", err)
	}
}

func TestInMemoryStoreLookupIsCaseSensitive(t *testing.T) {
	s := NewInMemoryStore(Record{Slug: "lina", VoiceID: "v123"})
	if _, err := s.BySlug(context.Background(), "Lina"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("BySlug(%q) error = %v, want ErrNotFound", "Lina", err)
	}
}
