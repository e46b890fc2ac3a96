package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/falavox/falavox/internal/config"
	"github.com/falavox/falavox/internal/elevenlabs"
	"github.com/falavox/falavox/internal/httpapi"
	"github.com/falavox/falavox/internal/observability"
	"github.com/falavox/falavox/internal/persona"
	"github.com/falavox/falavox/internal/resolver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) == "" {
		log.Fatalf("ELEVENLABS_API_KEY is not set")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := persona.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("persona store init failed: %v", err)
	}
	defer store.Close()
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("persona store: in-memory (DATABASE_URL not set)")
	} else {
		log.Printf("persona store: postgres")
	}

	provider := elevenlabs.NewSignedURLClient(elevenlabs.Config{
		APIKey:     cfg.ElevenLabsAPIKey,
		APIBaseURL: cfg.ElevenLabsAPIBaseURL,
		Timeout:    cfg.SignedURLTimeout,
	})

	res := resolver.New(store, provider, metrics)

	api := httpapi.New(cfg, res, provider, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
