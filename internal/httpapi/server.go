package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/falavox/falavox/internal/config"
	"github.com/falavox/falavox/internal/elevenlabs"
	"github.com/falavox/falavox/internal/observability"
	"github.com/falavox/falavox/internal/resolver"
)

// AssistantResolver produces the persona view plus a fresh signed URL.
type AssistantResolver interface {
	Resolve(ctx context.Context, slug string) (resolver.View, error)
}

// SignedURLProvider backs the legacy fixed-agent routes.
type SignedURLProvider interface {
	SignedURL(ctx context.Context, agentID string) (elevenlabs.SignedSession, error)
}

type Server struct {
	cfg      config.Config
	resolver AssistantResolver
	provider SignedURLProvider
	metrics  *observability.Metrics
	static   http.Handler
	shell    []byte
}

func New(cfg config.Config, res AssistantResolver, provider SignedURLProvider, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		resolver: res,
		provider: provider,
		metrics:  metrics,
		static:   newStaticHandler(),
		shell:    shellHTML(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.cfg.AllowAnyOrigin {
		r.Use(allowAnyOrigin)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/api/assistants/{slug}", s.handleResolveAssistant)
	r.Get("/api/assistants/{slug}/signed-url", s.handleAssistantSignedURL)

	// Legacy fixed-agent routes from the first deployment. They serve the
	// default agent only and exist so old embeds keep working.
	r.Get("/api/signed-url", s.handleLegacySignedURL)
	r.Get("/api/agent-id", s.handleLegacyAgentID)

	r.Handle("/static/*", http.StripPrefix("/static/", s.static))

	// Anything else is a persona page; the SPA shell resolves the slug from
	// the path on load.
	r.NotFound(s.handleShell)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, "healthz", http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, "readyz", http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleResolveAssistant(w http.ResponseWriter, r *http.Request) {
	const route = "resolve_assistant"
	slug := chi.URLParam(r, "slug")
	if strings.TrimSpace(slug) == "" {
		s.respondError(w, route, http.StatusBadRequest, "invalid_slug", "missing slug")
		return
	}

	view, err := s.resolver.Resolve(r.Context(), slug)
	if err != nil {
		s.respondResolveError(w, route, slug, err)
		return
	}
	s.respondJSON(w, route, http.StatusOK, view)
}

func (s *Server) handleAssistantSignedURL(w http.ResponseWriter, r *http.Request) {
	const route = "assistant_signed_url"
	slug := chi.URLParam(r, "slug")
	if strings.TrimSpace(slug) == "" {
		s.respondError(w, route, http.StatusBadRequest, "invalid_slug", "missing slug")
		return
	}

	view, err := s.resolver.Resolve(r.Context(), slug)
	if err != nil {
		s.respondResolveError(w, route, slug, err)
		return
	}
	s.respondJSON(w, route, http.StatusOK, map[string]string{"signedUrl": view.SignedURL})
}

func (s *Server) handleLegacySignedURL(w http.ResponseWriter, r *http.Request) {
	const route = "legacy_signed_url"
	if strings.TrimSpace(s.cfg.DefaultAgentID) == "" {
		s.respondError(w, route, http.StatusNotFound, "no_default_agent", "no default agent configured")
		return
	}
	sess, err := s.provider.SignedURL(r.Context(), s.cfg.DefaultAgentID)
	if err != nil {
		var upstream *elevenlabs.UpstreamError
		if errors.As(err, &upstream) {
			log.Printf("legacy signed-url upstream failure: status=%d body=%q", upstream.Status, upstream.Body)
		} else {
			log.Printf("legacy signed-url failure: %v", err)
		}
		s.respondError(w, route, http.StatusInternalServerError, "upstream_error", "failed to get signed URL")
		return
	}
	s.respondJSON(w, route, http.StatusOK, map[string]string{"signedUrl": sess.URL})
}

func (s *Server) handleLegacyAgentID(w http.ResponseWriter, r *http.Request) {
	const route = "legacy_agent_id"
	if strings.TrimSpace(s.cfg.DefaultAgentID) == "" {
		s.respondError(w, route, http.StatusNotFound, "no_default_agent", "no default agent configured")
		return
	}
	s.respondJSON(w, route, http.StatusOK, map[string]string{"agentId": s.cfg.DefaultAgentID})
}

func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		s.respondError(w, "shell", http.StatusNotFound, "unknown_route", "unknown API route")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.respondError(w, "shell", http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(s.shell)
	}
	s.count("shell", http.StatusOK)
}

// respondResolveError maps resolver failures onto the wire. Upstream and store
// details are logged here and never included in the response body.
func (s *Server) respondResolveError(w http.ResponseWriter, route, slug string, err error) {
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		s.respondError(w, route, http.StatusNotFound, "assistant_not_found", "assistant not found")
	default:
		var upstream *elevenlabs.UpstreamError
		var storeErr *resolver.StoreError
		if errors.As(err, &upstream) {
			log.Printf("resolve %q upstream failure: status=%d body=%q", slug, upstream.Status, upstream.Body)
			s.respondError(w, route, http.StatusInternalServerError, "upstream_error", "failed to get signed URL")
			return
		}
		if errors.As(err, &storeErr) {
			log.Printf("resolve %q store failure: %v", slug, storeErr.Err)
			s.respondError(w, route, http.StatusInternalServerError, "store_error", "assistant lookup failed")
			return
		}
		log.Printf("resolve %q failure: %v", slug, err)
		s.respondError(w, route, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) respondJSON(w http.ResponseWriter, route string, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	s.count(route, status)
}

func (s *Server) respondError(w http.ResponseWriter, route string, status int, code, message string) {
	s.respondJSON(w, route, status, errorResponse{Error: message, Code: code})
}

func (s *Server) count(route string, status int) {
	if s.metrics == nil {
		return
	}
	s.metrics.HTTPResponses.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}
