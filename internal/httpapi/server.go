// Package httpapi wires the request pipeline, voice resolver, and
// streaming session protocol to net/http, implementing every REST and
// WebSocket surface the gateway exposes. Grounded on
// apresai-podcaster/internal/mcpserver/server.go's ServeMux-plus-middleware
// layering and request logging.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/apresai/ttsgateway/internal/config"
	"github.com/apresai/ttsgateway/internal/credstore"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/pipeline"
	"github.com/apresai/ttsgateway/internal/registry"
	"github.com/apresai/ttsgateway/internal/session"
)

// Server owns every dependency an HTTP handler needs and exposes the
// wired router via Handler().
type Server struct {
	Cfg      config.Config
	Pipe     *pipeline.Pipeline
	Registry *registry.Registry
	Keys     keys.Repository
	Creds    *credstore.Store
	Log      *slog.Logger
	Upgrader websocket.Upgrader
	Started  time.Time
}

// New builds a Server from its dependencies.
func New(cfg config.Config, pipe *pipeline.Pipeline, reg *registry.Registry, repo keys.Repository, creds *credstore.Store, log *slog.Logger) *Server {
	return &Server{
		Cfg:      cfg,
		Pipe:     pipe,
		Registry: reg,
		Keys:     repo,
		Creds:    creds,
		Log:      log,
		Upgrader: session.Upgrader(cfg.CORSOrigin),
		Started:  time.Now(),
	}
}

// Handler builds the complete, middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /v1/voices", s.handleListVoicesV1)
	mux.HandleFunc("POST /v1/text-to-speech/{voiceId}", s.handleSynthesizeV1)
	mux.HandleFunc("POST /v1/text-to-speech/{voiceId}/stream/with-timestamps", s.handleSynthesizeTimestampedV1)
	mux.HandleFunc("GET /v1/user", s.handleUser)
	mux.HandleFunc("GET /v1/models", s.handleModels)

	mux.HandleFunc("POST /api/speak", s.handleSpeakEmbedded)
	mux.HandleFunc("GET /api/voices", s.handleVoicesEmbedded)
	mux.HandleFunc("GET /api/engines", s.handleEnginesEmbedded)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	s.registerAdminRoutes(mux)

	return otelhttp.NewHandler(s.withMiddleware(mux), "ttsgateway")
}

// withMiddleware applies request logging and CORS headers, matching the
// teacher server's wrapping idiom.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if origin := s.Cfg.CORSOrigin; origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		r2 := r
		if s.Cfg.MaxRequestSize > 0 {
			r2.Body = http.MaxBytesReader(w, r.Body, s.Cfg.MaxRequestSize)
		}

		next.ServeHTTP(w, r2)
		s.Log.Info("request", "method", r.Method, "path", r.URL.Path, "elapsed_ms", time.Since(start).Milliseconds())
	})
}
