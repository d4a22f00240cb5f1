package httpapi

import (
	"net/http"

	"github.com/oklog/ulid/v2"

	"github.com/apresai/ttsgateway/internal/session"
)

// handleWebSocket upgrades GET /api/ws into a streaming session per
// spec.md §4.J.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session.Serve(w, r, s.Upgrader, s.Pipe, s.Log, ulid.Make().String())
}
