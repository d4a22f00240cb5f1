package httpapi

import (
	"net/http"
	"strconv"

	"github.com/apresai/ttsgateway/internal/gwerr"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/pipeline"
)

// authenticate runs pipeline stages 1-3 (extract, authenticate, rate
// limit) for a plain request handler, writing the appropriate error
// response itself on failure. ok is false when the caller should return
// immediately.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, adminOnly bool) (*keys.Record, bool) {
	keyMaterial := pipeline.ExtractKeyMaterial(r)
	key, err := s.Pipe.Authenticate(r.Context(), keyMaterial, adminOnly)
	if err != nil {
		writeError(w, err)
		return nil, false
	}

	result := s.Pipe.CheckRateLimit(key)
	w.Header().Set("X-RateLimit-Remaining", remainingHeader(result.Remaining))
	if !result.Allowed {
		writeError(w, gwerr.New(gwerr.RateLimited, "rate-limit", "rate limit exceeded").WithPublic("Rate Limit Exceeded"))
		return nil, false
	}

	return key, true
}

func remainingHeader(n int) string {
	if n < 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}
