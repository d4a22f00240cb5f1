package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/apresai/ttsgateway/internal/gwerr"
	"github.com/apresai/ttsgateway/internal/keys"
)

// registerAdminRoutes wires the operator surface, every route requiring
// an admin-privileged key.
func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/api/keys", s.adminListKeys)
	mux.HandleFunc("POST /admin/api/keys", s.adminCreateKey)
	mux.HandleFunc("PATCH /admin/api/keys/{id}", s.adminUpdateKey)
	mux.HandleFunc("DELETE /admin/api/keys/{id}", s.adminDeleteKey)
	mux.HandleFunc("GET /admin/api/keys/{id}/engine-config", s.adminGetEngineConfig)
	mux.HandleFunc("PUT /admin/api/keys/{id}/engine-config", s.adminSetEngineConfig)

	mux.HandleFunc("GET /admin/api/usage", s.adminUsage)

	mux.HandleFunc("GET /admin/api/credentials", s.adminGetCredentials)
	mux.HandleFunc("PUT /admin/api/credentials/{provider}", s.adminSetCredentials)

	mux.HandleFunc("GET /admin/api/engines", s.adminEngineHealth)
}

func (s *Server) adminListKeys(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	records, err := s.Keys.List(r.Context())
	if err != nil {
		writeError(w, gwerr.Wrap(gwerr.Internal, "admin-keys", "list failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": records})
}

type createKeyRequest struct {
	Name          string               `json:"name"`
	IsAdmin       bool                 `json:"isAdmin"`
	RateLimit     *keys.RateLimitPolicy `json:"rateLimit,omitempty"`
	ExpiresAt     *time.Time           `json:"expiresAt,omitempty"`
	AllowedVoices []string             `json:"allowedVoices,omitempty"`
}

func (s *Server) adminCreateKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerr.New(gwerr.BadRequest, "decode", "invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeError(w, gwerr.New(gwerr.BadRequest, "validate", "name is required"))
		return
	}
	rateLimit := keys.RateLimitPolicy{Requests: s.Cfg.RateLimitRequests, WindowMs: s.Cfg.RateLimitWindowMs}
	if req.RateLimit != nil {
		rateLimit = *req.RateLimit
	}

	plaintext, rec, err := s.Keys.Create(r.Context(), req.Name, req.IsAdmin, true, rateLimit, req.ExpiresAt, req.AllowedVoices)
	if err != nil {
		writeError(w, gwerr.Wrap(gwerr.Internal, "admin-keys", "create failed", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"apiKey": plaintext, "key": rec})
}

type updateKeyRequest struct {
	Name      *string               `json:"name,omitempty"`
	Active    *bool                 `json:"active,omitempty"`
	IsAdmin   *bool                 `json:"isAdmin,omitempty"`
	RateLimit *keys.RateLimitPolicy `json:"rateLimit,omitempty"`
}

func (s *Server) adminUpdateKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	var req updateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerr.New(gwerr.BadRequest, "decode", "invalid JSON body"))
		return
	}
	rec, err := s.Keys.Update(r.Context(), r.PathValue("id"), keys.Patch{
		Name:      req.Name,
		Active:    req.Active,
		IsAdmin:   req.IsAdmin,
		RateLimit: req.RateLimit,
	})
	if err != nil {
		writeError(w, gwerr.Wrap(gwerr.NotFound, "admin-keys", "key not found", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": rec})
}

func (s *Server) adminDeleteKey(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	if err := s.Keys.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, gwerr.Wrap(gwerr.NotFound, "admin-keys", "key not found", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminGetEngineConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	config, allowed, err := s.Keys.GetEngineConfig(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, gwerr.Wrap(gwerr.NotFound, "admin-keys", "key not found", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providerConfig": config, "allowedVoices": allowed})
}

type setEngineConfigRequest struct {
	ProviderConfig map[string]keys.ProviderPolicy `json:"providerConfig"`
	AllowedVoices  []string                       `json:"allowedVoices"`
}

func (s *Server) adminSetEngineConfig(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	var req setEngineConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerr.New(gwerr.BadRequest, "decode", "invalid JSON body"))
		return
	}
	if err := s.Keys.SetEngineConfig(r.Context(), r.PathValue("id"), req.ProviderConfig, req.AllowedVoices); err != nil {
		writeError(w, gwerr.Wrap(gwerr.NotFound, "admin-keys", "key not found", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminUsage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	since := time.Time{}
	if raw := r.URL.Query().Get("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			since = t
		}
	}
	writeJSON(w, http.StatusOK, s.Pipe.Usage.Stats(since))
}

func (s *Server) adminGetCredentials(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.Creds.GetMasked()})
}

func (s *Server) adminSetCredentials(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	provider := r.PathValue("provider")
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, gwerr.New(gwerr.BadRequest, "decode", "invalid JSON body"))
		return
	}
	if err := s.Creds.Set(provider, fields); err != nil {
		writeError(w, gwerr.Wrap(gwerr.Internal, "admin-credentials", "persist failed", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminEngineHealth(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, true); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.Pipe.ProviderNames(),
		"health":    s.Registry.ListHealth(r.Context()),
	})
}
