package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apresai/ttsgateway/internal/config"
	"github.com/apresai/ttsgateway/internal/credstore"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/pipeline"
	"github.com/apresai/ttsgateway/internal/ratelimit"
	"github.com/apresai/ttsgateway/internal/registry"
	"github.com/apresai/ttsgateway/internal/usage"
	"github.com/apresai/ttsgateway/internal/voice"
)

const testAdminKey = "test-admin-bootstrap"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := keys.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	creds, err := credstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("credstore.New: %v", err)
	}
	limiter := ratelimit.New()
	t.Cleanup(limiter.Stop)
	reg := registry.New()
	resolver := voice.New(reg, nil)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	pipe := pipeline.New(repo, limiter, usage.New(10, nil, ""), resolver, creds, testAdminKey, log)
	cfg := config.Config{RateLimitRequests: 60, RateLimitWindowMs: 60_000}
	return New(cfg, pipe, reg, repo, creds, log)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["service"] != "ttsgateway" {
		t.Fatalf("expected service field, got %v", body)
	}
	if body["timestamp"] == nil || body["timestamp"] == "" {
		t.Fatalf("expected a timestamp field, got %v", body)
	}
}

func TestAdminRoutesRejectMissingKey(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/api/keys", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminRoutesAcceptBootstrapKey(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/api/keys", nil)
	req.Header.Set("X-API-Key", testAdminKey)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
}

func TestAdminCreateThenListKey(t *testing.T) {
	s := newTestServer(t)

	createReq := httptest.NewRequest(http.MethodPost, "/admin/api/keys", strings.NewReader(`{"name":"worker-1"}`))
	createReq.Header.Set("X-API-Key", testAdminKey)
	createRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(createRec, createReq)
	if createRec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body=%s", createRec.Code, createRec.Body.String())
	}

	var created map[string]any
	if err := json.NewDecoder(createRec.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created["apiKey"] == nil || created["apiKey"] == "" {
		t.Fatalf("expected a plaintext api key in the response: %v", created)
	}

	listReq := httptest.NewRequest(http.MethodGet, "/admin/api/keys", nil)
	listReq.Header.Set("X-API-Key", testAdminKey)
	listRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(listRec, listReq)

	var listed map[string]any
	if err := json.NewDecoder(listRec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	records, ok := listed["keys"].([]any)
	if !ok || len(records) != 1 {
		t.Fatalf("expected exactly one key listed, got %v", listed)
	}
}

func TestV1VoicesRequiresAuth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/voices", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestV1VoicesListsMockProvider(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/voices", nil)
	req.Header.Set("X-API-Key", testAdminKey)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}

	var body struct {
		Voices []map[string]any `json:"voices"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, v := range body.Voices {
		labels, _ := v["labels"].(map[string]any)
		if v["category"] == "premade" && labels["engine"] == "mock" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one mock-provider voice, got %v", body.Voices)
	}
}

func TestReadyIsUnavailableBeforeAnyProviderConstructed(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 with no providers constructed yet", rec.Code)
	}
}

func TestReadyIsOKOnceOneProviderIsHealthy(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/voices", nil)
	req.Header.Set("X-API-Key", testAdminKey)
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 once the mock provider has been constructed", rec.Code)
	}
}
