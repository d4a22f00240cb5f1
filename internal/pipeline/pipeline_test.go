package pipeline

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/apresai/ttsgateway/internal/credstore"
	"github.com/apresai/ttsgateway/internal/gwerr"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/ratelimit"
	"github.com/apresai/ttsgateway/internal/registry"
	"github.com/apresai/ttsgateway/internal/usage"
	"github.com/apresai/ttsgateway/internal/voice"
)

func testPipeline(t *testing.T) *Pipeline {
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
	resolver := voice.New(registry.New(), nil)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(repo, limiter, usage.New(10, nil, ""), resolver, creds, "admin-bootstrap-secret", log)
}

func TestExtractKeyMaterialHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-API-Key", "abc")
	if got := ExtractKeyMaterial(r); got != "abc" {
		t.Fatalf("got %q, want abc", got)
	}
}

func TestExtractKeyMaterialBearer(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	if got := ExtractKeyMaterial(r); got != "xyz" {
		t.Fatalf("got %q, want xyz", got)
	}
}

func TestExtractKeyMaterialQueryParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?api_key=q1", nil)
	if got := ExtractKeyMaterial(r); got != "q1" {
		t.Fatalf("got %q, want q1", got)
	}
}

func TestAuthenticateMissingKey(t *testing.T) {
	p := testPipeline(t)
	_, err := p.Authenticate(context.Background(), "", false)
	ge, ok := gwerr.As(err)
	if !ok || ge.Kind != gwerr.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestAuthenticateBootstrapKey(t *testing.T) {
	p := testPipeline(t)
	rec, err := p.Authenticate(context.Background(), "admin-bootstrap-secret", true)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if rec.ID != keys.BootstrapKeyID || !rec.IsAdmin {
		t.Fatalf("expected bootstrap admin record, got %+v", rec)
	}
}

func TestAuthenticateUnknownKey(t *testing.T) {
	p := testPipeline(t)
	_, err := p.Authenticate(context.Background(), "tts_doesnotexist", false)
	ge, ok := gwerr.As(err)
	if !ok || ge.Kind != gwerr.Unauthorized {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestAuthenticateAdminOnlyRejectsNonAdmin(t *testing.T) {
	p := testPipeline(t)
	plaintext, _, err := p.Keys.Create(context.Background(), "caller", false, true, keys.RateLimitPolicy{Requests: 10, WindowMs: 1000}, nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = p.Authenticate(context.Background(), plaintext, true)
	ge, ok := gwerr.As(err)
	if !ok || ge.Kind != gwerr.Forbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestCheckRateLimitUsesKeyPolicy(t *testing.T) {
	p := testPipeline(t)
	key := &keys.Record{ID: "k1", RateLimit: keys.RateLimitPolicy{Requests: 1, WindowMs: int64(time.Minute / time.Millisecond)}}

	if !p.CheckRateLimit(key).Allowed {
		t.Fatal("first request should be allowed")
	}
	if p.CheckRateLimit(key).Allowed {
		t.Fatal("second request within window should be denied")
	}
}

func TestValidateText(t *testing.T) {
	if err := ValidateText("  ", 0); err == nil {
		t.Fatal("expected error for blank text")
	}
	if err := ValidateText("hello", 3); err == nil {
		t.Fatal("expected error for text exceeding max length")
	}
	if err := ValidateText("hello", 0); err != nil {
		t.Fatalf("expected no error with unlimited length, got %v", err)
	}
}

func TestMeterFiltersBootstrapFromUsage(t *testing.T) {
	p := testPipeline(t)
	p.Meter(context.Background(), keys.BootstrapRecord(), "mock", "/v1/text-to-speech/mock-x", 10, time.Millisecond, 200)
	st := p.Usage.Stats(time.Time{})
	if st.Total != 0 {
		t.Fatalf("expected bootstrap usage to be filtered, got %d events", st.Total)
	}
}

func TestMeterRecordsEstimatedCost(t *testing.T) {
	p := testPipeline(t)
	plaintext, rec, err := p.Keys.Create(context.Background(), "caller", false, true, keys.RateLimitPolicy{Requests: 10, WindowMs: 1000}, nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = plaintext
	p.Meter(context.Background(), rec, "elevenlabs", "/v1/text-to-speech/elevenlabs-x", 1000, time.Millisecond, 200)

	st := p.Usage.Stats(time.Time{})
	if st.TotalCostUSD <= 0 {
		t.Fatalf("expected a positive estimated cost, got %v", st.TotalCostUSD)
	}
}

func TestSilentMP3FallbackReturnsIndependentCopies(t *testing.T) {
	a := SilentMP3Fallback()
	b := SilentMP3Fallback()
	if len(a) == 0 {
		t.Fatal("expected a non-empty silent fallback payload")
	}
	a[0] = 0x00
	if b[0] != 0xFF {
		t.Fatal("SilentMP3Fallback should return independent copies")
	}
}
