package voice

import (
	"context"
	"testing"

	"github.com/apresai/ttsgateway/internal/gwerr"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/registry"
)

func noCreds(provider string) map[string]string { return nil }

func TestResolveCanonicalFacadeID(t *testing.T) {
	r := New(registry.New(), nil)
	b, err := r.Resolve(context.Background(), "mock-en-us-1", nil, noCreds)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b.Provider != "mock" || b.NativeVoiceID != "en-us-1" {
		t.Fatalf("unexpected binding: %+v", b)
	}
}

func TestResolveMalformedFacadeID(t *testing.T) {
	r := New(registry.New(), nil)
	if _, err := r.Resolve(context.Background(), "noseparator", nil, noCreds); err == nil {
		t.Fatal("expected an error for a facade id with no provider separator")
	}
	if _, err := r.Resolve(context.Background(), "-missingprovider", nil, noCreds); err == nil {
		t.Fatal("expected an error for a facade id with an empty provider")
	}
}

func TestResolveRespectsAllowlist(t *testing.T) {
	r := New(registry.New(), nil)
	key := &keys.Record{AllowedVoices: []string{"mock-en-us-1"}}

	if _, err := r.Resolve(context.Background(), "mock-en-us-1", key, noCreds); err != nil {
		t.Fatalf("allowlisted voice should resolve: %v", err)
	}

	_, err := r.Resolve(context.Background(), "mock-de-de-1", key, noCreds)
	if err == nil {
		t.Fatal("expected a voice outside the allowlist to be rejected")
	}
	ge, ok := gwerr.As(err)
	if !ok || ge.Kind != gwerr.Forbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestResolveRespectsDisabledProvider(t *testing.T) {
	r := New(registry.New(), nil)
	key := &keys.Record{
		ProviderConfig: map[string]keys.ProviderPolicy{
			"mock": {Enabled: false},
		},
	}
	_, err := r.Resolve(context.Background(), "mock-en-us-1", key, noCreds)
	if err == nil {
		t.Fatal("expected disabled provider to be rejected")
	}
	ge, ok := gwerr.As(err)
	if !ok || ge.Kind != gwerr.Forbidden {
		t.Fatalf("expected Forbidden, got %v", err)
	}
}

func TestResolveUnknownProviderIsNotFound(t *testing.T) {
	r := New(registry.New(), nil)
	_, err := r.Resolve(context.Background(), "nosuchprovider-voice1", nil, noCreds)
	if err == nil {
		t.Fatal("expected an error resolving an unregistered provider")
	}
	ge, ok := gwerr.As(err)
	if !ok || ge.Kind != gwerr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestResolveStaticVoice(t *testing.T) {
	static := []StaticVoice{
		{Facade: FacadeVoice{ID: "narrator"}, Provider: "mock", NativeID: "en-us-1"},
	}
	r := New(registry.New(), static)

	b, err := r.Resolve(context.Background(), "narrator", nil, noCreds)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if b.Provider != "mock" || b.NativeVoiceID != "en-us-1" {
		t.Fatalf("unexpected binding for static voice: %+v", b)
	}
}

func TestResolveProviderIgnoresAllowlist(t *testing.T) {
	r := New(registry.New(), nil)
	key := &keys.Record{AllowedVoices: []string{"mock-en-us-1"}}

	adapter, err := r.ResolveProvider(context.Background(), "mock", key, noCreds)
	if err != nil {
		t.Fatalf("ResolveProvider should not apply the voice allowlist: %v", err)
	}
	if adapter == nil {
		t.Fatal("expected a non-nil adapter")
	}
}

func TestProvidersIncludesMock(t *testing.T) {
	r := New(registry.New(), nil)
	found := false
	for _, p := range r.Providers() {
		if p == "mock" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected mock provider to be listed")
	}
}
