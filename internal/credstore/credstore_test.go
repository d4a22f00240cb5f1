package credstore

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSetAndMask(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := store.Set("elevenlabs", map[string]string{"api_key": "secret123"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	masked := store.GetMasked()
	if !masked["elevenlabs"]["api_key"] {
		t.Fatalf("expected api_key to be present in masked projection")
	}

	raw := store.GetRaw(context.Background(), "elevenlabs")
	if raw["api_key"] != "secret123" {
		t.Fatalf("GetRaw returned %q, want secret123", raw["api_key"])
	}
}

func TestPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Set("polly", map[string]string{"access_key": "AKIA", "secret_key": "shh"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reloaded, err := New(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	raw := reloaded.GetRaw(context.Background(), "polly")
	if raw["access_key"] != "AKIA" || raw["secret_key"] != "shh" {
		t.Fatalf("unexpected reloaded fields: %#v", raw)
	}

	if _, err := filepath.Abs(dir); err != nil {
		t.Fatalf("abs: %v", err)
	}
}

func TestGetRawUnknownProvider(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if raw := store.GetRaw(context.Background(), "nope"); raw != nil {
		t.Fatalf("expected nil fields for unknown provider, got %#v", raw)
	}
}
