package keys

import (
	"context"
	"regexp"
	"testing"
)

var plaintextPattern = regexp.MustCompile(`^tts_[0-9a-f]{64}$`)

func TestCreateLookupDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	plaintext, rec, err := store.Create(ctx, "t", false, true, RateLimitPolicy{Requests: 60, WindowMs: 60000}, nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !plaintextPattern.MatchString(plaintext) {
		t.Fatalf("plaintext %q does not match expected shape", plaintext)
	}
	if rec.HashHex == "" || rec.Suffix != plaintext[len(plaintext)-8:] {
		t.Fatalf("unexpected record: %#v", rec)
	}

	found, err := store.LookupByPlaintext(ctx, plaintext)
	if err != nil {
		t.Fatalf("LookupByPlaintext: %v", err)
	}
	if found == nil || found.ID != rec.ID {
		t.Fatalf("expected to find record %s, got %#v", rec.ID, found)
	}

	if err := store.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	found, err = store.LookupByPlaintext(ctx, plaintext)
	if err != nil {
		t.Fatalf("LookupByPlaintext after delete: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no record after delete, got %#v", found)
	}
}

func TestInactiveKeyFailsLookup(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	plaintext, rec, err := store.Create(ctx, "t", false, false, RateLimitPolicy{Requests: 60, WindowMs: 60000}, nil, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = rec

	found, err := store.LookupByPlaintext(ctx, plaintext)
	if err != nil {
		t.Fatalf("LookupByPlaintext: %v", err)
	}
	if found != nil {
		t.Fatalf("expected inactive key lookup to fail, got %#v", found)
	}
}

func TestPersistenceAcrossReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	plaintext, rec, err := store.Create(ctx, "persisted", true, true, RateLimitPolicy{Requests: 10, WindowMs: 1000}, nil, []string{"espeak-en"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	found, err := reopened.LookupByPlaintext(ctx, plaintext)
	if err != nil {
		t.Fatalf("LookupByPlaintext: %v", err)
	}
	if found == nil || found.ID != rec.ID || !found.IsAdmin {
		t.Fatalf("unexpected reloaded record: %#v", found)
	}
}
