package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"
)

func withTempDataDir(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("DATABASE_URL", "")
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("Pipe: %v", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestRunKeysCreateRequiresName(t *testing.T) {
	withTempDataDir(t)
	flagKeyName = ""
	cmd := keysCreateCmd
	cmd.SetContext(context.Background())
	if err := runKeysCreate(cmd, nil); err == nil {
		t.Fatal("expected an error when --name is empty")
	}
}

func TestRunKeysCreateThenList(t *testing.T) {
	withTempDataDir(t)
	flagKeyName = "ci-worker"
	flagKeyAdmin = false
	flagKeyRequests = 60
	flagKeyWindowMs = 60_000
	flagKeyExpiresIn = ""

	cmd := keysCreateCmd
	cmd.SetContext(context.Background())

	createOut := captureStdout(t, func() {
		if err := runKeysCreate(cmd, nil); err != nil {
			t.Fatalf("runKeysCreate: %v", err)
		}
	})
	if !strings.Contains(createOut, "api key:") {
		t.Fatalf("expected plaintext key in output, got %q", createOut)
	}

	listCmd := keysListCmd
	listCmd.SetContext(context.Background())
	listOut := captureStdout(t, func() {
		if err := runKeysList(listCmd, nil); err != nil {
			t.Fatalf("runKeysList: %v", err)
		}
	})
	if !strings.Contains(listOut, "ci-worker") {
		t.Fatalf("expected created key to appear in list, got %q", listOut)
	}
}

func TestRunKeysCreateRejectsInvalidExpiry(t *testing.T) {
	withTempDataDir(t)
	flagKeyName = "expiring-key"
	flagKeyExpiresIn = "not-a-duration"
	defer func() { flagKeyExpiresIn = "" }()

	cmd := keysCreateCmd
	cmd.SetContext(context.Background())
	if err := runKeysCreate(cmd, nil); err == nil {
		t.Fatal("expected an error for an invalid --expires-in value")
	}
}
