package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/apresai/ttsgateway/internal/credstore"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/pipeline"
	"github.com/apresai/ttsgateway/internal/ratelimit"
	"github.com/apresai/ttsgateway/internal/registry"
	"github.com/apresai/ttsgateway/internal/usage"
	"github.com/apresai/ttsgateway/internal/voice"
)

const testBootstrapKey = "ws-test-bootstrap"

func newTestPipeline(t *testing.T) *pipeline.Pipeline {
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
	return pipeline.New(repo, limiter, usage.New(10, nil, ""), resolver, creds, testBootstrapKey, log)
}

func newTestWSServer(t *testing.T, pipe *pipeline.Pipeline) *httptest.Server {
	t.Helper()
	upgrader := Upgrader("*")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Serve(w, r, upgrader, pipe, log, "test-session")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialWithKey(t *testing.T, srv *httptest.Server, key string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?api_key=" + key
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeRejectsBadAuthWithPolicyViolation(t *testing.T) {
	pipe := newTestPipeline(t)
	srv := newTestWSServer(t, pipe)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	if !ok {
		t.Fatalf("expected a close error, got %v", err)
	}
	if closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("close code = %d, want %d", closeErr.Code, websocket.ClosePolicyViolation)
	}
}

func TestServeEngineCommandListsProviders(t *testing.T) {
	pipe := newTestPipeline(t)
	srv := newTestWSServer(t, pipe)
	conn := dialWithKey(t, srv, testBootstrapKey)

	if err := conn.WriteJSON(map[string]string{"type": "engines"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp enginesFrame
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	found := false
	for _, e := range resp.Engines {
		if e == "mock" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected mock engine listed, got %v", resp.Engines)
	}
}

func TestServeSpeakProducesMetaChunksAndEnd(t *testing.T) {
	pipe := newTestPipeline(t)
	srv := newTestWSServer(t, pipe)
	conn := dialWithKey(t, srv, testBootstrapKey)

	cmd := speakCommand{Type: "speak", Text: "hello world", Engine: "mock", Voice: "en-us-1", Format: "wav"}
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var meta metaFrame
	if err := conn.ReadJSON(&meta); err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if meta.Type != "meta" || meta.Engine != "mock" {
		t.Fatalf("unexpected meta frame: %+v", meta)
	}

	totalBytes := 0
	for i := 0; i < meta.Chunks; i++ {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read chunk %d: %v", i, err)
		}
		if msgType != websocket.BinaryMessage {
			t.Fatalf("chunk %d: expected binary message, got type %d", i, msgType)
		}
		totalBytes += len(data)
	}

	var end endFrame
	if err := conn.ReadJSON(&end); err != nil {
		t.Fatalf("read end: %v", err)
	}
	if end.Type != "end" || end.Bytes != totalBytes {
		t.Fatalf("end frame mismatch: %+v, streamed %d bytes", end, totalBytes)
	}
}

func TestServeSpeakRejectsOversizedText(t *testing.T) {
	pipe := newTestPipeline(t)
	srv := newTestWSServer(t, pipe)
	conn := dialWithKey(t, srv, testBootstrapKey)

	cmd := speakCommand{Type: "speak", Text: strings.Repeat("a", embeddedMaxTextLen+1), Engine: "mock", Voice: "en-us-1"}
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp errorFrame
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.Code != "TEXT_TOO_LONG" {
		t.Fatalf("code = %q, want TEXT_TOO_LONG", resp.Code)
	}
}

func TestServeUnknownCommandReturnsError(t *testing.T) {
	pipe := newTestPipeline(t)
	srv := newTestWSServer(t, pipe)
	conn := dialWithKey(t, srv, testBootstrapKey)

	raw, _ := json.Marshal(map[string]string{"type": "bogus"})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var resp errorFrame
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if resp.Code != "UNKNOWN_COMMAND" {
		t.Fatalf("code = %q, want UNKNOWN_COMMAND", resp.Code)
	}
}
