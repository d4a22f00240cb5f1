// Package session implements the gateway's bidirectional streaming
// session protocol: JSON command/control frames interleaved with raw
// binary audio chunks over a single upgraded connection. Grounded on the
// gorilla/websocket read/write-pump idiom used by the pack's realtime
// clients (haivivi-giztoy's openai-realtime and doubaospeech packages)
// and on the meta -> chunks -> end framing pattern of the retrieved
// reference TTS server.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/apresai/ttsgateway/internal/gwerr"
	"github.com/apresai/ttsgateway/internal/keys"
	"github.com/apresai/ttsgateway/internal/pipeline"
	"github.com/apresai/ttsgateway/internal/tts"
)

const (
	idleTimeout        = 60 * time.Second
	providerTimeout    = 30 * time.Second
	defaultChunkSize   = 32 * 1024
	embeddedMaxTextLen = 500
)

// Upgrader builds a configured websocket.Upgrader honoring the gateway's
// CORS_ORIGIN setting via CheckOrigin.
func Upgrader(corsOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if corsOrigin == "" || corsOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == corsOrigin
		},
	}
}

// speakCommand is the C->S "speak" frame.
type speakCommand struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Engine     string `json:"engine"`
	Voice      string `json:"voice"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
	SSML       bool   `json:"ssml,omitempty"`
	Stream     bool   `json:"stream,omitempty"`
	ChunkSize  int    `json:"chunk_size,omitempty"`
}

// genericCommand is used to sniff the "type" field before dispatching to a
// specific parse.
type genericCommand struct {
	Type   string `json:"type"`
	Engine string `json:"engine,omitempty"`
}

type metaFrame struct {
	Type       string `json:"type"`
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	Engine     string `json:"engine"`
	Voice      string `json:"voice"`
	Bytes      int    `json:"bytes,omitempty"`
	Stream     bool   `json:"stream"`
	ChunkSize  int    `json:"chunk_size,omitempty"`
	Chunks     int    `json:"chunks,omitempty"`
}

type endFrame struct {
	Type      string `json:"type"`
	Bytes     int    `json:"bytes"`
	Chunks    int    `json:"chunks"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

type voicesFrame struct {
	Voices []tts.Voice `json:"voices"`
}

type enginesFrame struct {
	Engines []string `json:"engines"`
}

// Session wraps one upgraded connection and the authenticated key bound
// to it for its lifetime.
type Session struct {
	ID     string
	conn   *websocket.Conn
	key    *keys.Record
	pipe   *pipeline.Pipeline
	log    *slog.Logger

	writeMu sync.Mutex

	bytesSent  int64
	chunksSent int64
}

// Serve upgrades r, authenticates the connection, and runs the session's
// read loop until the connection closes. Authentication failure closes
// the socket with policy-violation close code 1008 per spec.md §4.J.
func Serve(w http.ResponseWriter, r *http.Request, upgrader websocket.Upgrader, pipe *pipeline.Pipeline, log *slog.Logger, id string) {
	keyMaterial := pipeline.ExtractKeyMaterial(r)
	key, err := pipe.Authenticate(r.Context(), keyMaterial, false)
	if err != nil {
		conn, upErr := upgrader.Upgrade(w, r, nil)
		if upErr != nil {
			http.Error(w, "upgrade failed", http.StatusBadRequest)
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"), time.Now().Add(5*time.Second))
		_ = conn.Close()
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := &Session{ID: id, conn: conn, key: key, pipe: pipe, log: log}
	s.run()
}

func (s *Session) run() {
	defer s.conn.Close()
	s.conn.SetReadDeadline(time.Now().Add(idleTimeout))

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(idleTimeout))

		if msgType != websocket.TextMessage {
			s.sendError("unexpected binary frame from client", "UNKNOWN_COMMAND")
			continue
		}

		var generic genericCommand
		if err := json.Unmarshal(data, &generic); err != nil {
			s.sendError("invalid JSON", "INVALID_JSON")
			continue
		}

		switch generic.Type {
		case "speak":
			var cmd speakCommand
			if err := json.Unmarshal(data, &cmd); err != nil {
				s.sendError("invalid JSON", "INVALID_JSON")
				continue
			}
			s.handleSpeak(cmd)
		case "list_voices", "voices":
			s.handleListVoices(generic.Engine)
		case "engines":
			s.handleEngines()
		default:
			s.sendError(fmt.Sprintf("unknown command type %q", generic.Type), "UNKNOWN_COMMAND")
		}
	}
}

func (s *Session) handleSpeak(cmd speakCommand) {
	ctx := context.Background()

	if len([]rune(cmd.Text)) > embeddedMaxTextLen {
		s.sendError("text exceeds maximum length", "TEXT_TOO_LONG")
		return
	}
	if cmd.Text == "" {
		s.sendError("text must not be empty", "INVALID_JSON")
		return
	}

	facadeID := cmd.Engine + "-" + cmd.Voice
	binding, err := s.pipe.ResolveVoice(ctx, facadeID, s.key)
	if err != nil {
		s.sendError(err.Error(), classifyCode(err))
		return
	}

	format := tts.AudioFormat(cmd.Format)
	if format == "" {
		format = tts.FormatWAV
	}
	opts := tts.SynthOptions{VoiceID: binding.NativeVoiceID, Format: format, SampleRate: cmd.SampleRate, SSML: cmd.SSML}

	synthCtx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	start := time.Now()

	chunkSize := cmd.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	var audio []byte
	if cmd.Stream {
		result, err := binding.Adapter.SynthesizeStream(synthCtx, cmd.Text, opts)
		if err != nil {
			s.meterAndError(cmd, binding.Provider, 502, err)
			return
		}
		audio, err = drainStream(synthCtx, result)
		if err != nil {
			s.meterAndError(cmd, binding.Provider, 502, err)
			return
		}
	} else {
		out, err := binding.Adapter.Synthesize(synthCtx, cmd.Text, opts)
		if err != nil {
			s.meterAndError(cmd, binding.Provider, 502, err)
			return
		}
		audio = out
	}

	numChunks := (len(audio) + chunkSize - 1) / chunkSize
	if len(audio) == 0 {
		numChunks = 0
	}

	if err := s.sendMeta(metaFrame{
		Type:       "meta",
		Format:     string(format),
		SampleRate: cmd.SampleRate,
		Engine:     binding.Provider,
		Voice:      binding.NativeVoiceID,
		Bytes:      len(audio),
		Stream:     cmd.Stream,
		ChunkSize:  chunkSize,
		Chunks:     numChunks,
	}); err != nil {
		return
	}

	chunksSent := 0
	for i := 0; i < len(audio); i += chunkSize {
		end := i + chunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := s.writeBinary(audio[i:end]); err != nil {
			return
		}
		chunksSent++
	}

	s.bytesSent += int64(len(audio))
	s.chunksSent += int64(chunksSent)

	s.sendEnd(endFrame{
		Type:      "end",
		Bytes:     len(audio),
		Chunks:    chunksSent,
		ElapsedMs: time.Since(start).Milliseconds(),
	})

	s.pipe.Meter(ctx, s.key, binding.Provider, "/api/ws", len([]rune(cmd.Text)), time.Since(start), 200)
}

func (s *Session) meterAndError(cmd speakCommand, provider string, status int, err error) {
	s.pipe.Meter(context.Background(), s.key, provider, "/api/ws", len([]rune(cmd.Text)), 0, status)
	s.sendError(err.Error(), classifyCode(err))
}

func drainStream(ctx context.Context, result tts.SynthResult) ([]byte, error) {
	if result.Kind != tts.KindStream {
		return nil, errors.New("adapter did not return a stream result")
	}
	var buf []byte
	for chunk := range result.Stream {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		buf = append(buf, chunk.Data...)
	}
	return buf, nil
}

func classifyCode(err error) string {
	if ge, ok := gwerr.As(err); ok {
		return ge.Kind.String()
	}
	return "PROVIDER_FAILED"
}

func (s *Session) handleListVoices(engine string) {
	// The session protocol doesn't carry per-key allowlist scoping for
	// voice listing the way the HTTP /v1/voices path does; it simply
	// reports what the named engine's adapter advertises.
	if engine == "" {
		s.sendError("engine is required for list_voices", "UNKNOWN_COMMAND")
		return
	}
	adapter, err := s.pipe.ResolveProviderAdapter(context.Background(), engine, s.key)
	if err != nil {
		s.sendError(err.Error(), classifyCode(err))
		return
	}
	voices, err := adapter.ListVoices(context.Background())
	if err != nil {
		s.sendError(err.Error(), "PROVIDER_FAILED")
		return
	}
	s.writeJSON(voicesFrame{Voices: voices})
}

func (s *Session) handleEngines() {
	s.writeJSON(enginesFrame{Engines: s.pipe.ProviderNames()})
}

func (s *Session) sendMeta(m metaFrame) error {
	return s.writeJSON(m)
}

func (s *Session) sendEnd(e endFrame) {
	_ = s.writeJSON(e)
}

func (s *Session) sendError(message, code string) {
	_ = s.writeJSON(errorFrame{Type: "error", Error: message, Code: code})
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(v)
}

func (s *Session) writeBinary(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}
