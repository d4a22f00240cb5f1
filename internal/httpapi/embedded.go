package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/apresai/ttsgateway/internal/audioconv"
	"github.com/apresai/ttsgateway/internal/gwerr"
	"github.com/apresai/ttsgateway/internal/pipeline"
	"github.com/apresai/ttsgateway/internal/tts"
)

type speakRequest struct {
	Text       string `json:"text"`
	Engine     string `json:"engine"`
	Voice      string `json:"voice"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
	SSML       bool   `json:"ssml,omitempty"`
}

// handleSpeakEmbedded implements POST /api/speak: the ESP32/embedded
// client path, defaulting engine/voice/sample rate from config when the
// caller omits them, per spec.md §4.D/§6.
func (s *Server) handleSpeakEmbedded(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}

	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerr.New(gwerr.BadRequest, "decode", "invalid JSON body"))
		return
	}
	if err := pipeline.ValidateText(req.Text, s.Cfg.ESP32MaxTextLength); err != nil {
		writeError(w, err)
		return
	}

	engine := req.Engine
	if engine == "" {
		engine = s.Cfg.ESP32DefaultEngine
	}
	voiceID := req.Voice
	if voiceID == "" {
		voiceID = s.Cfg.ESP32DefaultVoice
	}
	sampleRate := req.SampleRate
	if sampleRate == 0 {
		sampleRate = s.Cfg.ESP32SampleRate
	}

	binding, err := s.Pipe.ResolveVoice(r.Context(), engine+"-"+voiceID, key)
	if err != nil {
		writeError(w, err)
		return
	}

	format := tts.AudioFormat(req.Format)
	if format == "" {
		format = tts.FormatPCM
	}

	audio, err := binding.Adapter.Synthesize(r.Context(), req.Text, tts.SynthOptions{
		VoiceID:    binding.NativeVoiceID,
		Format:     format,
		SampleRate: sampleRate,
		SSML:       req.SSML,
	})
	if err != nil {
		s.Pipe.Meter(r.Context(), key, binding.Provider, r.URL.Path, len([]rune(req.Text)), time.Since(start), http.StatusBadGateway)
		writeError(w, err)
		return
	}

	s.Pipe.Meter(r.Context(), key, binding.Provider, r.URL.Path, len([]rune(req.Text)), time.Since(start), http.StatusOK)

	w.Header().Set("Content-Type", audioconv.ContentTypeForContainer(string(format)))
	w.Header().Set("X-Sample-Rate", strconv.Itoa(sampleRate))
	w.Header().Set("X-Channels", "1")
	w.Header().Set("X-Bits-Per-Sample", "16")
	w.Header().Set("X-Processing-Time-Ms", strconv.FormatInt(time.Since(start).Milliseconds(), 10))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// handleVoicesEmbedded implements GET /api/voices?engine=, a flat voice
// list for a single named provider (unlike /v1/voices, which merges
// across every provider).
func (s *Server) handleVoicesEmbedded(w http.ResponseWriter, r *http.Request) {
	key, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}
	engine := r.URL.Query().Get("engine")
	if engine == "" {
		engine = s.Cfg.ESP32DefaultEngine
	}

	adapter, err := s.Pipe.ResolveProviderAdapter(r.Context(), engine, key)
	if err != nil {
		writeError(w, err)
		return
	}
	voices, err := adapter.ListVoices(r.Context())
	if err != nil {
		writeError(w, gwerr.Wrap(gwerr.ProviderFailed, "list-voices", "provider failed to list voices", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"engine": engine, "voices": voices, "count": len(voices)})
}

// handleEnginesEmbedded implements GET /api/engines.
func (s *Server) handleEnginesEmbedded(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r, false); !ok {
		return
	}
	names := s.Pipe.ProviderNames()
	type engineInfo struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Available bool   `json:"available"`
	}
	out := make([]engineInfo, 0, len(names))
	health := s.Registry.ListHealth(r.Context())
	for _, name := range names {
		available := true
		if h, ok := health[name]; ok {
			available = h.OK
		}
		out = append(out, engineInfo{ID: name, Name: name, Available: available})
	}
	writeJSON(w, http.StatusOK, map[string]any{"engines": out, "default": s.Cfg.ESP32DefaultEngine})
}
