package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/apresai/ttsgateway/internal/alignment"
	"github.com/apresai/ttsgateway/internal/audioconv"
	"github.com/apresai/ttsgateway/internal/gwerr"
	"github.com/apresai/ttsgateway/internal/pipeline"
	"github.com/apresai/ttsgateway/internal/tts"
)

type synthesizeRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
	SSML    bool   `json:"ssml,omitempty"`
}

const maxSynthTextLen = 5000

// handleSynthesizeV1 implements POST /v1/text-to-speech/{voiceId}: JSON
// text in, raw audio bytes out, content negotiated via
// output_format per spec.md §6/§9.
func (s *Server) handleSynthesizeV1(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}

	var req synthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerr.New(gwerr.BadRequest, "decode", "invalid JSON body"))
		return
	}
	if err := pipeline.ValidateText(req.Text, maxSynthTextLen); err != nil {
		writeError(w, err)
		return
	}

	voiceID := r.PathValue("voiceId")
	binding, err := s.Pipe.ResolveVoice(r.Context(), voiceID, key)
	if err != nil {
		writeError(w, err)
		return
	}

	caps := binding.Adapter.Capabilities()
	nativeFormat := tts.FormatMP3
	if len(caps.NativeFormats) > 0 {
		nativeFormat = caps.NativeFormats[0]
	}

	audio, err := binding.Adapter.Synthesize(r.Context(), req.Text, tts.SynthOptions{
		VoiceID: binding.NativeVoiceID,
		Format:  nativeFormat,
		SSML:    req.SSML,
	})
	if err != nil {
		s.Pipe.Meter(r.Context(), key, binding.Provider, r.URL.Path, len([]rune(req.Text)), time.Since(start), http.StatusBadGateway)
		if s.Cfg.SilentFallbackOnFail {
			w.Header().Set("Content-Type", "audio/mpeg")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(pipeline.SilentMP3Fallback())
			return
		}
		writeError(w, err)
		return
	}

	negotiation := audioconv.Negotiate(string(nativeFormat), r.URL.Query().Get("output_format"))
	out, err := audioconv.Apply(r.Context(), negotiation, audio, s.Log)
	if err != nil {
		writeError(w, gwerr.Wrap(gwerr.Internal, "audioconv", "format conversion failed", err))
		return
	}

	s.Pipe.Meter(r.Context(), key, binding.Provider, r.URL.Path, len([]rune(req.Text)), time.Since(start), http.StatusOK)

	w.Header().Set("Content-Type", negotiation.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

type timestampedRequest struct {
	Text string `json:"text"`
	SSML bool   `json:"ssml,omitempty"`
}

type timestampedResponse struct {
	AudioBase64         string               `json:"audio_base64"`
	Alignment           *alignment.Alignment `json:"alignment"`
	NormalizedAlignment *alignment.Alignment `json:"normalized_alignment"`
}

// handleSynthesizeTimestampedV1 implements
// POST /v1/text-to-speech/{voiceId}/stream/with-timestamps per
// spec.md §4.I: a chunked JSON response carrying base64 audio plus a
// per-character alignment, real when the provider supplies one, else
// null (or a deterministic synthesized approximation when
// ALIGNMENT_SYNTHESIZE is set).
func (s *Server) handleSynthesizeTimestampedV1(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	key, ok := s.authenticate(w, r, false)
	if !ok {
		return
	}

	var req timestampedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gwerr.New(gwerr.BadRequest, "decode", "invalid JSON body"))
		return
	}
	if err := pipeline.ValidateText(req.Text, maxSynthTextLen); err != nil {
		writeError(w, err)
		return
	}

	voiceID := r.PathValue("voiceId")
	binding, err := s.Pipe.ResolveVoice(r.Context(), voiceID, key)
	if err != nil {
		writeError(w, err)
		return
	}

	var audioBytes []byte
	var align *alignment.Alignment

	if binding.Adapter.Capabilities().SupportsTimestamps {
		result, err := binding.Adapter.SynthesizeTimestamped(r.Context(), req.Text, binding.NativeVoiceID)
		if err == nil && result.Kind == tts.KindTimestamped {
			audioBytes = result.TimestampedAudio
			if result.Alignment != nil {
				align = alignment.FromReal(result.Alignment)
			}
		}
	}

	if audioBytes == nil {
		caps := binding.Adapter.Capabilities()
		nativeFormat := tts.FormatMP3
		if len(caps.NativeFormats) > 0 {
			nativeFormat = caps.NativeFormats[0]
		}
		out, err := binding.Adapter.Synthesize(r.Context(), req.Text, tts.SynthOptions{VoiceID: binding.NativeVoiceID, Format: nativeFormat, SSML: req.SSML})
		if err != nil {
			s.Pipe.Meter(r.Context(), key, binding.Provider, r.URL.Path, len([]rune(req.Text)), time.Since(start), http.StatusBadGateway)
			writeError(w, err)
			return
		}
		audioBytes = out
	}

	if align == nil && s.Cfg.AlignmentSynthesize {
		align = alignment.Synthesize(req.Text, binding.NativeVoiceID)
	}

	s.Pipe.Meter(r.Context(), key, binding.Provider, r.URL.Path, len([]rune(req.Text)), time.Since(start), http.StatusOK)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	_ = json.NewEncoder(w).Encode(timestampedResponse{
		AudioBase64:         base64.StdEncoding.EncodeToString(audioBytes),
		Alignment:           align,
		NormalizedAlignment: alignment.Normalize(align),
	})
}
