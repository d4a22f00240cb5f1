package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	elevenLabsBaseURL          = "https://api.elevenlabs.io/v1/text-to-speech"
	elevenLabsDefaultModel     = "eleven_multilingual_v2"
	elevenLabsLowLatencyModel  = "eleven_flash_v2_5"
)

// ElevenLabsAdapter covers three of the spec's provider roles through its
// Credentials["model"] option: the default multilingual model, the
// low-latency flash model, and (via SynthesizeTimestamped) the provider
// that returns real character-level timings. Output format is always MP3,
// matching the upstream API; downstream conversion is the gateway's job.
type ElevenLabsAdapter struct {
	apiKey     string
	model      string
	httpClient *http.Client
	voices     []Voice
}

// NewElevenLabsAdapter builds an adapter from credentials. creds["model"]
// overrides the default model (e.g. eleven_flash_v2_5 for the low-latency
// variant); creds["api_key"] is required.
func NewElevenLabsAdapter(creds Credentials) *ElevenLabsAdapter {
	model := creds["model"]
	if model == "" {
		model = elevenLabsDefaultModel
	}
	return &ElevenLabsAdapter{
		apiKey:     creds["api_key"],
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *ElevenLabsAdapter) Name() string { return "elevenlabs" }

func (a *ElevenLabsAdapter) ListVoices(ctx context.Context) ([]Voice, error) {
	if a.voices != nil {
		return a.voices, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.elevenlabs.io/v1/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("create voices request: %w", err)
	}
	req.Header.Set("xi-api-key", a.apiKey)

	res, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elevenlabs voices error (status %d): %s", res.StatusCode, string(body))
	}

	var parsed struct {
		Voices []struct {
			VoiceID string `json:"voice_id"`
			Name    string `json:"name"`
			Labels  struct {
				Language string `json:"language"`
				Gender   string `json:"gender"`
			} `json:"labels"`
		} `json:"voices"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode voices: %w", err)
	}

	voices := make([]Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		voices = append(voices, Voice{
			ID:        v.VoiceID,
			Name:      v.Name,
			Languages: []string{v.Labels.Language},
			Gender:    v.Labels.Gender,
		})
	}
	a.voices = voices
	return voices, nil
}

type elevenLabsTTSRequest struct {
	Text          string                `json:"text"`
	ModelID       string                `json:"model_id"`
	VoiceSettings *elevenLabsVoiceTuning `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceTuning struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

func (a *ElevenLabsAdapter) Synthesize(ctx context.Context, text string, opts SynthOptions) ([]byte, error) {
	var audio []byte
	err := WithRetry(ctx, func() error {
		out, err := a.synthesizeOnce(ctx, text, opts.VoiceID)
		if err != nil {
			return err
		}
		audio = out
		return nil
	})
	return audio, err
}

func (a *ElevenLabsAdapter) synthesizeOnce(ctx context.Context, text, voiceID string) ([]byte, error) {
	reqBody := elevenLabsTTSRequest{
		Text:    text,
		ModelID: a.model,
		VoiceSettings: &elevenLabsVoiceTuning{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			UseSpeakerBoost: true,
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", elevenLabsBaseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("xi-api-key", a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
		body, _ := io.ReadAll(res.Body)
		re := &RetryableError{StatusCode: res.StatusCode, Body: string(body)}
		if ra := res.Header.Get("Retry-After"); ra != "" {
			if secs, perr := time.ParseDuration(ra + "s"); perr == nil {
				re.RetryAfter = secs
			}
		}
		return nil, re
	}
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elevenlabs error (status %d): %s", res.StatusCode, string(body))
	}

	return io.ReadAll(res.Body)
}

func (a *ElevenLabsAdapter) SynthesizeStream(ctx context.Context, text string, opts SynthOptions) (SynthResult, error) {
	audio, err := a.Synthesize(ctx, text, opts)
	if err != nil {
		return SynthResult{}, err
	}
	chunkSize := 32 * 1024
	return SynthResult{Kind: KindStream, Stream: ChunkBytes(ctx, audio, chunkSize)}, nil
}

// elevenLabsAlignmentResponse mirrors the upstream with-timestamps shape.
type elevenLabsAlignmentResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Alignment   *struct {
		Characters            []string  `json:"characters"`
		CharacterStartTimesS  []float64 `json:"character_start_times_seconds"`
		CharacterEndTimesS    []float64 `json:"character_end_times_seconds"`
	} `json:"alignment"`
}

func (a *ElevenLabsAdapter) SynthesizeTimestamped(ctx context.Context, text string, voiceID string) (SynthResult, error) {
	reqBody := elevenLabsTTSRequest{Text: text, ModelID: a.model}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return SynthResult{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/with-timestamps", elevenLabsBaseURL, voiceID)
	var parsed elevenLabsAlignmentResponse

	err = WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("xi-api-key", a.apiKey)
		req.Header.Set("Content-Type", "application/json")

		res, err := a.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
			body, _ := io.ReadAll(res.Body)
			return &RetryableError{StatusCode: res.StatusCode, Body: string(body)}
		}
		if res.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(res.Body)
			return fmt.Errorf("elevenlabs timestamps error (status %d): %s", res.StatusCode, string(body))
		}
		return json.NewDecoder(res.Body).Decode(&parsed)
	})
	if err != nil {
		return SynthResult{}, err
	}

	audio, err := base64.StdEncoding.DecodeString(parsed.AudioBase64)
	if err != nil {
		return SynthResult{}, fmt.Errorf("decode audio_base64: %w", err)
	}

	result := SynthResult{Kind: KindTimestamped, TimestampedAudio: audio}
	if parsed.Alignment != nil {
		n := len(parsed.Alignment.Characters)
		alignment := make([]CharAlignment, 0, n)
		for i := 0; i < n; i++ {
			alignment = append(alignment, CharAlignment{
				Character: parsed.Alignment.Characters[i],
				StartSec:  parsed.Alignment.CharacterStartTimesS[i],
				EndSec:    parsed.Alignment.CharacterEndTimesS[i],
			})
		}
		result.Alignment = alignment
	}
	return result, nil
}

func (a *ElevenLabsAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsStream:     true,
		SupportsTimestamps: true,
		NativeFormats:      []AudioFormat{FormatMP3},
	}
}

func (a *ElevenLabsAdapter) HealthCheck(ctx context.Context) HealthStatus {
	voices, err := a.ListVoices(ctx)
	if err != nil {
		return HealthStatus{OK: false}
	}
	return HealthStatus{OK: true, VoiceCount: len(voices)}
}

func (a *ElevenLabsAdapter) Close() error { return nil }
