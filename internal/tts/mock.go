package tts

import (
	"context"
	"encoding/binary"
)

// MockAdapter always succeeds, returning a short fixed-length clip of
// silence. It is registered as the "mock" provider and used only when a
// request names it; the registry does not substitute it for a provider
// whose construction fails.
type MockAdapter struct{}

func NewMockAdapter() *MockAdapter { return &MockAdapter{} }

func (a *MockAdapter) Name() string { return "mock" }

func (a *MockAdapter) ListVoices(ctx context.Context) ([]Voice, error) {
	return []Voice{{ID: "silence", Name: "Silence", Languages: []string{"en-US"}, Gender: "neutral"}}, nil
}

// Synthesize returns roughly 200ms of silence regardless of text length,
// at opts.SampleRate (16kHz when unset), as raw 16-bit mono PCM when
// opts.Format is pcm16, or in a minimal WAV container otherwise.
func (a *MockAdapter) Synthesize(ctx context.Context, text string, opts SynthOptions) ([]byte, error) {
	sampleRate := opts.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	samples := sampleRate / 5
	pcm := make([]byte, samples*2)

	if opts.Format == FormatPCM {
		return pcm, nil
	}
	return wrapWAV(pcm, sampleRate), nil
}

func wrapWAV(pcm []byte, sampleRate int) []byte {
	var buf []byte
	buf = append(buf, "RIFF"...)
	buf = appendUint32(buf, uint32(36+len(pcm)))
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = appendUint32(buf, 16)
	buf = appendUint16(buf, 1) // PCM
	buf = appendUint16(buf, 1) // mono
	buf = appendUint32(buf, uint32(sampleRate))
	buf = appendUint32(buf, uint32(sampleRate*2))
	buf = appendUint16(buf, 2)
	buf = appendUint16(buf, 16)
	buf = append(buf, "data"...)
	buf = appendUint32(buf, uint32(len(pcm)))
	buf = append(buf, pcm...)
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp, v)
	return append(buf, tmp...)
}

func appendUint16(buf []byte, v uint16) []byte {
	tmp := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp, v)
	return append(buf, tmp...)
}

func (a *MockAdapter) SynthesizeStream(ctx context.Context, text string, opts SynthOptions) (SynthResult, error) {
	audio, err := a.Synthesize(ctx, text, opts)
	if err != nil {
		return SynthResult{}, err
	}
	return SynthResult{Kind: KindStream, Stream: ChunkBytes(ctx, audio, 32*1024)}, nil
}

func (a *MockAdapter) SynthesizeTimestamped(ctx context.Context, text string, voiceID string) (SynthResult, error) {
	audio, _ := a.Synthesize(ctx, text, SynthOptions{Format: FormatPCM})
	return SynthResult{Kind: KindTimestamped, TimestampedAudio: audio, Alignment: nil}, nil
}

func (a *MockAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsStream:     true,
		SupportsTimestamps: true,
		NativeFormats:      []AudioFormat{FormatPCM, FormatWAV},
	}
}

func (a *MockAdapter) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{OK: true, VoiceCount: 1}
}

func (a *MockAdapter) Close() error { return nil }
