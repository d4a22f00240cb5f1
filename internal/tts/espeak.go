package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// espeakVoiceCatalog lists the espeak-ng voices exposed by the adapter.
// espeak-ng ships dozens more; this is the curated subset the gateway
// advertises.
var espeakVoiceCatalog = []Voice{
	{ID: "en-us", Name: "English (US)", Languages: []string{"en-US"}, Gender: "male"},
	{ID: "en-gb", Name: "English (UK)", Languages: []string{"en-GB"}, Gender: "male"},
	{ID: "en-gb-x-rp", Name: "English (RP)", Languages: []string{"en-GB"}, Gender: "male"},
	{ID: "es", Name: "Spanish", Languages: []string{"es"}, Gender: "male"},
	{ID: "fr", Name: "French", Languages: []string{"fr"}, Gender: "male"},
	{ID: "de", Name: "German", Languages: []string{"de"}, Gender: "male"},
}

// EspeakAdapter shells out to the espeak-ng binary. It is the offline
// provider role: no network call, no credentials, always available as long
// as the binary is on PATH.
type EspeakAdapter struct {
	binary string
}

func NewEspeakAdapter(creds Credentials) *EspeakAdapter {
	binary := creds["binary"]
	if binary == "" {
		binary = "espeak-ng"
	}
	return &EspeakAdapter{binary: binary}
}

func (a *EspeakAdapter) Name() string { return "espeak" }

func (a *EspeakAdapter) ListVoices(ctx context.Context) ([]Voice, error) {
	return espeakVoiceCatalog, nil
}

func (a *EspeakAdapter) Synthesize(ctx context.Context, text string, opts SynthOptions) ([]byte, error) {
	args := []string{
		"-v", opts.VoiceID,
		"-s", "165",
		"--stdout",
	}

	cmd := exec.CommandContext(ctx, a.binary, args...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("espeak-ng synthesis failed: %w: %s", err, stderr.String())
	}

	data := stdout.Bytes()
	if opts.Format == FormatPCM {
		return stripWAVHeader(data), nil
	}
	return data, nil
}

// stripWAVHeader removes the RIFF/WAVE container, returning raw PCM16
// samples. espeak-ng's --stdout always emits a WAV container even when
// asked for raw PCM, so callers that want pcm16 get the header stripped
// here rather than in the shared audioconv layer.
func stripWAVHeader(data []byte) []byte {
	if len(data) < 44 || string(data[0:4]) != "RIFF" {
		return data
	}
	for i := 12; i+8 <= len(data); {
		chunkID := string(data[i : i+4])
		chunkSize := int(data[i+4]) | int(data[i+5])<<8 | int(data[i+6])<<16 | int(data[i+7])<<24
		dataStart := i + 8
		if chunkID == "data" {
			end := dataStart + chunkSize
			if end > len(data) {
				end = len(data)
			}
			return data[dataStart:end]
		}
		i = dataStart + chunkSize
	}
	return data
}

func (a *EspeakAdapter) SynthesizeStream(ctx context.Context, text string, opts SynthOptions) (SynthResult, error) {
	audio, err := a.Synthesize(ctx, text, opts)
	if err != nil {
		return SynthResult{}, err
	}
	return SynthResult{Kind: KindStream, Stream: ChunkBytes(ctx, audio, 32*1024)}, nil
}

func (a *EspeakAdapter) SynthesizeTimestamped(ctx context.Context, text string, voiceID string) (SynthResult, error) {
	return SynthResult{}, fmt.Errorf("espeak adapter does not support timestamped synthesis")
}

func (a *EspeakAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsStream:     true,
		SupportsTimestamps: false,
		NativeFormats:      []AudioFormat{FormatWAV, FormatPCM},
	}
}

func (a *EspeakAdapter) HealthCheck(ctx context.Context) HealthStatus {
	cmd := exec.CommandContext(ctx, a.binary, "--version")
	if err := cmd.Run(); err != nil {
		return HealthStatus{OK: false}
	}
	return HealthStatus{OK: true, VoiceCount: len(espeakVoiceCatalog)}
}

func (a *EspeakAdapter) Close() error { return nil }
