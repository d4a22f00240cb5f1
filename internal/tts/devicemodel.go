package tts

import (
	"context"
	"fmt"
	"os/exec"
)

// deviceModelVoiceCatalog is the single voice an on-device model runner
// exposes; the model itself determines voice characteristics, so there is
// no per-voice selection the way cloud providers offer.
var deviceModelVoiceCatalog = []Voice{
	{ID: "onnx-default", Name: "On-device", Languages: []string{"en-US"}, Gender: "neutral"},
}

// DeviceModelAdapter runs a local ONNX/GGML speech model through a helper
// binary, in the same shell-out idiom as the offline espeak adapter but
// pointed at a model runner instead of a fixed text-to-speech binary. It
// is the gateway's on-device provider role for hardware-constrained
// callers that cannot reach a cloud provider.
type DeviceModelAdapter struct {
	runnerPath string
	modelPath  string
}

func NewDeviceModelAdapter(creds Credentials) *DeviceModelAdapter {
	return &DeviceModelAdapter{
		runnerPath: creds["runner_path"],
		modelPath:  creds["model_path"],
	}
}

func (a *DeviceModelAdapter) Name() string { return "devicemodel" }

func (a *DeviceModelAdapter) ListVoices(ctx context.Context) ([]Voice, error) {
	return deviceModelVoiceCatalog, nil
}

func (a *DeviceModelAdapter) Synthesize(ctx context.Context, text string, opts SynthOptions) ([]byte, error) {
	if a.runnerPath == "" {
		return nil, fmt.Errorf("devicemodel adapter not configured: missing runner_path")
	}

	cmd := exec.CommandContext(ctx, a.runnerPath,
		"--model", a.modelPath,
		"--text", text,
		"--format", string(opts.Format),
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("device model synthesis failed: %w", err)
	}
	return out, nil
}

func (a *DeviceModelAdapter) SynthesizeStream(ctx context.Context, text string, opts SynthOptions) (SynthResult, error) {
	audio, err := a.Synthesize(ctx, text, opts)
	if err != nil {
		return SynthResult{}, err
	}
	return SynthResult{Kind: KindStream, Stream: ChunkBytes(ctx, audio, 32*1024)}, nil
}

func (a *DeviceModelAdapter) SynthesizeTimestamped(ctx context.Context, text string, voiceID string) (SynthResult, error) {
	return SynthResult{}, fmt.Errorf("devicemodel adapter does not support timestamped synthesis")
}

func (a *DeviceModelAdapter) Capabilities() Capabilities {
	return Capabilities{
		SupportsStream:     true,
		SupportsTimestamps: false,
		NativeFormats:      []AudioFormat{FormatPCM, FormatWAV},
	}
}

func (a *DeviceModelAdapter) HealthCheck(ctx context.Context) HealthStatus {
	if a.runnerPath == "" {
		return HealthStatus{OK: false}
	}
	cmd := exec.CommandContext(ctx, a.runnerPath, "--version")
	if err := cmd.Run(); err != nil {
		return HealthStatus{OK: false}
	}
	return HealthStatus{OK: true, VoiceCount: len(deviceModelVoiceCatalog)}
}

func (a *DeviceModelAdapter) Close() error { return nil }
