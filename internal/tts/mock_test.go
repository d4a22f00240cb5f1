package tts

import (
	"context"
	"testing"
)

func TestMockSynthesizePCM(t *testing.T) {
	a := NewMockAdapter()
	data, err := a.Synthesize(context.Background(), "hello world", SynthOptions{Format: FormatPCM, SampleRate: 16000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) == 0 || len(data)%2 != 0 {
		t.Fatalf("expected non-empty 16-bit aligned pcm, got %d bytes", len(data))
	}
}

func TestMockSynthesizeWAVHasHeader(t *testing.T) {
	a := NewMockAdapter()
	data, err := a.Synthesize(context.Background(), "hello", SynthOptions{Format: FormatWAV, SampleRate: 16000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("expected RIFF/WAVE container, got %v", data[:min(12, len(data))])
	}
}

func TestMockHealthCheckAlwaysOK(t *testing.T) {
	a := NewMockAdapter()
	st := a.HealthCheck(context.Background())
	if !st.OK {
		t.Fatal("expected mock adapter to always report healthy")
	}
}
