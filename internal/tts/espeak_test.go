package tts

import "testing"

func TestStripWAVHeaderExtractsDataChunk(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}
	wav := wrapWAV(pcm, 16000)

	got := stripWAVHeader(wav)
	if len(got) != len(pcm) {
		t.Fatalf("expected %d bytes of pcm, got %d", len(pcm), len(got))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("byte %d mismatch: want %d got %d", i, pcm[i], got[i])
		}
	}
}

func TestStripWAVHeaderPassesThroughNonWAV(t *testing.T) {
	raw := []byte{0, 1, 2, 3}
	got := stripWAVHeader(raw)
	if len(got) != len(raw) {
		t.Fatalf("expected passthrough for non-WAV input, got %d bytes", len(got))
	}
}
