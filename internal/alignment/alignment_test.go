package alignment

import (
	"testing"

	"github.com/apresai/ttsgateway/internal/tts"
)

func TestFromRealNilPassthrough(t *testing.T) {
	if FromReal(nil) != nil {
		t.Fatal("FromReal(nil) should return nil")
	}
}

func TestFromRealConvertsFields(t *testing.T) {
	a := FromReal([]tts.CharAlignment{
		{Character: "h", StartSec: 0, EndSec: 0.1},
		{Character: "i", StartSec: 0.1, EndSec: 0.2},
	})
	if a == nil {
		t.Fatal("expected non-nil alignment")
	}
	if len(a.Characters) != 2 || a.Characters[0] != "h" || a.Characters[1] != "i" {
		t.Fatalf("unexpected characters: %v", a.Characters)
	}
	if a.CharacterStartTimesSeconds[1] != 0.1 || a.CharacterEndTimesSeconds[1] != 0.2 {
		t.Fatalf("unexpected timings: %+v", a)
	}
}

func TestSynthesizeEmptyText(t *testing.T) {
	a := Synthesize("", "voice-1")
	if len(a.Characters) != 0 {
		t.Fatalf("expected no characters for empty text, got %d", len(a.Characters))
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	a1 := Synthesize("hello world", "voice-1")
	a2 := Synthesize("hello world", "voice-1")

	if len(a1.Characters) != len(a2.Characters) {
		t.Fatalf("length mismatch: %d vs %d", len(a1.Characters), len(a2.Characters))
	}
	for i := range a1.Characters {
		if a1.Characters[i] != a2.Characters[i] {
			t.Fatalf("character mismatch at %d: %q vs %q", i, a1.Characters[i], a2.Characters[i])
		}
		if a1.CharacterStartTimesSeconds[i] != a2.CharacterStartTimesSeconds[i] {
			t.Fatalf("start time mismatch at %d: %v vs %v", i, a1.CharacterStartTimesSeconds[i], a2.CharacterStartTimesSeconds[i])
		}
		if a1.CharacterEndTimesSeconds[i] != a2.CharacterEndTimesSeconds[i] {
			t.Fatalf("end time mismatch at %d: %v vs %v", i, a1.CharacterEndTimesSeconds[i], a2.CharacterEndTimesSeconds[i])
		}
	}
}

func TestSynthesizeDiffersByVoice(t *testing.T) {
	a1 := Synthesize("hello world", "voice-1")
	a2 := Synthesize("hello world", "voice-2")

	same := true
	for i := range a1.CharacterStartTimesSeconds {
		if a1.CharacterStartTimesSeconds[i] != a2.CharacterStartTimesSeconds[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected different voice IDs to produce different jitter")
	}
}

func TestSynthesizeTimesAreMonotonicAndNonNegative(t *testing.T) {
	a := Synthesize("The quick brown fox!", "voice-x")
	prevEnd := 0.0
	for i := range a.Characters {
		start := a.CharacterStartTimesSeconds[i]
		end := a.CharacterEndTimesSeconds[i]
		if start < 0 || end < start {
			t.Fatalf("invalid interval at %d: [%v, %v]", i, start, end)
		}
		if start < prevEnd-1e-9 {
			t.Fatalf("interval %d starts before previous ended: start=%v prevEnd=%v", i, start, prevEnd)
		}
		prevEnd = end
	}
}

func TestNormalizeNilPassthrough(t *testing.T) {
	if Normalize(nil) != nil {
		t.Fatal("Normalize(nil) should return nil")
	}
}

func TestNormalizeReturnsEquivalentCopy(t *testing.T) {
	a := Synthesize("hi", "voice-1")
	n := Normalize(a)
	if n == a {
		t.Fatal("Normalize should return a distinct pointer")
	}
	if len(n.Characters) != len(a.Characters) {
		t.Fatal("Normalize should preserve character count")
	}
}
