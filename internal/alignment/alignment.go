// Package alignment produces the ElevenLabs-compatible alignment JSON for
// the timestamped-audio synthesis path: real character timings when a
// provider supplies them, or a deterministic synthesized approximation
// when an older client requests one via a feature flag.
package alignment

import (
	"hash/fnv"
	"math/rand/v2"
	"unicode"

	"github.com/apresai/ttsgateway/internal/tts"
)

// Alignment is the canonical upstream shape: three equal-length arrays,
// one entry per UTF-8 code point.
type Alignment struct {
	Characters               []string  `json:"characters"`
	CharacterStartTimesSeconds []float64 `json:"character_start_times_seconds"`
	CharacterEndTimesSeconds   []float64 `json:"character_end_times_seconds"`
}

// FromReal converts a provider's native character timings into the
// canonical wire shape.
func FromReal(chars []tts.CharAlignment) *Alignment {
	if chars == nil {
		return nil
	}
	a := &Alignment{
		Characters:                 make([]string, len(chars)),
		CharacterStartTimesSeconds: make([]float64, len(chars)),
		CharacterEndTimesSeconds:   make([]float64, len(chars)),
	}
	for i, c := range chars {
		a.Characters[i] = c.Character
		a.CharacterStartTimesSeconds[i] = c.StartSec
		a.CharacterEndTimesSeconds[i] = c.EndSec
	}
	return a
}

// targetCharsPerSecond is the calibration constant the synthesized
// alignment's total duration is scaled to (characterCount / 10.8 seconds).
const targetCharsPerSecond = 10.8

// baseDuration returns the unjittered base duration in seconds for one
// character, classified per spec.md §4.I.
func baseDuration(r rune) float64 {
	switch {
	case r == ' ':
		return 0.04
	case isVowel(r):
		return 0.10
	case r == '.' || r == '!' || r == '?':
		return 0.175
	case unicode.IsLetter(r):
		return 0.065
	default:
		return 0.085
	}
}

func isVowel(r rune) bool {
	switch unicode.ToLower(r) {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	default:
		return false
	}
}

// seed derives a deterministic PRNG seed from text+voiceID so that
// Synthesize(text, voiceID) always returns the identical alignment,
// per spec.md §8's determinism invariant.
func seed(text, voiceID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(voiceID))
	return h.Sum64()
}

// Synthesize derives character-duration alignment deterministically from
// (text, voiceID) per spec.md §4.I: base durations by character class,
// jittered ±20%, then scaled so the total duration matches
// characterCount/10.8 seconds.
func Synthesize(text, voiceID string) *Alignment {
	chars := []rune(text)
	n := len(chars)
	if n == 0 {
		return &Alignment{Characters: []string{}, CharacterStartTimesSeconds: []float64{}, CharacterEndTimesSeconds: []float64{}}
	}

	rng := rand.New(rand.NewPCG(seed(text, voiceID), seed(voiceID, text)))

	durations := make([]float64, n)
	var rawTotal float64
	for i, r := range chars {
		base := baseDuration(r)
		jitter := 1 + (rng.Float64()*2-1)*0.20
		d := base * jitter
		durations[i] = d
		rawTotal += d
	}

	targetTotal := float64(n) / targetCharsPerSecond
	scale := 1.0
	if rawTotal > 0 {
		scale = targetTotal / rawTotal
	}

	a := &Alignment{
		Characters:                 make([]string, n),
		CharacterStartTimesSeconds: make([]float64, n),
		CharacterEndTimesSeconds:   make([]float64, n),
	}
	var cursor float64
	for i, r := range chars {
		start := cursor
		end := cursor + durations[i]*scale
		a.Characters[i] = string(r)
		a.CharacterStartTimesSeconds[i] = round3(start)
		a.CharacterEndTimesSeconds[i] = round3(end)
		cursor = end
	}
	return a
}

func round3(v float64) float64 {
	const p = 1000.0
	if v < 0 {
		v = 0
	}
	return float64(int64(v*p+0.5)) / p
}

// Normalize clones an alignment unchanged. The upstream "normalized"
// alignment differs from the raw one only when a provider returns
// phoneme-level timings that need collapsing to characters; none of this
// gateway's providers do, so normalized_alignment is always identical to
// alignment.
func Normalize(a *Alignment) *Alignment {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}
