// Package tts implements the gateway's uniform provider-adapter contract
// and one adapter per supported TTS provider.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// AudioFormat is the wire container a client requested or a provider
// natively produces.
type AudioFormat string

const (
	FormatMP3 AudioFormat = "mp3"
	FormatWAV AudioFormat = "wav"
	FormatPCM AudioFormat = "pcm16"
)

// Voice is a single voice entry as returned by listVoices.
type Voice struct {
	ID        string
	Name      string
	Languages []string
	Locale    string
	Gender    string
}

// SynthOptions carries the caller's request for a single synthesis call.
type SynthOptions struct {
	VoiceID    string
	Format     AudioFormat
	SampleRate int
	SSML       bool
}

// Capabilities is the static capability record an adapter reports, used
// for dispatch instead of runtime property probing.
type Capabilities struct {
	SupportsStream     bool
	SupportsTimestamps bool
	NativeFormats      []AudioFormat
}

// HealthStatus is the result of an adapter health check.
type HealthStatus struct {
	OK         bool
	VoiceCount int
}

// CharAlignment gives one character's start/end time in seconds.
type CharAlignment struct {
	Character string
	StartSec  float64
	EndSec    float64
}

// ResultKind tags which variant a SynthResult carries.
type ResultKind int

const (
	KindBytes ResultKind = iota
	KindStream
	KindTimestamped
)

// Chunk is one element of a streamed synthesis result.
type Chunk struct {
	Data []byte
	Err  error
}

// SynthResult is the tagged-variant synthesis outcome: exactly one of
// Bytes, Stream, or Timestamped is populated, selected by Kind. Callers
// dispatch on Kind rather than probing which fields are non-nil so that
// a future variant is a compile-time decision, not a silent no-op.
type SynthResult struct {
	Kind ResultKind

	// KindBytes
	Bytes []byte

	// KindStream
	Stream <-chan Chunk

	// KindTimestamped
	TimestampedAudio []byte
	Alignment        []CharAlignment // nil when the provider has no native timings
}

// Adapter is the uniform contract every provider implementation satisfies.
type Adapter interface {
	Name() string
	ListVoices(ctx context.Context) ([]Voice, error)
	Synthesize(ctx context.Context, text string, opts SynthOptions) ([]byte, error)
	SynthesizeStream(ctx context.Context, text string, opts SynthOptions) (SynthResult, error)
	SynthesizeTimestamped(ctx context.Context, text string, voiceID string) (SynthResult, error)
	Capabilities() Capabilities
	HealthCheck(ctx context.Context) HealthStatus
	Close() error
}

// Credentials is a field map used both to configure an adapter and to
// fingerprint it for the engine registry cache key.
type Credentials map[string]string

// Retry constants used by WithRetry, which the ElevenLabs and Polly
// adapters wrap their provider calls in.
const (
	defaultMaxAttempts    = 4
	defaultInitialBackoff = 500 * time.Millisecond
	defaultBackoffMulti   = 2
	defaultMaxBackoff     = 10 * time.Second
)

// RetryableError signals that the call can be retried, optionally with a
// server-advertised Retry-After wait.
type RetryableError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Body)
}

func isRetryable(ctx context.Context, err error) bool {
	if _, ok := err.(*RetryableError); ok {
		return true
	}
	if ctx.Err() == nil && (os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)) {
		return true
	}
	return false
}

// WithRetry runs fn with exponential backoff on retryable errors, honoring
// a Retry-After hint when present.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	backoff := defaultInitialBackoff

	for attempt := 1; attempt <= defaultMaxAttempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else if !isRetryable(ctx, err) {
			return err
		} else {
			lastErr = err
		}

		if attempt < defaultMaxAttempts {
			wait := backoff
			if re, ok := lastErr.(*RetryableError); ok && re.RetryAfter > wait {
				wait = re.RetryAfter
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			backoff *= time.Duration(defaultBackoffMulti)
			if backoff > defaultMaxBackoff {
				backoff = defaultMaxBackoff
			}
		}
	}

	return lastErr
}

// ChunkBytes splits data into chunkSize-sized pieces, delivering them over
// a channel. Used by adapters that only support buffered synthesis to
// satisfy SynthesizeStream by chunking the complete result.
func ChunkBytes(ctx context.Context, data []byte, chunkSize int) <-chan Chunk {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	out := make(chan Chunk)
	go func() {
		defer close(out)
		for i := 0; i < len(data); i += chunkSize {
			end := i + chunkSize
			if end > len(data) {
				end = len(data)
			}
			select {
			case out <- Chunk{Data: data[i:end]}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
