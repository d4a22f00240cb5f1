package tts

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetrySucceedsAfterRetryableErrors(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return &RetryableError{StatusCode: 503, Body: "unavailable"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	sentinel := errors.New("bad request")
	err := WithRetry(context.Background(), func() error {
		attempts++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected no retries for non-retryable error, got %d attempts", attempts)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return &RetryableError{StatusCode: 500}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != defaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultMaxAttempts, attempts)
	}
}

func TestChunkBytesDeliversAllData(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ch := ChunkBytes(ctx, data, 30)
	var got []byte
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected chunk error: %v", chunk.Err)
		}
		got = append(got, chunk.Data...)
	}
	if len(got) != len(data) {
		t.Fatalf("expected %d bytes reassembled, got %d", len(data), len(got))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d mismatch: want %d got %d", i, data[i], got[i])
		}
	}
}

func TestChunkBytesRespectsCancellation(t *testing.T) {
	data := make([]byte, 1<<20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := ChunkBytes(ctx, data, 16)
	count := 0
	for range ch {
		count++
		if count > 2 {
			break
		}
	}
}
