package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestFormatElapsed(t *testing.T) {
	cases := map[time.Duration]string{
		0:                 "0:00",
		5 * time.Second:   "0:05",
		65 * time.Second:  "1:05",
		125 * time.Second: "2:05",
	}
	for d, want := range cases {
		if got := formatElapsed(d); got != want {
			t.Errorf("formatElapsed(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestTruncateShortStringUnchanged(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Fatalf("truncate short string = %q, want unchanged", got)
	}
}

func TestTruncateLongStringEllipsizes(t *testing.T) {
	got := truncate("this message is far too long", 10)
	if len(got) != 10 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate = %q, want a 10-char string ending in ...", got)
	}
}

func TestTruncateTinyMaxNoEllipsis(t *testing.T) {
	if got := truncate("abcdef", 2); got != "ab" {
		t.Fatalf("truncate with max<=3 = %q, want ab", got)
	}
}

func TestRenderPlainReportsFailuresAndOK(t *testing.T) {
	var buf bytes.Buffer
	r := &HealthRenderer{out: &buf, start: time.Now(), isTTY: false}

	r.Render([]Snapshot{
		{Provider: "mock", OK: true, VoiceCount: 1},
		{Provider: "espeak", OK: false, Error: "binary not found"},
	})

	out := buf.String()
	if !strings.Contains(out, "espeak") || !strings.Contains(out, "FAIL: binary not found") {
		t.Fatalf("expected failure line in output, got %q", out)
	}
	if !strings.Contains(out, "mock") || !strings.Contains(out, "voices=1") {
		t.Fatalf("expected ok line with voice count, got %q", out)
	}
}

func TestRenderPlainSortsByProviderName(t *testing.T) {
	var buf bytes.Buffer
	r := &HealthRenderer{out: &buf, start: time.Now(), isTTY: false}

	r.Render([]Snapshot{
		{Provider: "zeta", OK: true},
		{Provider: "alpha", OK: true},
	})

	out := buf.String()
	if strings.Index(out, "alpha") > strings.Index(out, "zeta") {
		t.Fatalf("expected alpha to sort before zeta, got %q", out)
	}
}

func TestFinishNoopWhenNotTTY(t *testing.T) {
	var buf bytes.Buffer
	r := &HealthRenderer{out: &buf, start: time.Now(), isTTY: false}
	r.Finish()
	if buf.Len() != 0 {
		t.Fatalf("expected no output from Finish on non-TTY, got %q", buf.String())
	}
}
