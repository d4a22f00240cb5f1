package ratelimit

import (
	"testing"
	"time"
)

func TestCheckAdmitsUpToLimit(t *testing.T) {
	l := New()
	defer l.Stop()

	for i := 0; i < 2; i++ {
		r := l.Check("key1", 2, time.Minute)
		if !r.Allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
	}

	r := l.Check("key1", 2, time.Minute)
	if r.Allowed {
		t.Fatalf("expected third request to be denied")
	}
	if r.Remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", r.Remaining)
	}
}

func TestCheckResetsAfterWindow(t *testing.T) {
	l := New()
	defer l.Stop()

	r := l.Check("key2", 1, 10*time.Millisecond)
	if !r.Allowed {
		t.Fatalf("expected first request to be allowed")
	}
	if l.Check("key2", 1, 10*time.Millisecond).Allowed {
		t.Fatalf("expected second immediate request to be denied")
	}

	time.Sleep(20 * time.Millisecond)
	if !l.Check("key2", 1, 10*time.Millisecond).Allowed {
		t.Fatalf("expected request to be allowed after window reset")
	}
}

func TestUnlimitedWhenLimitZero(t *testing.T) {
	l := New()
	defer l.Stop()
	for i := 0; i < 100; i++ {
		if !l.Check("unlimited", 0, time.Minute).Allowed {
			t.Fatalf("expected unlimited key to always be allowed")
		}
	}
}
