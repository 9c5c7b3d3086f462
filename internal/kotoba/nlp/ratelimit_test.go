package nlp

import (
	"testing"
	"time"
)

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	rl := NewRateLimiter(60) // one per second, burst 5
	now := time.Date(2026, 2, 24, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if !rl.allowAt("ava", now) {
			t.Fatalf("call %d within burst was refused", i+1)
		}
	}
	if rl.allowAt("ava", now) {
		t.Fatal("sixth immediate call should be refused")
	}
	if !rl.allowAt("bob", now) {
		t.Fatal("other identities have their own bucket")
	}
	if !rl.allowAt("ava", now.Add(1100*time.Millisecond)) {
		t.Fatal("token should refill after a second")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter(1)
	now := time.Now()
	if !rl.allowAt("ava", now) {
		t.Fatal("first call refused")
	}
	if rl.allowAt("ava", now) {
		t.Fatal("second call should be refused with burst 1")
	}
	rl.Reset()
	if !rl.allowAt("ava", now) {
		t.Fatal("Reset should restore the bucket")
	}
}
