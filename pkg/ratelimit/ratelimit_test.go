package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestSlidingWindowAllow(t *testing.T) {
	now := time.Unix(0, 0)
	sw := NewSlidingWindow(2, time.Second)
	sw.now = func() time.Time { return now }

	if !sw.Allow() || !sw.Allow() {
		t.Fatalf("first two requests should pass")
	}
	if sw.Allow() {
		t.Fatalf("third request inside window should be rejected")
	}
	if got := sw.Remaining(); got != 0 {
		t.Fatalf("Remaining = %d, want 0", got)
	}

	now = now.Add(1001 * time.Millisecond)
	if !sw.Allow() {
		t.Fatalf("request after window should pass")
	}
	if got := sw.Remaining(); got != 1 {
		t.Fatalf("Remaining = %d, want 1", got)
	}
}

func TestSlidingWindowWaitHonoursContext(t *testing.T) {
	sw := NewSlidingWindow(1, time.Hour)
	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sw.Wait(ctx); err == nil {
		t.Fatalf("expected ctx error while window is full")
	}
}

func TestManagerFallback(t *testing.T) {
	m := NewVenueManager()
	if m.Limiter(VenueBookGet) == m.Limiter("unknown") {
		t.Fatalf("configured endpoint should not use fallback")
	}
	custom := NewSlidingWindow(1, time.Second)
	m.Set("custom", custom)
	if m.Limiter("custom") != RateLimiter(custom) {
		t.Fatalf("Set did not register limiter")
	}
}
