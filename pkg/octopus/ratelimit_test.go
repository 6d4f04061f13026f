package octopus

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiter_PacesRequests(t *testing.T) {
	l := NewRateLimiter(20) // 50ms apart
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("three requests finished in %v, want at least 100ms of pacing", elapsed)
	}
}

func TestRateLimiter_HoldDelaysNextWait(t *testing.T) {
	l := NewRateLimiter(0)
	l.Hold(80 * time.Millisecond)

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 70*time.Millisecond {
		t.Errorf("Wait returned after %v, want the hold honored", elapsed)
	}
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	l := NewRateLimiter(0)
	l.Hold(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("expected context deadline error while held")
	}
}
