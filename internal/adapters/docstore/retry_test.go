package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/okian/tagtrail/internal/domain/apperr"
)

func TestJitter(t *testing.T) {
	for _, d := range []time.Duration{time.Nanosecond, 2, 10 * time.Millisecond, maxBackoff} {
		seen := map[time.Duration]struct{}{}
		for range 200 {
			got := jitter(d)
			if got < d/2 || got > d {
				t.Fatalf("jitter(%v) = %v, want within [%v, %v]", d, got, d/2, d)
			}
			seen[got] = struct{}{}
		}
		if d >= time.Millisecond && len(seen) < 2 {
			t.Errorf("jitter(%v) never varied", d)
		}
	}
}

func TestRetryPolicy_BacksOffUntilSuccess(t *testing.T) {
	p := retryPolicy{attempts: 5, base: time.Millisecond, backend: "memory"}
	calls := 0
	start := time.Now()
	err := p.run(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	// Two waits of at least base/2 and 2*base/2.
	if elapsed := time.Since(start); elapsed < 1500*time.Microsecond {
		t.Errorf("retries did not back off, elapsed %v", elapsed)
	}
}

func TestRetryPolicy_CancelledWhileWaiting(t *testing.T) {
	p := retryPolicy{attempts: 5, base: time.Hour, backend: "memory"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.run(ctx, "test", func() error { return ErrConflict })
	if !apperr.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
