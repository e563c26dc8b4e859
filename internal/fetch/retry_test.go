package fetch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)

	if p.ShouldRetry(nil, 1) {
		t.Fatal("nil error must not retry")
	}
	if !p.ShouldRetry(errors.New("boom"), 1) {
		t.Fatal("transient error below the attempt cap should retry")
	}
	if !p.ShouldRetry(errors.New("boom"), 2) {
		t.Fatal("second attempt should still retry")
	}
	if p.ShouldRetry(errors.New("boom"), 3) {
		t.Fatal("attempt cap reached, must not retry")
	}
	if p.ShouldRetry(context.Canceled, 1) {
		t.Fatal("canceled context must not retry")
	}
	if p.ShouldRetry(fmtWrap(context.DeadlineExceeded), 1) {
		t.Fatal("deadline exceeded must not retry, even wrapped")
	}
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("fetch failed"), err)
}

func TestBackoffBounded(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	max := 400 * time.Millisecond
	p := NewRetryPolicy(5, base, max)

	for attempt := 0; attempt < 10; attempt++ {
		d := p.Backoff(attempt)
		if d < 0 {
			t.Fatalf("attempt %d: negative backoff %v", attempt, d)
		}
		if d > max {
			t.Fatalf("attempt %d: backoff %v exceeds cap %v", attempt, d, max)
		}
	}
}

func TestBackoffGrows(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 100*time.Millisecond, time.Minute)

	// Jitter keeps exact values unpredictable, but the floor (half the
	// exponential delay) still rises with each attempt.
	if d := p.Backoff(0); d < 50*time.Millisecond {
		t.Fatalf("attempt 0 backoff %v below floor", d)
	}
	if d := p.Backoff(3); d < 400*time.Millisecond {
		t.Fatalf("attempt 3 backoff %v below floor", d)
	}
}

func TestNewRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(0, 0, 0)
	if p.maxAttempts != 1 {
		t.Fatalf("expected floor of one attempt, got %d", p.maxAttempts)
	}
	if p.baseDelay != 250*time.Millisecond {
		t.Fatalf("unexpected default base delay %v", p.baseDelay)
	}
	if p.maxDelay != 5*time.Second {
		t.Fatalf("unexpected default max delay %v", p.maxDelay)
	}
}
