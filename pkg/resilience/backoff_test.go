package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSerializationBackoff(t *testing.T) {
	backoff := SerializationBackoff()
	backoff.Jitter = 0.0

	expected := []time.Duration{
		20 * time.Millisecond,
		40 * time.Millisecond,
		80 * time.Millisecond,
		160 * time.Millisecond,
		250 * time.Millisecond, // capped
		250 * time.Millisecond,
	}
	for attempt, want := range expected {
		if got := backoff.NextDelay(attempt); got != want {
			t.Errorf("NextDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestExponentialBackoff_WithJitter(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.1,
	}

	for i := 0; i < 100; i++ {
		delay := backoff.NextDelay(1)
		if delay < 180*time.Millisecond || delay > 220*time.Millisecond {
			t.Fatalf("NextDelay(1) = %v, want within 180ms..220ms", delay)
		}
	}
}

func TestExponentialBackoff_NegativeAttempt(t *testing.T) {
	backoff := SerializationBackoff()

	if delay := backoff.NextDelay(-1); delay != backoff.BaseDelay {
		t.Errorf("NextDelay(-1) = %v, want %v", delay, backoff.BaseDelay)
	}
}

func TestFixedBackoff(t *testing.T) {
	backoff := &FixedBackoff{Delay: time.Second}

	for attempt := 0; attempt < 10; attempt++ {
		if delay := backoff.NextDelay(attempt); delay != time.Second {
			t.Errorf("FixedBackoff.NextDelay(%d) = %v, want 1s", attempt, delay)
		}
	}
}

var errConflict = errors.New("conflict")

func isConflict(err error) bool { return errors.Is(err, errConflict) }

func TestRetry(t *testing.T) {
	noWait := &FixedBackoff{}
	errFatal := errors.New("fatal")

	tests := []struct {
		name      string
		failures  []error
		attempts  int
		wantErr   error
		wantCalls int
	}{
		{
			name:      "succeeds first time",
			attempts:  3,
			wantCalls: 1,
		},
		{
			name:      "retries conflicts until success",
			failures:  []error{errConflict, errConflict},
			attempts:  3,
			wantCalls: 3,
		},
		{
			name:      "gives up after last attempt",
			failures:  []error{errConflict, errConflict, errConflict, errConflict},
			attempts:  3,
			wantErr:   errConflict,
			wantCalls: 3,
		},
		{
			name:      "does not retry other errors",
			failures:  []error{errFatal},
			attempts:  3,
			wantErr:   errFatal,
			wantCalls: 1,
		},
		{
			name:      "zero attempts still calls once",
			failures:  []error{errConflict},
			attempts:  0,
			wantErr:   errConflict,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), tt.attempts, noWait, isConflict, func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Retry() error = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("Retry() calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetry_StopsWaitingWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, 5, &FixedBackoff{Delay: time.Hour}, isConflict, func() error {
		calls++
		return errConflict
	})
	if !errors.Is(err, errConflict) {
		t.Errorf("Retry() error = %v, want %v", err, errConflict)
	}
	if calls != 1 {
		t.Errorf("Retry() calls = %d, want 1", calls)
	}
}

func BenchmarkExponentialBackoff(b *testing.B) {
	backoff := SerializationBackoff()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = backoff.NextDelay(i % 10)
	}
}
