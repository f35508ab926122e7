package resilience

import (
	"context"
	"testing"
	"time"
)

func TestDefaultTimeoutConfig(t *testing.T) {
	config := DefaultTimeoutConfig()

	if config.Job <= config.HTTPHandler {
		t.Errorf("Job (%v) must be > HTTPHandler (%v)", config.Job, config.HTTPHandler)
	}
	if config.HTTPHandler <= config.Transaction {
		t.Errorf("HTTPHandler (%v) must be > Transaction (%v)", config.HTTPHandler, config.Transaction)
	}
	// the slowest query class on the pool is 30s
	if config.Transaction < 30*time.Second {
		t.Errorf("Transaction (%v) must cover a report query", config.Transaction)
	}
}

func TestTestTimeoutConfig(t *testing.T) {
	config := TestTimeoutConfig()

	if config.HTTPHandler > 10*time.Second {
		t.Errorf("test HTTPHandler timeout too long: %v", config.HTTPHandler)
	}
	if config.Job <= config.Transaction {
		t.Errorf("Job (%v) must be > Transaction (%v)", config.Job, config.Transaction)
	}
}

func TestContextCreators(t *testing.T) {
	config := TestTimeoutConfig()

	tests := []struct {
		name    string
		create  func(context.Context) (context.Context, context.CancelFunc)
		timeout time.Duration
	}{
		{"handler", config.HandlerContext, config.HTTPHandler},
		{"job", config.JobContext, config.Job},
		{"transaction", config.TransactionContext, config.Transaction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := time.Now()
			ctx, cancel := tt.create(context.Background())
			defer cancel()

			deadline, ok := ctx.Deadline()
			if !ok {
				t.Fatal("context has no deadline")
			}
			got := deadline.Sub(start)
			if got < tt.timeout-100*time.Millisecond || got > tt.timeout+100*time.Millisecond {
				t.Errorf("deadline in %v, want about %v", got, tt.timeout)
			}
		})
	}
}

func TestContextCancellationPropagation(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := TestTimeoutConfig().JobContext(parent)
	defer cancel()

	cancelParent()

	select {
	case <-ctx.Done():
		if ctx.Err() != context.Canceled {
			t.Errorf("ctx.Err() = %v, want context.Canceled", ctx.Err())
		}
	case <-time.After(time.Second):
		t.Error("child context not cancelled with its parent")
	}
}
