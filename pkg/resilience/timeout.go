package resilience

import (
	"context"
	"time"
)

// TimeoutConfig defines the timeout hierarchy, outermost first:
//
//	HTTP Handler (60s) for single-record operator calls
//	Job (15m) for batch backfills and reconcile-all
//	Transaction (30s) for one money transaction including retries
//	Database Query (2s/5s/30s, set on the postgres pool)
//
// Each layer must finish before its parent times out.
type TimeoutConfig struct {
	HTTPHandler time.Duration
	Job         time.Duration
	Transaction time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 60 * time.Second,
		Job:         15 * time.Minute,
		Transaction: 30 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler: 5 * time.Second,
		Job:         30 * time.Second,
		Transaction: 2 * time.Second,
	}
}

// HandlerContext creates a context with timeout for HTTP handlers
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// JobContext creates a context with timeout for batch jobs
func (tc *TimeoutConfig) JobContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Job)
}

// TransactionContext creates a context bounding one transaction and its retries
func (tc *TimeoutConfig) TransactionContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Transaction)
}
