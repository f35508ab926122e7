package ports

import (
	"context"
	"time"
)

// JobLock is a held lock on a batch job
type JobLock interface {
	Release(ctx context.Context) error
}

// JobLocker prevents two runs of the same batch job from overlapping.
// Obtain returns domain.ErrJobLocked when another run holds the key.
type JobLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (JobLock, error)
}
