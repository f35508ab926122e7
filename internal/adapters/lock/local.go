package lock

import (
	"context"
	"sync"
	"time"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
)

// LocalLocker implements ports.JobLocker inside one process. It is used when
// no Redis address is configured.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	now   func() time.Time
	token uint64
}

type localEntry struct {
	expiresAt time.Time
	token     uint64
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

// Obtain takes key for ttl; an unexpired holder yields domain.ErrJobLocked
func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (ports.JobLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expiresAt) {
		return nil, domain.ErrJobLocked.WithDetail("lock", key)
	}
	l.token++
	l.held[key] = localEntry{expiresAt: now.Add(ttl), token: l.token}
	return &localLock{owner: l, key: key, token: l.token}, nil
}

type localLock struct {
	owner *LocalLocker
	key   string
	token uint64
}

// Release frees the key unless it expired and was taken by another run
func (l *localLock) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()

	if e, ok := l.owner.held[l.key]; ok && e.token == l.token {
		delete(l.owner.held, l.key)
	}
	return nil
}

var (
	_ ports.JobLocker = (*LocalLocker)(nil)
	_ ports.JobLocker = (*RedisLocker)(nil)
)
