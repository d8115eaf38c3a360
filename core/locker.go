package core

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrNotObtained is returned when a lock is already held by someone else.
var ErrNotObtained = errors.New("lock not obtained")

type (
	// Lock is a held lock; Release frees it if still owned.
	Lock interface {
		Release(ctx context.Context) error
	}

	// Locker obtains named locks that expire after `ttl`.
	Locker interface {
		Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	}
)

// LocalLocker is an in-process Locker, for single-instance deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	seq   uint64
	clock Clock
}

type localEntry struct {
	token   uint64
	expires time.Time
}

type localLock struct {
	locker *LocalLocker
	key    string
	token  uint64
}

var _ Locker = (*LocalLocker)(nil)

func NewLocalLocker(clock Clock) *LocalLocker {
	if clock == nil {
		clock = SystemClock
	}
	return &LocalLocker{held: make(map[string]localEntry), clock: clock}
}

func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return nil, ErrNotObtained
	}
	l.seq++
	l.held[key] = localEntry{token: l.seq, expires: now.Add(ttl)}
	return &localLock{locker: l, key: key, token: l.seq}, nil
}

func (lk *localLock) Release(_ context.Context) error {
	lk.locker.mu.Lock()
	defer lk.locker.mu.Unlock()

	if e, ok := lk.locker.held[lk.key]; ok && e.token == lk.token {
		delete(lk.locker.held, lk.key)
	}
	return nil
}
