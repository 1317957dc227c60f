package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// InMemoryRunLock implements RunLock inside one process.
// It is used when no Redis is configured and in tests.
type InMemoryRunLock struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

// NewInMemoryRunLock creates an empty lock table
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{
		leases: make(map[string]lease),
		now:    time.Now,
	}
}

// Acquire takes key for ttl unless an unexpired lease exists
func (l *InMemoryRunLock) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if current, ok := l.leases[key]; ok && now.Before(current.expiresAt) {
		return "", catalogsync.ErrSyncInProgress
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

// Release frees key if token still holds it
func (l *InMemoryRunLock) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, ok := l.leases[key]; ok && current.token == token {
		delete(l.leases, key)
	}
	return nil
}

var _ catalogsync.RunLock = (*InMemoryRunLock)(nil)
