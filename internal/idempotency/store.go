// Package idempotency caches responses to replayed donation submissions so
// a retried request cannot prompt the wallet twice.
package idempotency

import (
	"context"
	"sync"
	"time"
)

// Replay is the stored outcome of a prior submission request.
type Replay struct {
	Status   int       `json:"status"`
	Body     []byte    `json:"body"`
	StoredAt time.Time `json:"storedAt"`
	// ExpiresAt bounds how long a key shields against re-submission.
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store abstracts replay persistence.
type Store interface {
	// Lookup returns the cached outcome for key, or nil when the key is
	// unknown or expired.
	Lookup(ctx context.Context, key string) (*Replay, error)
	Remember(ctx context.Context, key string, replay Replay) error
}

// MemoryStore keeps replays in process. It is the default for local runs
// and tests; restarts forget everything.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Replay
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Replay)}
}

func (m *MemoryStore) Lookup(_ context.Context, key string) (*Replay, error) {
	m.mu.RLock()
	rec, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if time.Now().After(rec.ExpiresAt) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Remember(_ context.Context, key string, replay Replay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = replay
	return nil
}
