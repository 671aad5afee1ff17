package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStoreClosed is returned by snapshot operations after Close.
var ErrStoreClosed = errors.New("snapshot store is closed")

// MemorySnapshots is an in-memory SnapshotStore. It is the default and
// suits a single-instance deployment; use RedisSnapshots when several
// frontend instances must share visitor state.
type MemorySnapshots struct {
	mu     sync.RWMutex
	byID   map[string]memorySnapshot
	ttl    time.Duration
	closed bool
	done   chan struct{}
}

type memorySnapshot struct {
	data      []byte
	expiresAt time.Time
}

// MemoryOption configures MemorySnapshots.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	ttl             time.Duration
	cleanupInterval time.Duration
}

// WithTTL sets how long a snapshot stays loadable. Default: 24h.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(c *memoryConfig) { c.ttl = ttl }
}

// WithCleanupInterval sets how often expired snapshots are dropped.
// Default: 1 minute.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) { c.cleanupInterval = d }
}

// NewMemorySnapshots creates an in-memory snapshot store.
func NewMemorySnapshots(opts ...MemoryOption) *MemorySnapshots {
	cfg := &memoryConfig{
		ttl:             24 * time.Hour,
		cleanupInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	m := &MemorySnapshots{
		byID: make(map[string]memorySnapshot),
		ttl:  cfg.ttl,
		done: make(chan struct{}),
	}
	go m.cleanupLoop(cfg.cleanupInterval)
	return m
}

// Save implements SnapshotStore.
func (m *MemorySnapshots) Save(ctx context.Context, sid string, snap Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	m.byID[sid] = memorySnapshot{
		data:      data,
		expiresAt: time.Now().Add(m.ttl),
	}
	return nil
}

// Load implements SnapshotStore.
func (m *MemorySnapshots) Load(ctx context.Context, sid string) (*Snapshot, error) {
	m.mu.RLock()
	entry, ok := m.byID[sid]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return nil, ErrStoreClosed
	}
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	return decodeSnapshot(entry.data)
}

// Delete implements SnapshotStore.
func (m *MemorySnapshots) Delete(ctx context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	delete(m.byID, sid)
	return nil
}

// Close implements SnapshotStore. Idempotent.
func (m *MemorySnapshots) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	m.byID = nil
	return nil
}

func (m *MemorySnapshots) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for sid, entry := range m.byID {
				if now.After(entry.expiresAt) {
					delete(m.byID, sid)
				}
			}
			m.mu.Unlock()
		}
	}
}
