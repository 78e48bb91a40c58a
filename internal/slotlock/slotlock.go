// Package slotlock provides per-slot mutual exclusion for reservation attempts.
//
// A Locker only narrows contention. The reservation table's unique index is
// what guarantees a slot is held at most once across processes.
package slotlock

import (
	"context"
	"sync"
	"time"
)

// DefaultStaleAfter is how long an unreleased lock survives before another
// owner may take it over.
const DefaultStaleAfter = 10 * time.Second

// Locker is implemented by Memory (single process) and redis.Locker (shared).
type Locker interface {
	// Acquire returns true when the lock is free or already held by ownerID.
	Acquire(ctx context.Context, slotID, ownerID string) (bool, error)
	// Release drops the lock only when ownerID holds it.
	Release(ctx context.Context, slotID, ownerID string) error
}

type entry struct {
	owner    string
	acquired time.Time
}

// Memory is a process-wide lock table guarded by a mutex.
type Memory struct {
	mu         sync.Mutex
	locks      map[string]entry
	staleAfter time.Duration
	now        func() time.Time
}

func NewMemory(staleAfter time.Duration) *Memory {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Memory{
		locks:      make(map[string]entry),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (m *Memory) Acquire(_ context.Context, slotID, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if cur, ok := m.locks[slotID]; ok {
		if cur.owner == ownerID {
			m.locks[slotID] = entry{owner: ownerID, acquired: now}
			return true, nil
		}
		if now.Sub(cur.acquired) < m.staleAfter {
			return false, nil
		}
	}

	m.locks[slotID] = entry{owner: ownerID, acquired: now}
	return true, nil
}

func (m *Memory) Release(_ context.Context, slotID, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.locks[slotID]; ok && cur.owner == ownerID {
		delete(m.locks, slotID)
	}
	return nil
}

// Holder reports the current owner of slotID, if any.
func (m *Memory) Holder(slotID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.locks[slotID]
	return cur.owner, ok
}

// Reset clears every lock.
func (m *Memory) Reset() {
	m.mu.Lock()
	m.locks = make(map[string]entry)
	m.mu.Unlock()
}
