// Package organize runs the header, block and transaction organizers
// (spec.md §4.I): each validates incoming work against the context
// populate/ resolves and validate/ judges, then commits it to the store
// (or the transaction pool) and notifies its subscribers, all behind a
// prioritized reader/writer lock shared with read-only query paths.
package organize

import "sync"

// PrioritizedMutex is a writer-preferring reader/writer lock: once a
// writer starts waiting, subsequently arriving readers block behind it
// instead of continuing to starve it the way a plain sync.RWMutex can
// under a steady stream of readers. No dependency in the pack models a
// priority-biased lock (sync.RWMutex is reader-preferring with no
// starvation guarantee either way), so this is hand-rolled over
// sync.Cond, grounded on
// original_source/include/bitcoin/blockchain/validation/validate_block.hpp's
// description of the organizer's shared_mutex as giving the writer
// (a confirming organize()) priority over concurrent read-only queries.
type PrioritizedMutex struct {
	mu             sync.Mutex
	cond           *sync.Cond
	readers        int
	writerActive   bool
	writersWaiting int
}

// NewPrioritizedMutex creates an unlocked prioritized mutex.
func NewPrioritizedMutex() *PrioritizedMutex {
	m := &PrioritizedMutex{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// RLock acquires the lock for reading. It blocks while a writer holds
// the lock or one is waiting to acquire it.
func (m *PrioritizedMutex) RLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.writerActive || m.writersWaiting > 0 {
		m.cond.Wait()
	}
	m.readers++
}

// RUnlock releases a read lock.
func (m *PrioritizedMutex) RUnlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readers--
	if m.readers == 0 {
		m.cond.Broadcast()
	}
}

// Lock acquires the lock for writing, registering itself as waiting
// first so it is released ahead of any reader that arrives afterward.
func (m *PrioritizedMutex) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writersWaiting++
	for m.writerActive || m.readers > 0 {
		m.cond.Wait()
	}
	m.writersWaiting--
	m.writerActive = true
}

// Unlock releases the write lock.
func (m *PrioritizedMutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writerActive = false
	m.cond.Broadcast()
}
