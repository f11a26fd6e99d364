package server

import "sync"

// connLimiter is a counting semaphore over accepted connections, adapted
// from the teacher's process-restart slot pool: the same cond-based
// acquire/release discipline with explicit per-owner bookkeeping,
// generalized from "process IDs holding a restart slot" to "connection
// IDs holding an accept slot".
type connLimiter struct {
	mu         sync.Mutex
	cond       *sync.Cond
	maxCap     int64
	usage      int64
	acquiredBy map[int64]struct{}
}

func newConnLimiter(maxConns int64) *connLimiter {
	l := &connLimiter{maxCap: maxConns, acquiredBy: make(map[int64]struct{})}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// acquire blocks until a slot is free, then reserves it for connID.
func (l *connLimiter) acquire(connID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.usage >= l.maxCap {
		l.cond.Wait()
	}
	l.usage++
	l.acquiredBy[connID] = struct{}{}
}

// tryAcquire reserves a slot for connID without blocking the caller,
// reporting whether one was available.
func (l *connLimiter) tryAcquire(connID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.usage >= l.maxCap {
		return false
	}
	l.usage++
	l.acquiredBy[connID] = struct{}{}
	return true
}

// release frees connID's slot and wakes one blocked acquirer, if any.
// A no-op if connID does not currently hold a slot (double-release from
// an already-torn-down connection).
func (l *connLimiter) release(connID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.acquiredBy[connID]; !ok {
		return
	}
	delete(l.acquiredBy, connID)
	l.usage--
	l.cond.Signal()
}

// updateLimit changes capacity at runtime (e.g. via admin reconfigure)
// and wakes every blocked acquirer so they can re-check against the new
// ceiling.
func (l *connLimiter) updateLimit(maxConns int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxCap = maxConns
	l.cond.Broadcast()
}

func (l *connLimiter) capacity() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxCap
}

func (l *connLimiter) current() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage
}

func (l *connLimiter) listAcquired() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]int64, 0, len(l.acquiredBy))
	for id := range l.acquiredBy {
		ids = append(ids, id)
	}
	return ids
}
