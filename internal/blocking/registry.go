package blocking

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Registry arms and disarms per-waiter deadlines for BLPOP and
// XREAD ... BLOCK. A waiter calls Arm with its computed absolute
// deadline and receives a channel that is closed exactly once, either
// when the deadline passes (Registry's reaper goroutine does it) or
// never, if the waiter calls Disarm first because it was woken by a
// push.
//
// One reaper goroutine services every armed deadline across every
// blocked connection in the process; this avoids the "one timer
// goroutine per waiter" pattern in favor of a single min-heap drained
// by a dedicated goroutine, matching the "race over N futures" design
// this server uses for its other select-on-multiple-sources points.
type Registry struct {
	log *zap.Logger

	mu      sync.Mutex
	q       *queue
	chans   map[int64]chan struct{}
	wakeC   chan struct{} // nudges the reaper when the soonest deadline changes
	closing chan struct{}
	nextID  atomic.Int64
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		log:     log.Named("blocking"),
		q:       newQueue(),
		chans:   make(map[int64]chan struct{}),
		wakeC:   make(chan struct{}, 1),
		closing: make(chan struct{}),
	}
	go r.reap()
	return r
}

// NewWaiterID allocates a process-unique id for a waiter's lifetime,
// used to key both this registry and the store package's per-key FIFO
// waiter lists so the two can refer to "the same waiter" without
// sharing a lock.
func (r *Registry) NewWaiterID() int64 { return r.nextID.Add(1) }

// Arm schedules id to fire at deadline. A zero deadline means "no
// timeout" (BLPOP ... 0): callers with a zero deadline should not call
// Arm at all and instead block solely on the store's wake channel.
// Returns a channel closed when the deadline elapses.
func (r *Registry) Arm(id int64, deadline time.Time) <-chan struct{} {
	ch := make(chan struct{})
	r.mu.Lock()
	r.chans[id] = ch
	r.q.push(id, deadline.UnixNano())
	r.mu.Unlock()
	r.nudge()
	return ch
}

// Disarm cancels a pending deadline, e.g. because the waiter was woken
// by a push before its timeout elapsed. Safe to call even if the
// deadline already fired (no-op).
func (r *Registry) Disarm(id int64) {
	r.mu.Lock()
	r.q.remove(id)
	delete(r.chans, id)
	r.mu.Unlock()
}

// Close stops the reaper goroutine. Any still-armed waiters' channels
// are left unclosed; callers must not rely on Close to wake them (the
// server is shutting down their connections anyway).
func (r *Registry) Close() { close(r.closing) }

func (r *Registry) nudge() {
	select {
	case r.wakeC <- struct{}{}:
	default:
	}
}

// reap is the sole goroutine that ever fires deadlines. It sleeps until
// the soonest armed deadline, or until nudged because a new, sooner
// deadline was armed.
func (r *Registry) reap() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		r.mu.Lock()
		_, whenNS, ok := r.q.peek()
		r.mu.Unlock()

		var wait time.Duration
		if ok {
			wait = time.Until(time.Unix(0, whenNS))
			if wait < 0 {
				wait = 0
			}
		} else {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-r.closing:
			return
		case <-r.wakeC:
			continue
		case <-timer.C:
			r.fireExpired()
		}
	}
}

func (r *Registry) fireExpired() {
	now := time.Now().UnixNano()
	var fired []chan struct{}

	r.mu.Lock()
	for {
		id, whenNS, ok := r.q.peek()
		if !ok || whenNS > now {
			break
		}
		r.q.popSoonest()
		if ch, ok := r.chans[id]; ok {
			fired = append(fired, ch)
			delete(r.chans, id)
		}
	}
	r.mu.Unlock()

	for _, ch := range fired {
		close(ch)
	}
}
