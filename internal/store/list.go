package store

import (
	"time"
)

// List is a sequence of byte strings backing LPUSH/RPUSH and friends,
// held in a plain slice. Tail push is amortized O(1) and pop at either
// end is O(1); a head push copies the whole slice, so it is O(n) per
// pushed value. LRANGE is O(n).
type List struct {
	items [][]byte
}

func (l *List) Len() int { return len(l.items) }

// push appends to the head/tail of the list at key, creating it if
// absent, and deliver newly available elements to any blocked BLPOP
// waiters before returning. Returns the resulting list length.
func (ks *Keyspace) push(key string, left bool, vals [][]byte) (int, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		e = &Entry{Kind: KindList, List: &List{}}
		sh.entries[key] = e
	} else if e.Kind != KindList {
		return 0, ErrWrongType
	}

	for _, v := range vals {
		if left {
			e.List.items = append([][]byte{v}, e.List.items...)
		} else {
			e.List.items = append(e.List.items, v)
		}
		ks.deliverListWaiterLocked(sh, key, e)
	}
	return len(e.List.items), nil
}

func (ks *Keyspace) LPush(key string, vals ...[]byte) (int, error) { return ks.push(key, true, vals) }
func (ks *Keyspace) RPush(key string, vals ...[]byte) (int, error) { return ks.push(key, false, vals) }

// deliverListWaiterLocked pops the head of key's list and hands it to
// the oldest still-unclaimed waiter, discarding any waiter that another
// key (or its own timeout) has already claimed. Must run with sh.mu
// held and only when the list at key is non-empty.
func (ks *Keyspace) deliverListWaiterLocked(sh *shard, key string, e *Entry) {
	for len(sh.listWaiters[key]) > 0 && len(e.List.items) > 0 {
		w := sh.listWaiters[key][0]
		sh.listWaiters[key] = sh.listWaiters[key][1:]
		v := e.List.items[0]
		if w.tryDeliver(key, v) {
			e.List.items = e.List.items[1:]
			if ks.reg != nil {
				ks.reg.Disarm(w.ID)
			}
		}
		// else: waiter was already claimed elsewhere; drop it and try
		// the next waiter in the queue without consuming the value.
	}
	if len(sh.listWaiters[key]) == 0 {
		delete(sh.listWaiters, key)
	}
	if len(e.List.items) == 0 {
		delete(sh.entries, key)
	}
}

func (ks *Keyspace) pop(key string, left bool) ([]byte, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return nil, nil
	}
	if e.Kind != KindList {
		return nil, ErrWrongType
	}
	var v []byte
	if left {
		v = e.List.items[0]
		e.List.items = e.List.items[1:]
	} else {
		v = e.List.items[len(e.List.items)-1]
		e.List.items = e.List.items[:len(e.List.items)-1]
	}
	if len(e.List.items) == 0 {
		delete(sh.entries, key)
	}
	return v, nil
}

func (ks *Keyspace) LPop(key string) ([]byte, error) { return ks.pop(key, true) }
func (ks *Keyspace) RPop(key string) ([]byte, error) { return ks.pop(key, false) }

// LRange returns a copy of items in [start, stop] (inclusive, negative
// indices count from the end), Redis-style clamped to bounds.
func (ks *Keyspace) LRange(key string, start, stop int) ([][]byte, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return nil, nil
	}
	if e.Kind != KindList {
		return nil, ErrWrongType
	}
	n := len(e.List.items)
	start = clampIndex(start, n)
	if stop < 0 {
		stop += n
	}
	if stop < 0 || start > stop || start >= n {
		return nil, nil
	}
	if stop >= n {
		stop = n - 1
	}
	out := make([][]byte, stop-start+1)
	copy(out, e.List.items[start:stop+1])
	return out, nil
}

func (ks *Keyspace) LLen(key string) (int, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return 0, nil
	}
	if e.Kind != KindList {
		return 0, ErrWrongType
	}
	return len(e.List.items), nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
	}
	return i
}

// BLPopResult is what a satisfied BLPOP/BRPOP call returns.
type BLPopResult struct {
	Key   string
	Value []byte
}

// RegisterListWaiter adds a waiter for every key in keys to that key's
// shard, in the order given, taking one shard lock at a time (never two
// at once). It also performs an immediate non-blocking check: if any key
// already has a value available, it is popped and delivered on the spot
// and no registration is left behind for that or subsequent keys.
// Returns (result, nil) if satisfied immediately, or (nil, w) with a
// live waiter the caller must wait on via w.Ch and eventually clean up
// with CancelListWaiter.
func (ks *Keyspace) RegisterListWaiter(keys []string, left bool) (*BLPopResult, *ListWaiter) {
	id := ks.reg.NewWaiterID()
	w := newListWaiter(id)
	for _, key := range keys {
		sh := ks.shardFor(key)
		sh.mu.Lock()
		e, ok := lookupLocked(sh, key, time.Now())
		if ok && e.Kind == KindList && len(e.List.items) > 0 && w.claimed.CompareAndSwap(false, true) {
			var v []byte
			if left {
				v = e.List.items[0]
				e.List.items = e.List.items[1:]
			} else {
				v = e.List.items[len(e.List.items)-1]
				e.List.items = e.List.items[:len(e.List.items)-1]
			}
			if len(e.List.items) == 0 {
				delete(sh.entries, key)
			}
			sh.mu.Unlock()
			return &BLPopResult{Key: key, Value: v}, nil
		}
		if !w.claimed.Load() {
			sh.listWaiters[key] = append(sh.listWaiters[key], w)
		}
		sh.mu.Unlock()
	}
	return nil, w
}

// CancelListWaiter removes w's registration from every key's queue after
// a timeout or connection close. Lazy removal elsewhere means this is an
// optimization, not a correctness requirement, but it keeps long-lived
// keyspaces from accumulating stale queue entries for connections that
// blocked and then disconnected without ever being woken.
func (ks *Keyspace) CancelListWaiter(keys []string, w *ListWaiter) {
	for _, key := range keys {
		sh := ks.shardFor(key)
		sh.mu.Lock()
		q := sh.listWaiters[key]
		for i, other := range q {
			if other == w {
				sh.listWaiters[key] = append(q[:i], q[i+1:]...)
				break
			}
		}
		if len(sh.listWaiters[key]) == 0 {
			delete(sh.listWaiters, key)
		}
		sh.mu.Unlock()
	}
}
