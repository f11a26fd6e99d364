// Package blocking provides the shared deadline machinery behind BLPOP
// and XREAD BLOCK: a single min-heap of pending timeouts serviced by one
// reaper goroutine, rather than one timer goroutine per blocked
// connection. The per-key FIFO waiter lists that receive pushed values
// live in internal/store, guarded by the same shard lock that guards the
// key (see internal/store's shard type) — this package only answers "has this waiter's
// deadline passed yet".
package blocking

import "container/heap"

// event is a single pending deadline. index is maintained by container/heap
// for O(log n) arbitrary removal (Disarm before expiry).
type event struct {
	id    int64
	whenNS int64
	index int
}

// deadlineHeap is a min-heap ordered by whenNS, adapted directly from a
// process supervisor's restart-scheduling heap: same Push/Pop/Fix
// discipline, different payload.
type deadlineHeap []*event

func (h deadlineHeap) Len() int            { return len(h) }
func (h deadlineHeap) Less(i, j int) bool  { return h[i].whenNS < h[j].whenNS }
func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	ev := x.(*event)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	ev.index = -1
	*h = old[:n-1]
	return ev
}

// queue wraps deadlineHeap with an id→event index for O(log n) removal.
type queue struct {
	h       deadlineHeap
	byID    map[int64]*event
}

func newQueue() *queue {
	q := &queue{byID: make(map[int64]*event)}
	heap.Init(&q.h)
	return q
}

func (q *queue) push(id int64, whenNS int64) {
	if old, ok := q.byID[id]; ok {
		heap.Remove(&q.h, old.index)
		delete(q.byID, id)
	}
	ev := &event{id: id, whenNS: whenNS}
	q.byID[id] = ev
	heap.Push(&q.h, ev)
}

func (q *queue) remove(id int64) {
	ev, ok := q.byID[id]
	if !ok {
		return
	}
	heap.Remove(&q.h, ev.index)
	delete(q.byID, id)
}

// peek returns the soonest deadline without removing it.
func (q *queue) peek() (id int64, whenNS int64, ok bool) {
	if len(q.h) == 0 {
		return 0, 0, false
	}
	ev := q.h[0]
	return ev.id, ev.whenNS, true
}

func (q *queue) popSoonest() (id int64, ok bool) {
	if len(q.h) == 0 {
		return 0, false
	}
	ev := heap.Pop(&q.h).(*event)
	delete(q.byID, ev.id)
	return ev.id, true
}

func (q *queue) len() int { return len(q.h) }
