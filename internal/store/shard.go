package store

import "sync"

// shard is one independent critical section of the keyspace: a mutex
// guarding a slice of the key hash space. Different shards may be
// operated on concurrently; within one shard, everything is strictly
// serialized, which is what gives single-key operations (including
// INCR and the list push-then-wake sequence) their atomicity.
//
// listWaiters and streamWaiters hold the FIFO wait registrations for
// BLPOP/XREAD BLOCK on keys owned by this shard. They live here, not in
// a separate globally-locked structure, so that "register a waiter" and
// "push a value, then wake a waiter" are always observed atomically by
// any third party: both happen under shard.mu.
type shard struct {
	mu            sync.Mutex
	entries       map[string]*Entry
	listWaiters   map[string][]*ListWaiter
	streamWaiters map[string][]*StreamWaiter
}

func newShard() *shard {
	return &shard{
		entries:       make(map[string]*Entry),
		listWaiters:   make(map[string][]*ListWaiter),
		streamWaiters: make(map[string][]*StreamWaiter),
	}
}
