// Package store implements the typed, sharded, in-memory keyspace: the
// single string/list/stream/sorted-set map every command operates on.
// Concurrency safety comes entirely from per-shard locking (see shard.go)
// rather than one global mutex, so unrelated keys never contend.
package store

import (
	"errors"
	"hash/fnv"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/respd/internal/blocking"
)

// ErrWrongType is returned when a command addresses a key holding a
// value of a different kind, mirroring WRONGTYPE.
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

// Keyspace is the top-level handle a connection's command interpreter
// holds. One Keyspace backs one logical database index; a server that
// supports SELECT keeps one Keyspace per index.
type Keyspace struct {
	shards []*shard
	mask   uint32
	reg    *blocking.Registry
	log    *zap.Logger
}

// NewKeyspace builds a keyspace with shardCount shards, rounded up to
// the next power of two so key→shard hashing can use a bitmask instead
// of a modulo. reg is shared across every Keyspace in the process: it is
// the deadline half of BLPOP/XREAD BLOCK, independent of which database
// index a blocked key lives in.
func NewKeyspace(shardCount int, reg *blocking.Registry, log *zap.Logger) *Keyspace {
	if shardCount < 1 {
		shardCount = 1
	}
	n := 1
	for n < shardCount {
		n <<= 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = newShard()
	}
	return &Keyspace{shards: shards, mask: uint32(n - 1), reg: reg, log: log.Named("store")}
}

func (ks *Keyspace) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return ks.shards[h.Sum32()&ks.mask]
}

// lookupLocked returns the live entry for key, evicting it first if its
// expiry has passed. Must be called with the owning shard's lock held.
func lookupLocked(sh *shard, key string, now time.Time) (*Entry, bool) {
	e, ok := sh.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		delete(sh.entries, key)
		delete(sh.listWaiters, key)
		delete(sh.streamWaiters, key)
		return nil, false
	}
	return e, true
}

// --- generic string/keyspace operations -----------------------------

func (ks *Keyspace) Get(key string) ([]byte, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return nil, nil
	}
	if e.Kind != KindString {
		return nil, ErrWrongType
	}
	return e.Str, nil
}

func (ks *Keyspace) Set(key string, val []byte) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.entries[key] = newStringEntry(val)
}

func (ks *Keyspace) SetWithExpiry(key string, val []byte, ttl time.Duration) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e := newStringEntry(val)
	e.ExpireAt = time.Now().Add(ttl)
	sh.entries[key] = e
}

// Expire sets an existing key's TTL without touching its value. Returns
// false if the key does not exist.
func (ks *Keyspace) Expire(key string, ttl time.Duration) bool {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return false
	}
	e.ExpireAt = time.Now().Add(ttl)
	return true
}

// Persist removes a key's TTL. Returns false if the key did not exist or
// had no TTL set.
func (ks *Keyspace) Persist(key string) bool {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok || e.ExpireAt.IsZero() {
		return false
	}
	e.ExpireAt = time.Time{}
	return true
}

// TTL reports the remaining time to live. ok is false if the key does
// not exist; a zero duration with ok true means the key exists with no
// expiry.
func (ks *Keyspace) TTL(key string) (ttl time.Duration, hasExpiry bool, ok bool) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, found := lookupLocked(sh, key, time.Now())
	if !found {
		return 0, false, false
	}
	if e.ExpireAt.IsZero() {
		return 0, false, true
	}
	return time.Until(e.ExpireAt), true, true
}

func (ks *Keyspace) Delete(keys ...string) int {
	n := 0
	now := time.Now()
	for _, key := range keys {
		sh := ks.shardFor(key)
		sh.mu.Lock()
		if _, ok := lookupLocked(sh, key, now); ok {
			delete(sh.entries, key)
			n++
		}
		sh.mu.Unlock()
	}
	return n
}

func (ks *Keyspace) Exists(keys ...string) int {
	n := 0
	now := time.Now()
	for _, key := range keys {
		sh := ks.shardFor(key)
		sh.mu.Lock()
		if _, ok := lookupLocked(sh, key, now); ok {
			n++
		}
		sh.mu.Unlock()
	}
	return n
}

func (ks *Keyspace) TypeOf(key string) (Kind, bool) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return 0, false
	}
	return e.Kind, true
}

// KeysMatching scans every shard for keys matching a glob pattern.
// Shards are locked one at a time, never more than one simultaneously,
// so a long KEYS scan never blocks more than a single shard's other
// traffic at once; the tradeoff is that the result is not a single
// atomic snapshot of the whole keyspace, matching the real command's own
// documented lack of atomicity guarantees across a large keyspace.
func (ks *Keyspace) KeysMatching(pattern string) []string {
	var out []string
	now := time.Now()
	for _, sh := range ks.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.expired(now) {
				continue
			}
			if globMatch(pattern, key) {
				out = append(out, key)
			}
		}
		sh.mu.Unlock()
	}
	sort.Strings(out)
	return out
}

// Incr applies delta to the integer value stored at key, creating it
// with base 0 if absent. Returns an error if the existing value is not a
// base-10 integer or belongs to a non-string key.
func (ks *Keyspace) Incr(key string, delta int64) (int64, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		e = newStringEntry(nil)
		sh.entries[key] = e
	}
	if e.Kind != KindString {
		return 0, ErrWrongType
	}
	cur, err := parseInt64(e.Str)
	if err != nil {
		return 0, err
	}
	next := cur + delta
	e.Str = formatInt64(next)
	return next, nil
}
