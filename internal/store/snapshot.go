package store

import "time"

// ForEachString visits every live (unexpired) string key, in shard order,
// for RDB snapshotting. Only string keys are visited: lists, streams, and
// sorted sets hold no RDB encoding in this server (see internal/rdb's
// package doc) and are intentionally dropped across a save/load cycle,
// matching a partial-persistence tradeoff documented there.
func (ks *Keyspace) ForEachString(fn func(key string, val []byte, expireAt time.Time)) {
	now := time.Now()
	for _, sh := range ks.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if e.expired(now) || e.Kind != KindString {
				continue
			}
			fn(key, e.Str, e.ExpireAt)
		}
		sh.mu.Unlock()
	}
}

// RestoreString installs a string key loaded from an RDB file, bypassing
// the ordinary Set path since the expiry here is an absolute instant read
// from disk rather than a fresh TTL computed from now.
func (ks *Keyspace) RestoreString(key string, val []byte, expireAt time.Time) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e := newStringEntry(val)
	e.ExpireAt = expireAt
	sh.entries[key] = e
}
