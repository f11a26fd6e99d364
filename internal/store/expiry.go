package store

import "time"

// SweepExpired actively evicts expired keys instead of waiting for a
// lazy lookup to find them. It samples a bounded number of keys per
// shard per call so one sweep never holds any single shard's lock for
// long, the same tradeoff KeysMatching makes. The caller (see
// cmd/respd's gocron-driven registerMaintenanceJobs) decides how often to
// call this; SweepExpired itself is just one pass.
func (ks *Keyspace) SweepExpired(sampleSize int) (evicted int) {
	now := time.Now()
	for _, sh := range ks.shards {
		sh.mu.Lock()
		n := 0
		for key, e := range sh.entries {
			if n >= sampleSize {
				break
			}
			n++
			if e.expired(now) {
				delete(sh.entries, key)
				delete(sh.listWaiters, key)
				delete(sh.streamWaiters, key)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted
}
