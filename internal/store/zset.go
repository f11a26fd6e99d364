package store

import (
	"sort"
	"time"
)

// zmember is one (member, score) pair.
type zmember struct {
	Member string
	Score  float64
}

// ZSet is a sorted-set keyed by member, ordered by (score, member). The
// corpus has no off-the-shelf ordered-map/skiplist library, so this is a
// deliberate standard-library fallback: a slice kept sorted by
// insertion, with binary search for O(log n) lookup by rank and O(n)
// insert/delete. That is an acceptable tradeoff for a server with no
// documented requirement for sorted sets beyond the tens-of-thousands
// of members, and it is exactly how GEOADD's members are also stored
// (as ordinary sorted-set entries whose score is a geohash).
type ZSet struct {
	sorted   []zmember        // invariant: sorted by (Score, Member)
	byMember map[string]float64
}

func newZSet() *ZSet {
	return &ZSet{byMember: make(map[string]float64)}
}

func (z *ZSet) search(score float64, member string) int {
	return sort.Search(len(z.sorted), func(i int) bool {
		if z.sorted[i].Score != score {
			return z.sorted[i].Score > score
		}
		return z.sorted[i].Member >= member
	})
}

// add inserts or updates member's score. Returns true if member is new.
func (z *ZSet) add(member string, score float64) bool {
	old, existed := z.byMember[member]
	if existed {
		if old == score {
			return false
		}
		i := z.search(old, member)
		z.sorted = append(z.sorted[:i], z.sorted[i+1:]...)
	}
	z.byMember[member] = score
	i := z.search(score, member)
	z.sorted = append(z.sorted, zmember{})
	copy(z.sorted[i+1:], z.sorted[i:])
	z.sorted[i] = zmember{Member: member, Score: score}
	return !existed
}

func (z *ZSet) remove(member string) bool {
	score, ok := z.byMember[member]
	if !ok {
		return false
	}
	delete(z.byMember, member)
	i := z.search(score, member)
	z.sorted = append(z.sorted[:i], z.sorted[i+1:]...)
	return true
}

func (z *ZSet) score(member string) (float64, bool) {
	s, ok := z.byMember[member]
	return s, ok
}

// rank returns member's 0-based position in ascending score order.
func (z *ZSet) rank(member string) (int, bool) {
	score, ok := z.byMember[member]
	if !ok {
		return 0, false
	}
	i := z.search(score, member)
	return i, true
}

func (z *ZSet) len() int { return len(z.sorted) }

func (z *ZSet) rangeByRank(start, stop int) []zmember {
	n := len(z.sorted)
	start = clampIndex(start, n)
	stop = clampIndex(stop, n)
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil
	}
	out := make([]zmember, stop-start+1)
	copy(out, z.sorted[start:stop+1])
	return out
}

func (z *ZSet) rangeByScore(min, max float64) []zmember {
	lo := sort.Search(len(z.sorted), func(i int) bool { return z.sorted[i].Score >= min })
	var out []zmember
	for i := lo; i < len(z.sorted); i++ {
		if z.sorted[i].Score > max {
			break
		}
		out = append(out, z.sorted[i])
	}
	return out
}

// --- Keyspace wrappers ------------------------------------------------

// ZAdd sets scores for the given members, creating the sorted set if
// absent. Returns the number of members newly added (not updated).
func (ks *Keyspace) ZAdd(key string, members []string, scores []float64) (int, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		e = &Entry{Kind: KindSortedSet, ZSet: newZSet()}
		sh.entries[key] = e
	} else if e.Kind != KindSortedSet {
		return 0, ErrWrongType
	}
	added := 0
	for i, m := range members {
		if e.ZSet.add(m, scores[i]) {
			added++
		}
	}
	return added, nil
}

func (ks *Keyspace) ZRem(key string, members ...string) (int, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return 0, nil
	}
	if e.Kind != KindSortedSet {
		return 0, ErrWrongType
	}
	n := 0
	for _, m := range members {
		if e.ZSet.remove(m) {
			n++
		}
	}
	if e.ZSet.len() == 0 {
		delete(sh.entries, key)
	}
	return n, nil
}

func (ks *Keyspace) ZScore(key, member string) (float64, bool, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return 0, false, nil
	}
	if e.Kind != KindSortedSet {
		return 0, false, ErrWrongType
	}
	s, ok := e.ZSet.score(member)
	return s, ok, nil
}

func (ks *Keyspace) ZRank(key, member string) (int, bool, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return 0, false, nil
	}
	if e.Kind != KindSortedSet {
		return 0, false, ErrWrongType
	}
	r, ok := e.ZSet.rank(member)
	return r, ok, nil
}

func (ks *Keyspace) ZCard(key string) (int, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return 0, nil
	}
	if e.Kind != KindSortedSet {
		return 0, ErrWrongType
	}
	return e.ZSet.len(), nil
}

func (ks *Keyspace) ZRange(key string, start, stop int) ([]string, []float64, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return nil, nil, nil
	}
	if e.Kind != KindSortedSet {
		return nil, nil, ErrWrongType
	}
	ms := e.ZSet.rangeByRank(start, stop)
	members := make([]string, len(ms))
	scores := make([]float64, len(ms))
	for i, m := range ms {
		members[i] = m.Member
		scores[i] = m.Score
	}
	return members, scores, nil
}

func (ks *Keyspace) ZRangeByScore(key string, min, max float64) ([]string, []float64, error) {
	sh := ks.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := lookupLocked(sh, key, time.Now())
	if !ok {
		return nil, nil, nil
	}
	if e.Kind != KindSortedSet {
		return nil, nil, ErrWrongType
	}
	ms := e.ZSet.rangeByScore(min, max)
	members := make([]string, len(ms))
	scores := make([]float64, len(ms))
	for i, m := range ms {
		members[i] = m.Member
		scores[i] = m.Score
	}
	return members, scores, nil
}
