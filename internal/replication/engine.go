// Package replication implements the primary/replica write-propagation
// engine: an append-only offset log on the primary side, a handshake
// state machine on the replica side, and the WAIT/REPLCONF ACK
// machinery that lets a primary observe how far replicas have applied
// its stream.
package replication

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/edirooss/respd/internal/resp"
)

// ReplicaLink is the primary's view of one connected replica connection:
// an outbound byte stream to forward commands on, and the last offset
// the replica has acknowledged via REPLCONF ACK.
type ReplicaLink struct {
	ID     int64
	Send   chan []byte
	mu     sync.Mutex
	ackOff int64
}

func (r *ReplicaLink) SetAck(off int64) {
	r.mu.Lock()
	r.ackOff = off
	r.mu.Unlock()
}

func (r *ReplicaLink) Ack() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ackOff
}

// Engine is the process-wide replication coordinator. A standalone
// server still constructs one, simply with zero connected replicas; it
// is always safe to call RecordWrite.
type Engine struct {
	log *zap.Logger

	mu       sync.Mutex
	offset   int64
	replicas map[int64]*ReplicaLink
	nextID   int64
	replID   string

	// waitGroup coalesces concurrent WAIT calls that land on the same
	// target offset into a single round of REPLCONF GETACK probes,
	// matching the teacher's singleflight-backed refresh pattern.
	waitGroup singleflight.Group
}

func NewEngine(log *zap.Logger, replID string) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		log:      log.Named("replication"),
		replicas: make(map[int64]*ReplicaLink),
		replID:   replID,
	}
}

func (e *Engine) Offset() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offset
}

func (e *Engine) ReplID() string { return e.replID }

// AddReplica registers a newly PSYNC'd connection for forwarding.
func (e *Engine) AddReplica() *ReplicaLink {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	link := &ReplicaLink{ID: e.nextID, Send: make(chan []byte, 1024)}
	e.replicas[link.ID] = link
	return link
}

func (e *Engine) RemoveReplica(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if link, ok := e.replicas[id]; ok {
		close(link.Send)
		delete(e.replicas, id)
	}
}

func (e *Engine) ReplicaCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.replicas)
}

// RecordWrite encodes a write command exactly as it will be forwarded,
// advances the primary's offset by its encoded byte length, and forwards
// it to every connected replica. Only write commands advance this offset:
// the REPLCONF GETACK probes broadcastGetAck sends are not counted here,
// while a replica adds each probe to its own offset after answering it,
// so a caught-up replica can acknowledge more than Offset();
// WaitForAck's >= comparison accepts that.
// A standalone server (no connected replicas) still pays the small cost
// of maintaining the offset, since REPLICAOF can turn it into a primary
// at any time without restarting.
func (e *Engine) RecordWrite(dbIndex int, name string, args []resp.Value) {
	raw := encodeCommand(dbIndex, name, args)

	e.mu.Lock()
	e.offset += int64(len(raw))
	links := make([]*ReplicaLink, 0, len(e.replicas))
	for _, l := range e.replicas {
		links = append(links, l)
	}
	e.mu.Unlock()

	for _, link := range links {
		select {
		case link.Send <- raw:
		default:
			e.log.Warn("replica forwarding channel full, dropping replica", zap.Int64("replica", link.ID))
		}
	}
}

func encodeCommand(dbIndex int, name string, args []resp.Value) []byte {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		parts = append(parts, string(a.Bulk))
	}
	return resp.EncodeRawCommand(parts...)
}

// WaitForAck blocks until at least numReplicas have acknowledged an
// offset >= targetOffset, or timeout elapses, returning the count that
// had. It fans a REPLCONF GETACK probe out to every replica concurrently
// with errgroup, then polls acknowledgements; concurrent WAIT calls
// racing for the same targetOffset share one probe round via
// singleflight so a burst of WAITs from many clients doesn't re-request
// an ACK from every replica once per caller.
func (e *Engine) WaitForAck(numReplicas int, targetOffset int64, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	key := probeKey(targetOffset)

	for {
		if n := e.countAcked(targetOffset); n >= numReplicas {
			return n
		}
		if timeout > 0 && time.Now().After(deadline) {
			return e.countAcked(targetOffset)
		}
		_, _, _ = e.waitGroup.Do(key, func() (any, error) {
			e.broadcastGetAck()
			return nil, nil
		})
		time.Sleep(20 * time.Millisecond)
		if timeout == 0 && numReplicas == 0 {
			return e.countAcked(targetOffset)
		}
	}
}

func probeKey(offset int64) string {
	return "getack:" + strconv.FormatInt(offset, 10)
}

func (e *Engine) countAcked(targetOffset int64) int {
	e.mu.Lock()
	links := make([]*ReplicaLink, 0, len(e.replicas))
	for _, l := range e.replicas {
		links = append(links, l)
	}
	e.mu.Unlock()

	n := 0
	for _, l := range links {
		if l.Ack() >= targetOffset {
			n++
		}
	}
	return n
}

func (e *Engine) broadcastGetAck() {
	e.mu.Lock()
	links := make([]*ReplicaLink, 0, len(e.replicas))
	for _, l := range e.replicas {
		links = append(links, l)
	}
	e.mu.Unlock()

	probe := resp.EncodeRawCommand("REPLCONF", "GETACK", "*")
	var g errgroup.Group
	for _, link := range links {
		link := link
		g.Go(func() error {
			select {
			case link.Send <- probe:
			default:
			}
			return nil
		})
	}
	_ = g.Wait()
}
