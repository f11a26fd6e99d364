// Package session holds per-connection state: which database index is
// selected, which ACL user authenticated the connection, any queued
// MULTI transaction, and the set of pub/sub channels/patterns it is
// subscribed to. One Session is constructed per accepted connection and
// lives exactly as long as it does.
package session

import (
	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/pubsub"
	"github.com/edirooss/respd/internal/replication"
)

// Session is owned by exactly one connection goroutine; nothing in this
// package is safe for concurrent use from multiple goroutines, matching
// the rest of the server's "a connection is a single fiber" model.
type Session struct {
	ID      int64
	Name    string // CLIENT SETNAME
	DBIndex int
	User    *acl.User

	Tx *Transaction // non-nil while inside MULTI...EXEC/DISCARD

	Sub             *pubsub.Subscriber
	SubscribedChans map[string]bool
	SubscribedPats  map[string]bool

	// IsReplica marks a connection that issued PSYNC and now receives
	// forwarded write commands. Dispatch does not consult it: the
	// connection's normal read/reply loop ends at PSYNC, and what the
	// replica sends back is still dispatched with no reply written.
	IsReplica   bool
	ReplicaLink *replication.ReplicaLink
}

func New(id int64) *Session {
	return &Session{
		ID:              id,
		SubscribedChans: make(map[string]bool),
		SubscribedPats:  make(map[string]bool),
	}
}

// InSubscribeMode reports whether the connection is restricted to
// pub/sub and a small allowlist of other commands, per RESP2 semantics.
func (s *Session) InSubscribeMode() bool {
	return len(s.SubscribedChans) > 0 || len(s.SubscribedPats) > 0
}

func (s *Session) SubscriptionCount() int {
	return len(s.SubscribedChans) + len(s.SubscribedPats)
}
