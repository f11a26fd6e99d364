// Package pubsub implements channel and pattern fan-out for
// PUBLISH/SUBSCRIBE/PSUBSCRIBE. Delivery is best-effort: a subscriber
// that cannot keep up with its bounded mailbox is dropped rather than
// allowed to apply backpressure to the publisher, matching the
// documented "slow consumers may miss messages" tradeoff in the
// component's design notes.
package pubsub

import (
	"sync"

	"go.uber.org/zap"

	"github.com/edirooss/respd/internal/store"
)

// Message is one published event handed to a subscriber's mailbox.
type Message struct {
	Channel string // the exact channel the message was published to
	Pattern string // the subscribed pattern that matched, "" for an exact-channel subscription
	Payload []byte
}

// mailboxSize bounds how many undelivered messages a subscriber can
// accumulate before Hub starts dropping it instead of blocking Publish.
const mailboxSize = 128

// Subscriber is a per-connection mailbox registered with the hub.
type Subscriber struct {
	ID    int64
	inbox chan Message

	closeOnce sync.Once
}

func (s *Subscriber) Inbox() <-chan Message { return s.inbox }

// Hub is the process-wide fan-out registry. One Hub serves every
// database index; pub/sub channels are not scoped per-database, which
// matches the real server's behavior.
type Hub struct {
	log *zap.Logger

	mu        sync.Mutex
	channels  map[string]map[int64]*Subscriber
	patterns  map[string]map[int64]*Subscriber
	nextID    int64
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:      log.Named("pubsub"),
		channels: make(map[string]map[int64]*Subscriber),
		patterns: make(map[string]map[int64]*Subscriber),
	}
}

// NewSubscriber allocates a mailbox not yet registered to anything; the
// caller subscribes it to specific channels/patterns with Subscribe/
// PSubscribe and must eventually call Unsubscribe/PUnsubscribe or
// RemoveAll on connection close.
func (h *Hub) NewSubscriber() *Subscriber {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.mu.Unlock()
	return &Subscriber{ID: id, inbox: make(chan Message, mailboxSize)}
}

func (h *Hub) Subscribe(sub *Subscriber, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[int64]*Subscriber)
		h.channels[channel] = set
	}
	set[sub.ID] = sub
}

func (h *Hub) Unsubscribe(sub *Subscriber, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.channels[channel]; ok {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) PSubscribe(sub *Subscriber, pattern string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.patterns[pattern]
	if !ok {
		set = make(map[int64]*Subscriber)
		h.patterns[pattern] = set
	}
	set[sub.ID] = sub
}

func (h *Hub) PUnsubscribe(sub *Subscriber, pattern string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.patterns[pattern]; ok {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.patterns, pattern)
		}
	}
}

// RemoveAll drops sub from every channel and pattern it is registered
// to. Called once, on connection teardown.
func (h *Hub) RemoveAll(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, set := range h.channels {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.channels, ch)
		}
	}
	for pat, set := range h.patterns {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(h.patterns, pat)
		}
	}
}

// Publish fans payload out to every exact-channel subscriber of channel
// and every pattern subscriber whose pattern matches it. Returns the
// number of subscribers the message was delivered to, matching PUBLISH's
// reply semantics; a subscriber whose inbox is full is dropped (see
// dropSlow) and not counted.
func (h *Hub) Publish(channel string, payload []byte) int {
	h.mu.Lock()
	var targets []Message
	recipients := make([]*Subscriber, 0, 8)
	for _, sub := range h.channels[channel] {
		recipients = append(recipients, sub)
		targets = append(targets, Message{Channel: channel, Payload: payload})
	}
	for pat, set := range h.patterns {
		if !globPatternMatch(pat, channel) {
			continue
		}
		for _, sub := range set {
			recipients = append(recipients, sub)
			targets = append(targets, Message{Channel: channel, Pattern: pat, Payload: payload})
		}
	}
	h.mu.Unlock()

	n := 0
	for i, sub := range recipients {
		select {
		case sub.inbox <- targets[i]:
			n++
		default:
			h.dropSlow(sub, channel)
		}
	}
	return n
}

// dropSlow permanently closes sub's subscription once its mailbox has
// backed up: it is unregistered from every channel and pattern and its
// inbox is closed, so the connection loop's read of Inbox() observes a
// closed channel and stops delivering, rather than silently missing
// just this one message while staying subscribed.
func (h *Hub) dropSlow(sub *Subscriber, channel string) {
	sub.closeOnce.Do(func() {
		h.RemoveAll(sub)
		close(sub.inbox)
		h.log.Warn("dropped slow subscriber, closed subscription", zap.Int64("subscriber", sub.ID), zap.String("channel", channel))
	})
}

// globPatternMatch reuses the same restricted glob syntax KEYS and
// PSUBSCRIBE share, rather than maintaining two copies of the matcher.
func globPatternMatch(pattern, s string) bool {
	return store.GlobMatch(pattern, s)
}
