package pubsub

import "testing"

func TestPublishToExactSubscriber(t *testing.T) {
	h := NewHub(nil)
	sub := h.NewSubscriber()
	h.Subscribe(sub, "news")
	n := h.Publish("news", []byte("hello"))
	if n != 1 {
		t.Fatalf("got %d", n)
	}
	msg := <-sub.Inbox()
	if msg.Channel != "news" || string(msg.Payload) != "hello" {
		t.Fatalf("got %+v", msg)
	}
}

func TestPublishToPatternSubscriber(t *testing.T) {
	h := NewHub(nil)
	sub := h.NewSubscriber()
	h.PSubscribe(sub, "news.*")
	n := h.Publish("news.sports", []byte("goal"))
	if n != 1 {
		t.Fatalf("got %d", n)
	}
	msg := <-sub.Inbox()
	if msg.Pattern != "news.*" || msg.Channel != "news.sports" {
		t.Fatalf("got %+v", msg)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(nil)
	sub := h.NewSubscriber()
	h.Subscribe(sub, "news")
	h.Unsubscribe(sub, "news")
	if n := h.Publish("news", []byte("x")); n != 0 {
		t.Fatalf("expected 0 recipients, got %d", n)
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	h := NewHub(nil)
	sub := h.NewSubscriber()
	h.Subscribe(sub, "news")
	for i := 0; i < mailboxSize+10; i++ {
		h.Publish("news", []byte("x"))
	}
	// Once the mailbox backs up the subscription is closed outright, not
	// just thinned: no further recipients, and the inbox is drained-then-
	// closed so the connection's read loop sees ok=false and stops.
	if n := h.Publish("news", []byte("y")); n != 0 {
		t.Fatalf("expected 0 recipients after drop, got %d", n)
	}
	for range sub.inbox {
	}
	if _, ok := <-sub.inbox; ok {
		t.Fatal("expected inbox to be closed")
	}
}
