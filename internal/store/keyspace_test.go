package store

import (
	"testing"
	"time"

	"github.com/edirooss/respd/internal/blocking"
)

func newTestKeyspace() *Keyspace {
	return NewKeyspace(4, blocking.NewRegistry(nil), nil)
}

func TestSetGetDelete(t *testing.T) {
	ks := newTestKeyspace()
	ks.Set("k", []byte("v"))
	got, err := ks.Get("k")
	if err != nil || string(got) != "v" {
		t.Fatalf("got %q err %v", got, err)
	}
	if n := ks.Delete("k"); n != 1 {
		t.Fatalf("delete: got %d", n)
	}
	if got, _ := ks.Get("k"); got != nil {
		t.Fatalf("expected nil after delete, got %q", got)
	}
}

func TestExpiry(t *testing.T) {
	ks := newTestKeyspace()
	ks.SetWithExpiry("k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if got, _ := ks.Get("k"); got != nil {
		t.Fatalf("expected expired key to read as missing, got %q", got)
	}
	if ks.Exists("k") != 0 {
		t.Fatalf("expected expired key to not exist")
	}
}

func TestIncr(t *testing.T) {
	ks := newTestKeyspace()
	n, err := ks.Incr("counter", 1)
	if err != nil || n != 1 {
		t.Fatalf("got %d err %v", n, err)
	}
	n, err = ks.Incr("counter", 5)
	if err != nil || n != 6 {
		t.Fatalf("got %d err %v", n, err)
	}
}

func TestWrongType(t *testing.T) {
	ks := newTestKeyspace()
	ks.Set("k", []byte("v"))
	if _, err := ks.LPush("k", []byte("x")); err != ErrWrongType {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}

func TestListPushPop(t *testing.T) {
	ks := newTestKeyspace()
	if _, err := ks.RPush("list", []byte("a"), []byte("b"), []byte("c")); err != nil {
		t.Fatal(err)
	}
	items, err := ks.LRange("list", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	if len(items) != len(want) {
		t.Fatalf("got %v", items)
	}
	for i, w := range want {
		if string(items[i]) != w {
			t.Fatalf("index %d: got %q want %q", i, items[i], w)
		}
	}
	v, err := ks.LPop("list")
	if err != nil || string(v) != "a" {
		t.Fatalf("got %q err %v", v, err)
	}
}

func TestBLPopImmediate(t *testing.T) {
	ks := newTestKeyspace()
	if _, err := ks.RPush("list", []byte("a")); err != nil {
		t.Fatal(err)
	}
	res, w := ks.RegisterListWaiter([]string{"list"}, true)
	if w != nil {
		t.Fatalf("expected immediate result, got a live waiter")
	}
	if res.Key != "list" || string(res.Value) != "a" {
		t.Fatalf("got %+v", res)
	}
}

func TestBLPopBlocksThenWakes(t *testing.T) {
	ks := newTestKeyspace()
	res, w := ks.RegisterListWaiter([]string{"list"}, true)
	if res != nil {
		t.Fatalf("expected no immediate value, got %+v", res)
	}
	done := make(chan PoppedValue, 1)
	go func() {
		v := <-w.Ch
		done <- v
	}()
	if _, err := ks.RPush("list", []byte("late")); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-done:
		if string(v.Value) != "late" {
			t.Fatalf("got %q", v.Value)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wake")
	}
}

func TestZSetAddRange(t *testing.T) {
	ks := newTestKeyspace()
	if _, err := ks.ZAdd("z", []string{"a", "b", "c"}, []float64{3, 1, 2}); err != nil {
		t.Fatal(err)
	}
	members, scores, err := ks.ZRange("z", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	wantMembers := []string{"b", "c", "a"}
	wantScores := []float64{1, 2, 3}
	for i := range wantMembers {
		if members[i] != wantMembers[i] || scores[i] != wantScores[i] {
			t.Fatalf("index %d: got (%q,%v) want (%q,%v)", i, members[i], scores[i], wantMembers[i], wantScores[i])
		}
	}
	rank, ok, err := ks.ZRank("z", "c")
	if err != nil || !ok || rank != 1 {
		t.Fatalf("got rank %d ok %v err %v", rank, ok, err)
	}
}

func TestStreamXAddAuto(t *testing.T) {
	ks := newTestKeyspace()
	id1, err := ks.XAdd("s", "*", []string{"f", "v"}, true)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := ks.XAdd("s", "*", []string{"f", "v2"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if !id1.less(id2) {
		t.Fatalf("expected id1 < id2, got %v %v", id1, id2)
	}
	entries, err := ks.XReadAfter("s", StreamID{})
	if err != nil || len(entries) != 2 {
		t.Fatalf("got %d entries err %v", len(entries), err)
	}
}

func TestStreamXAddExplicitOrderEnforced(t *testing.T) {
	ks := newTestKeyspace()
	if _, err := ks.XAdd("s", "5-1", nil, true); err != nil {
		t.Fatal(err)
	}
	if _, err := ks.XAdd("s", "5-1", nil, true); err != ErrStreamIDOrder {
		t.Fatalf("expected ErrStreamIDOrder, got %v", err)
	}
	if _, err := ks.XAdd("s", "4-9", nil, true); err != ErrStreamIDOrder {
		t.Fatalf("expected ErrStreamIDOrder, got %v", err)
	}
}

func TestKeysMatching(t *testing.T) {
	ks := newTestKeyspace()
	ks.Set("user:1", []byte("a"))
	ks.Set("user:2", []byte("b"))
	ks.Set("order:1", []byte("c"))
	got := ks.KeysMatching("user:*")
	if len(got) != 2 {
		t.Fatalf("got %v", got)
	}
}
