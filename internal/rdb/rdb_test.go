package rdb

import (
	"bytes"
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	entries := []Entry{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2"), ExpireAt: time.Now().Add(time.Hour).Truncate(time.Millisecond)},
	}
	var buf bytes.Buffer
	if err := Save(&buf, entries); err != nil {
		t.Fatal(err)
	}

	var got []Entry
	if err := Load(&buf, func(e Entry) { got = append(got, e) }); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries", len(got))
	}
	if got[0].Key != "a" || string(got[0].Value) != "1" || !got[0].ExpireAt.IsZero() {
		t.Fatalf("entry 0: %+v", got[0])
	}
	if got[1].Key != "b" || string(got[1].Value) != "2" || got[1].ExpireAt.IsZero() {
		t.Fatalf("entry 1: %+v", got[1])
	}
}
