package server

import (
	"testing"

	"github.com/edirooss/respd/internal/resp"
)

func TestCommandLineExtractsNameAndArgs(t *testing.T) {
	v := resp.Arr(resp.BulkStr("SET"), resp.BulkStr("k"), resp.BulkStr("v"))
	name, args, ok := commandLine(v)
	if !ok || name != "SET" || len(args) != 2 {
		t.Fatalf("got name=%q args=%v ok=%v", name, args, ok)
	}
}

func TestCommandLineRejectsNonArray(t *testing.T) {
	if _, _, ok := commandLine(resp.BulkStr("PING")); ok {
		t.Fatal("expected ok=false for non-array value")
	}
}

func TestCommandLineRejectsEmptyArray(t *testing.T) {
	if _, _, ok := commandLine(resp.Arr()); ok {
		t.Fatal("expected ok=false for empty array")
	}
}

func TestCommandLineRejectsNonBulkElements(t *testing.T) {
	v := resp.Arr(resp.BulkStr("SET"), resp.Int64(1))
	if _, _, ok := commandLine(v); ok {
		t.Fatal("expected ok=false when an element is not a bulk string")
	}
}

func TestWriteSubscribeFramesUnwrapsEachFrame(t *testing.T) {
	reply := resp.Arr(
		resp.Arr(resp.BulkStr("subscribe"), resp.BulkStr("a"), resp.Int64(1)),
		resp.Arr(resp.BulkStr("subscribe"), resp.BulkStr("b"), resp.Int64(2)),
	)
	var written []resp.Value
	writeSubscribeFrames(func(v resp.Value) { written = append(written, v) }, "SUBSCRIBE", reply)
	if len(written) != 2 {
		t.Fatalf("got %d frames", len(written))
	}
	if string(written[0].Array[1].Bulk) != "a" || string(written[1].Array[1].Bulk) != "b" {
		t.Fatalf("got %+v", written)
	}
}

func TestWriteSubscribeFramesPassesThroughOtherCommands(t *testing.T) {
	reply := resp.SimpleStr("OK")
	var written []resp.Value
	writeSubscribeFrames(func(v resp.Value) { written = append(written, v) }, "SET", reply)
	if len(written) != 1 || written[0].Str != "OK" {
		t.Fatalf("got %+v", written)
	}
}

func TestConnLimiterAcquireRelease(t *testing.T) {
	l := newConnLimiter(2)
	l.acquire(1)
	l.acquire(2)
	if got := l.current(); got != 2 {
		t.Fatalf("got %d", got)
	}
	l.release(1)
	if got := l.current(); got != 1 {
		t.Fatalf("got %d", got)
	}
}

func TestConnLimiterTryAcquireFailsAtCapacity(t *testing.T) {
	l := newConnLimiter(1)
	l.acquire(1)
	if l.tryAcquire(2) {
		t.Fatal("expected tryAcquire to fail at capacity")
	}
	l.release(1)
	if !l.tryAcquire(2) {
		t.Fatal("expected tryAcquire to succeed once capacity frees")
	}
}

func TestConnLimiterAcquireBlocksUntilRelease(t *testing.T) {
	l := newConnLimiter(1)
	l.acquire(1)

	done := make(chan struct{})
	go func() {
		l.acquire(2)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("acquire returned before capacity freed")
	default:
	}

	l.release(1)
	<-done
	if got := l.current(); got != 1 {
		t.Fatalf("got %d", got)
	}
}

func TestRecentCommandsReadNewestFirst(t *testing.T) {
	r := newRecentCommands()
	r.Append("GET")
	r.Append("SET")
	r.Append("DEL")
	got := r.Read(10)
	want := []string{"DEL", "SET", "GET"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestRecentCommandsWrapsAroundCapacity(t *testing.T) {
	const capN = 500
	r := newRecentCommands()
	for i := 0; i < capN+5; i++ {
		r.Append("CMD")
	}
	got := r.Read(capN + 5)
	if len(got) != capN {
		t.Fatalf("got %d entries, want capacity %d", len(got), capN)
	}
}
