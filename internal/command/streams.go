package command

import (
	"strconv"

	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
	"github.com/edirooss/respd/internal/store"
)

func registerStreamCommands() {
	register("XADD", commandSpec{handler: cmdXAdd, minArgs: 4, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
	register("XRANGE", commandSpec{handler: cmdXRange, minArgs: 3, maxArgs: 3, category: acl.CategoryRead})
	register("XREAD", commandSpec{handler: cmdXRead, minArgs: 3, maxArgs: -1, category: acl.CategoryRead})
}

func cmdXAdd(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	key := string(args[0].Bulk)
	idArg := 1
	nomkstream := false
	if upperString(args[1].Bulk) == "NOMKSTREAM" {
		nomkstream = true
		idArg = 2
	}
	if idArg >= len(args) {
		return resp.Err("ERR wrong number of arguments for 'xadd' command")
	}
	rawID := string(args[idArg].Bulk)
	fieldArgs := args[idArg+1:]
	if len(fieldArgs) == 0 || len(fieldArgs)%2 != 0 {
		return resp.Err("ERR wrong number of arguments for 'xadd' command")
	}
	fields := make([]string, len(fieldArgs))
	for i, a := range fieldArgs {
		fields[i] = string(a.Bulk)
	}
	id, err := ks(srv, sess).XAdd(key, rawID, fields, !nomkstream)
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.BulkStr(id.String())
}

func parseRangeBound(s string, isStart bool) (store.StreamID, error) {
	switch s {
	case "-":
		return store.StreamID{Ms: 0, Seq: 0}, nil
	case "+":
		return store.StreamID{Ms: 1<<63 - 1, Seq: 1<<63 - 1}, nil
	}
	return parseFullStreamID(s, isStart)
}

func parseFullStreamID(s string, isStart bool) (store.StreamID, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == '-' {
			ms, err1 := strconv.ParseInt(s[:i], 10, 64)
			seq, err2 := strconv.ParseInt(s[i+1:], 10, 64)
			if err1 != nil || err2 != nil {
				return store.StreamID{}, store.ErrStreamIDOrder
			}
			return store.StreamID{Ms: ms, Seq: seq}, nil
		}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return store.StreamID{}, store.ErrStreamIDOrder
	}
	seq := int64(0)
	if !isStart {
		seq = 1<<63 - 1
	}
	return store.StreamID{Ms: ms, Seq: seq}, nil
}

func cmdXRange(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	start, err1 := parseRangeBound(string(args[1].Bulk), true)
	end, err2 := parseRangeBound(string(args[2].Bulk), false)
	if err1 != nil || err2 != nil {
		return resp.Err("ERR Invalid stream ID specified as stream command argument")
	}
	entries, err := ks(srv, sess).XRange(string(args[0].Bulk), start, end, 0)
	if err != nil {
		return resp.Err(err.Error())
	}
	return encodeStreamEntries(entries)
}

func encodeStreamEntries(entries []store.StreamEntry) resp.Value {
	vals := make([]resp.Value, len(entries))
	for i, e := range entries {
		fields := make([]resp.Value, len(e.Fields))
		for j, f := range e.Fields {
			fields[j] = resp.BulkStr(f)
		}
		vals[i] = resp.Arr(resp.BulkStr(e.ID.String()), resp.Arr(fields...))
	}
	return resp.Arr(vals...)
}

// cmdXRead handles both the non-blocking form and XREAD ... BLOCK
// <ms> STREAMS k1 k2 ... id1 id2 ..., parking the connection's goroutine
// on a signal-only stream waiter (see store.RegisterStreamWaiter) when
// nothing is immediately available.
func cmdXRead(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	var blockMs = -1
	idx := 0
	for idx < len(args) {
		switch upperString(args[idx].Bulk) {
		case "BLOCK":
			if idx+1 >= len(args) {
				return resp.Err("ERR syntax error")
			}
			ms, err := strconv.Atoi(string(args[idx+1].Bulk))
			if err != nil {
				return resp.Err("ERR timeout is not an integer or out of range")
			}
			blockMs = ms
			idx += 2
		case "COUNT":
			idx += 2
		case "STREAMS":
			idx++
			goto parseStreams
		default:
			return resp.Err("ERR syntax error")
		}
	}
	return resp.Err("ERR syntax error")

parseStreams:
	rest := args[idx:]
	if len(rest)%2 != 0 || len(rest) == 0 {
		return resp.Err("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	keys := make([]string, n)
	after := make([]store.StreamID, n)
	db := ks(srv, sess)
	for i := 0; i < n; i++ {
		keys[i] = string(rest[i].Bulk)
		rawID := string(rest[n+i].Bulk)
		if rawID == "$" {
			last, ok := db.LastStreamID(keys[i])
			if ok {
				after[i] = last
			}
			continue
		}
		id, err := parseFullStreamID(rawID, false)
		if err != nil {
			return resp.Err("ERR Invalid stream ID specified as stream command argument")
		}
		after[i] = id
	}

	reply, hasAny := collectXRead(db, keys, after)
	if hasAny {
		return reply
	}
	if blockMs == -1 {
		return resp.NullArr()
	}

	w := db.RegisterStreamWaiter(keys)
	var deadlineCh <-chan struct{}
	if blockMs > 0 {
		deadlineCh = srv.Blocking.Arm(w.ID, timeFromNowMs(blockMs))
	}
	for {
		select {
		case <-w.Ch:
			reply, hasAny = collectXRead(db, keys, after)
			if hasAny {
				db.CancelStreamWaiter(keys, w)
				return reply
			}
			w = db.RegisterStreamWaiter(keys)
		case <-deadlineCh:
			db.CancelStreamWaiter(keys, w)
			return resp.NullArr()
		}
	}
}

func collectXRead(db *store.Keyspace, keys []string, after []store.StreamID) (resp.Value, bool) {
	var perStream []resp.Value
	hasAny := false
	for i, key := range keys {
		entries, err := db.XReadAfter(key, after[i])
		if err != nil || len(entries) == 0 {
			continue
		}
		hasAny = true
		perStream = append(perStream, resp.Arr(resp.BulkStr(key), encodeStreamEntries(entries)))
	}
	if !hasAny {
		return resp.NullArr(), false
	}
	return resp.Arr(perStream...), true
}
