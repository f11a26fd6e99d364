package command

import (
	"strconv"
	"time"

	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

func registerListCommands() {
	register("LPUSH", commandSpec{handler: cmdLPush, minArgs: 2, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
	register("RPUSH", commandSpec{handler: cmdRPush, minArgs: 2, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
	register("LPOP", commandSpec{handler: cmdLPop, minArgs: 1, maxArgs: 1, category: acl.CategoryWrite, isWrite: true})
	register("RPOP", commandSpec{handler: cmdRPop, minArgs: 1, maxArgs: 1, category: acl.CategoryWrite, isWrite: true})
	register("LRANGE", commandSpec{handler: cmdLRange, minArgs: 3, maxArgs: 3, category: acl.CategoryRead})
	register("LLEN", commandSpec{handler: cmdLLen, minArgs: 1, maxArgs: 1, category: acl.CategoryRead})
	register("BLPOP", commandSpec{handler: cmdBLPop(true), minArgs: 2, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
	register("BRPOP", commandSpec{handler: cmdBLPop(false), minArgs: 2, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
}

func cmdLPush(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	return doPush(srv, sess, args, true)
}

func cmdRPush(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	return doPush(srv, sess, args, false)
}

func doPush(srv *Server, sess *session.Session, args []resp.Value, left bool) resp.Value {
	key := string(args[0].Bulk)
	vals := make([][]byte, 0, len(args)-1)
	for _, a := range args[1:] {
		vals = append(vals, a.Bulk)
	}
	var n int
	var err error
	if left {
		n, err = ks(srv, sess).LPush(key, vals...)
	} else {
		n, err = ks(srv, sess).RPush(key, vals...)
	}
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.Int64(int64(n))
}

func cmdLPop(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	v, err := ks(srv, sess).LPop(string(args[0].Bulk))
	if err != nil {
		return resp.Err(err.Error())
	}
	if v == nil {
		return resp.NullBulk()
	}
	return resp.BulkBytes(v)
}

func cmdRPop(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	v, err := ks(srv, sess).RPop(string(args[0].Bulk))
	if err != nil {
		return resp.Err(err.Error())
	}
	if v == nil {
		return resp.NullBulk()
	}
	return resp.BulkBytes(v)
}

func cmdLRange(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	start, err1 := strconv.Atoi(string(args[1].Bulk))
	stop, err2 := strconv.Atoi(string(args[2].Bulk))
	if err1 != nil || err2 != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	items, err := ks(srv, sess).LRange(string(args[0].Bulk), start, stop)
	if err != nil {
		return resp.Err(err.Error())
	}
	vals := make([]resp.Value, len(items))
	for i, it := range items {
		vals[i] = resp.BulkBytes(it)
	}
	return resp.Arr(vals...)
}

func cmdLLen(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	n, err := ks(srv, sess).LLen(string(args[0].Bulk))
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.Int64(int64(n))
}

// cmdBLPop returns a handler bound to a pop direction. BLPOP/BRPOP are
// the one place command dispatch actually blocks the connection's
// goroutine: RegisterListWaiter either satisfies the call immediately
// (no block) or hands back a live waiter that this goroutine parks on,
// racing the registry's shared deadline reaper via blocking.Registry.Arm.
func cmdBLPop(left bool) Handler {
	return func(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
		n := len(args)
		timeoutSecs, err := strconv.ParseFloat(string(args[n-1].Bulk), 64)
		if err != nil || timeoutSecs < 0 {
			return resp.Err("ERR timeout is not a float or out of range")
		}
		keys := make([]string, n-1)
		for i := 0; i < n-1; i++ {
			keys[i] = string(args[i].Bulk)
		}

		store := ks(srv, sess)
		res, w := store.RegisterListWaiter(keys, left)
		if w == nil {
			return resp.Arr(resp.BulkStr(res.Key), resp.BulkBytes(res.Value))
		}

		var deadlineCh <-chan struct{}
		if timeoutSecs > 0 {
			deadline := time.Now().Add(time.Duration(timeoutSecs * float64(time.Second)))
			deadlineCh = srv.Blocking.Arm(w.ID, deadline)
		}

		select {
		case v := <-w.Ch:
			return resp.Arr(resp.BulkStr(v.Key), resp.BulkBytes(v.Value))
		case <-deadlineCh:
			if !w.TryClaimTimeout() {
				// A push claimed the waiter and sent on w.Ch in the same
				// instant the reaper fired; select's pseudo-random choice
				// could otherwise pick this case and drop the value.
				v := <-w.Ch
				return resp.Arr(resp.BulkStr(v.Key), resp.BulkBytes(v.Value))
			}
			store.CancelListWaiter(keys, w)
			return resp.NullArr()
		}
	}
}
