package command

import (
	"strconv"
	"time"

	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
	"github.com/edirooss/respd/internal/store"
)

func registerStringCommands() {
	register("GET", commandSpec{handler: cmdGet, minArgs: 1, maxArgs: 1, category: acl.CategoryRead})
	register("SET", commandSpec{handler: cmdSet, minArgs: 2, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
	register("DEL", commandSpec{handler: cmdDel, minArgs: 1, maxArgs: -1, category: acl.CategoryWrite, isWrite: true})
	register("EXISTS", commandSpec{handler: cmdExists, minArgs: 1, maxArgs: -1, category: acl.CategoryRead})
	register("TYPE", commandSpec{handler: cmdType, minArgs: 1, maxArgs: 1, category: acl.CategoryRead})
	register("EXPIRE", commandSpec{handler: cmdExpire, minArgs: 2, maxArgs: 2, category: acl.CategoryWrite, isWrite: true})
	register("PERSIST", commandSpec{handler: cmdPersist, minArgs: 1, maxArgs: 1, category: acl.CategoryWrite, isWrite: true})
	register("TTL", commandSpec{handler: cmdTTL, minArgs: 1, maxArgs: 1, category: acl.CategoryRead})
	register("INCR", commandSpec{handler: cmdIncr, minArgs: 1, maxArgs: 1, category: acl.CategoryWrite, isWrite: true})
	register("INCRBY", commandSpec{handler: cmdIncrBy, minArgs: 2, maxArgs: 2, category: acl.CategoryWrite, isWrite: true})
	register("KEYS", commandSpec{handler: cmdKeys, minArgs: 1, maxArgs: 1, category: acl.CategoryRead})
}

func ks(srv *Server, sess *session.Session) *store.Keyspace {
	return srv.Keyspaces[sess.DBIndex]
}

func cmdGet(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	v, err := ks(srv, sess).Get(string(args[0].Bulk))
	if err != nil {
		return resp.Err(err.Error())
	}
	if v == nil {
		return resp.NullBulk()
	}
	return resp.BulkBytes(v)
}

func cmdSet(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	key := string(args[0].Bulk)
	val := args[1].Bulk
	var ttl time.Duration
	hasTTL := false
	for i := 2; i < len(args); i++ {
		switch upperString(args[i].Bulk) {
		case "EX":
			i++
			if i >= len(args) {
				return resp.Err("ERR syntax error")
			}
			secs, err := strconv.Atoi(string(args[i].Bulk))
			if err != nil {
				return resp.Err("ERR value is not an integer or out of range")
			}
			ttl, hasTTL = time.Duration(secs)*time.Second, true
		case "PX":
			i++
			if i >= len(args) {
				return resp.Err("ERR syntax error")
			}
			ms, err := strconv.Atoi(string(args[i].Bulk))
			if err != nil {
				return resp.Err("ERR value is not an integer or out of range")
			}
			ttl, hasTTL = time.Duration(ms)*time.Millisecond, true
		default:
			return resp.Errf("ERR syntax error")
		}
	}
	if hasTTL {
		ks(srv, sess).SetWithExpiry(key, val, ttl)
	} else {
		ks(srv, sess).Set(key, val)
	}
	return resp.SimpleStr("OK")
}

func cmdDel(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a.Bulk)
	}
	return resp.Int64(int64(ks(srv, sess).Delete(keys...)))
}

func cmdExists(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a.Bulk)
	}
	return resp.Int64(int64(ks(srv, sess).Exists(keys...)))
}

func cmdType(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	kind, ok := ks(srv, sess).TypeOf(string(args[0].Bulk))
	if !ok {
		return resp.SimpleStr("none")
	}
	return resp.SimpleStr(kind.String())
}

func cmdExpire(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	secs, err := strconv.Atoi(string(args[1].Bulk))
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	ok := ks(srv, sess).Expire(string(args[0].Bulk), time.Duration(secs)*time.Second)
	return resp.Bool(ok)
}

func cmdPersist(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	return resp.Bool(ks(srv, sess).Persist(string(args[0].Bulk)))
}

func cmdTTL(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	ttl, hasExpiry, ok := ks(srv, sess).TTL(string(args[0].Bulk))
	if !ok {
		return resp.Int64(-2)
	}
	if !hasExpiry {
		return resp.Int64(-1)
	}
	secs := int64(ttl / time.Second)
	if secs < 0 {
		secs = 0
	}
	return resp.Int64(secs)
}

func cmdIncr(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	n, err := ks(srv, sess).Incr(string(args[0].Bulk), 1)
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.Int64(n)
}

func cmdIncrBy(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	delta, err := strconv.ParseInt(string(args[1].Bulk), 10, 64)
	if err != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	n, err := ks(srv, sess).Incr(string(args[0].Bulk), delta)
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.Int64(n)
}

func cmdKeys(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	keys := ks(srv, sess).KeysMatching(string(args[0].Bulk))
	vals := make([]resp.Value, len(keys))
	for i, k := range keys {
		vals[i] = resp.BulkStr(k)
	}
	return resp.Arr(vals...)
}
