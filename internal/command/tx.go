package command

import (
	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

func registerTxCommands() {
	register("MULTI", commandSpec{handler: cmdMulti, minArgs: 0, maxArgs: 0, category: acl.CategoryConnect})
	register("EXEC", commandSpec{handler: cmdExec, minArgs: 0, maxArgs: 0, category: acl.CategoryConnect})
	register("DISCARD", commandSpec{handler: cmdDiscard, minArgs: 0, maxArgs: 0, category: acl.CategoryConnect})
}

func cmdMulti(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	if sess.Tx != nil {
		return resp.Err("ERR MULTI calls can not be nested")
	}
	sess.Tx = session.NewTransaction()
	return resp.SimpleStr("OK")
}

func cmdDiscard(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	if sess.Tx == nil {
		return resp.Err("ERR DISCARD without MULTI")
	}
	sess.Tx = nil
	return resp.SimpleStr("OK")
}

// cmdExec runs every queued command through Dispatch in order. There is
// no isolation between these and commands from other connections: each
// one takes and releases its own shard locks exactly like a standalone
// call would, which is the documented lack of cross-key atomicity.
func cmdExec(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	tx := sess.Tx
	if tx == nil {
		return resp.Err("ERR EXEC without MULTI")
	}
	sess.Tx = nil
	if tx.Dirty {
		return resp.Err("EXECABORT Transaction discarded because of previous errors.")
	}
	results := make([]resp.Value, len(tx.Queue))
	for i, qc := range tx.Queue {
		results[i] = Dispatch(srv, sess, qc.Name, qc.Args)
	}
	return resp.Arr(results...)
}
