package command

import (
	"strconv"
	"time"

	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

func registerReplicationCommands() {
	register("REPLICAOF", commandSpec{handler: cmdReplicaOf, minArgs: 2, maxArgs: 2, category: acl.CategoryAdmin})
	register("SLAVEOF", commandSpec{handler: cmdReplicaOf, minArgs: 2, maxArgs: 2, category: acl.CategoryAdmin})
	register("WAIT", commandSpec{handler: cmdWait, minArgs: 2, maxArgs: 2, category: acl.CategoryAdmin})
	register("REPLCONF", commandSpec{handler: cmdReplConf, minArgs: 1, maxArgs: -1, category: acl.CategoryAdmin})
}

// ReplicaOfRequest is what cmdReplicaOf reports back to the caller (the
// server's main loop) via Server.OnReplicaOf, since switching a live
// process between primary and replica roles means tearing down or
// standing up a replication.Client goroutine, which this package has no
// business owning.
type ReplicaOfRequest struct {
	Host string
	Port string
	None bool // REPLICAOF NO ONE
}

func cmdReplicaOf(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	host := string(args[0].Bulk)
	port := string(args[1].Bulk)
	req := ReplicaOfRequest{Host: host, Port: port}
	if upperString(args[0].Bulk) == "NO" && upperString(args[1].Bulk) == "ONE" {
		req.None = true
	}
	if srv.OnReplicaOf != nil {
		srv.OnReplicaOf(req)
	}
	return resp.SimpleStr("OK")
}

func cmdWait(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	numReplicas, err1 := strconv.Atoi(string(args[0].Bulk))
	timeoutMs, err2 := strconv.Atoi(string(args[1].Bulk))
	if err1 != nil || err2 != nil {
		return resp.Err("ERR value is not an integer or out of range")
	}
	if srv.Repl == nil {
		return resp.Int64(0)
	}
	target := srv.Repl.Offset()
	n := srv.Repl.WaitForAck(numReplicas, target, time.Duration(timeoutMs)*time.Millisecond)
	return resp.Int64(int64(n))
}

// cmdReplConf answers the handshake sub-commands a connecting replica
// sends (listening-port, capa) with a plain OK, and records ACK offsets
// reported by an already-streaming replica. GETACK is sent by the
// primary to replicas, never received by one, so it is not handled here.
func cmdReplConf(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	sub := upperString(args[0].Bulk)
	if sub == "ACK" {
		if len(args) != 2 {
			return resp.Err("ERR wrong number of arguments")
		}
		off, err := strconv.ParseInt(string(args[1].Bulk), 10, 64)
		if err == nil && sess.ReplicaLink != nil {
			sess.ReplicaLink.SetAck(off)
		}
		return resp.NoReply()
	}
	return resp.SimpleStr("OK")
}
