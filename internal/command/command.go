// Package command implements RESP command parsing and dispatch: turning
// a decoded resp.Value array into a typed call against the store,
// pub/sub hub, ACL store, and replication engine, and producing the
// resp.Value reply.
package command

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/blocking"
	"github.com/edirooss/respd/internal/pubsub"
	"github.com/edirooss/respd/internal/replication"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
	"github.com/edirooss/respd/internal/store"
)

// Server is the shared, process-wide state every connection's dispatch
// loop reads and mutates. One Server backs the whole listener; Sessions
// are per-connection.
type Server struct {
	Log *zap.Logger

	Keyspaces []*store.Keyspace // indexed by SELECTed database number
	Blocking  *blocking.Registry
	Hub       *pubsub.Hub
	ACL       *acl.Store
	Repl      *replication.Engine

	StartTime time.Time

	RequireAuth bool

	// OnReplicaOf is invoked when a client issues REPLICAOF/SLAVEOF;
	// this package only parses the request; cmd/respd's replicaManager
	// owns starting/stopping the replication.Client goroutine it implies.
	OnReplicaOf func(ReplicaOfRequest)
}

// Handler is one command implementation. It receives the raw argument
// values (excluding the command name itself) and returns the RESP reply.
type Handler func(srv *Server, sess *session.Session, args []resp.Value) resp.Value

type commandSpec struct {
	handler  Handler
	minArgs  int
	maxArgs  int // -1 means unbounded
	category acl.Category
	isWrite  bool
}

var table map[string]commandSpec

func register(name string, spec commandSpec) {
	if table == nil {
		table = make(map[string]commandSpec)
	}
	table[name] = spec
}

func init() {
	registerConnectionCommands()
	registerStringCommands()
	registerListCommands()
	registerStreamCommands()
	registerZSetCommands()
	registerGeoCommands()
	registerPubSubCommands()
	registerTxCommands()
	registerAdminCommands()
	registerReplicationCommands()
}

// Dispatch looks up and validates name, enforces subscribe-mode and ACL
// gating, and (outside of a MULTI) invokes the handler directly; inside
// a MULTI it queues the command instead, matching QUEUED semantics.
func Dispatch(srv *Server, sess *session.Session, name string, args []resp.Value) resp.Value {
	upper := strings.ToUpper(name)

	spec, ok := table[upper]
	if !ok {
		err := resp.Errf("ERR unknown command '%s'", name)
		markTxDirty(sess, err)
		return err
	}
	if !arityOK(spec, len(args)) {
		err := resp.Errf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
		markTxDirty(sess, err)
		return err
	}

	if sess.InSubscribeMode() && !subscribeModeAllowed(upper) {
		return resp.Errf("ERR Can't execute '%s': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context", strings.ToLower(name))
	}

	if srv.RequireAuth && sess.User == nil && !authExempt(upper) {
		return resp.Err("NOAUTH Authentication required.")
	}

	if sess.User != nil {
		key := firstKeyArg(upper, args)
		if err := sess.User.Authorize(spec.category, key); err != nil {
			return resp.Err(err.Error())
		}
	}

	if sess.Tx != nil && !txExempt(upper) {
		sess.Tx.Enqueue(upper, args)
		return resp.SimpleStr("QUEUED")
	}

	reply := spec.handler(srv, sess, args)

	if spec.isWrite && srv.Repl != nil {
		srv.Repl.RecordWrite(sess.DBIndex, upper, args)
	}
	return reply
}

// Apply runs a command forwarded by a primary directly against this
// server's own keyspace, bypassing ACL, subscribe-mode gating, MULTI
// queuing, and replication recording: a replica applies what its
// primary already decided to accept, and does not re-propagate it as
// though it were its own write (chained replication is out of scope).
// Unknown commands and dispatch errors are logged and otherwise
// ignored, since there is no client connection to report them to.
func Apply(srv *Server, dbIndex int, name string, args []resp.Value) {
	spec, ok := table[strings.ToUpper(name)]
	if !ok {
		srv.Log.Warn("replica received unknown command", zap.String("command", name))
		return
	}
	sess := session.New(0)
	sess.DBIndex = dbIndex
	reply := spec.handler(srv, sess, args)
	if reply.Type == resp.Error {
		srv.Log.Warn("replica apply failed", zap.String("command", name), zap.String("error", reply.Str))
	}
}

// markTxDirty records that a queued command failed validation before it
// ever reached the queue, so EXEC aborts the whole transaction instead
// of replaying whatever did queue successfully.
func markTxDirty(sess *session.Session, reply resp.Value) {
	if sess.Tx != nil {
		sess.Tx.Dirty = true
		sess.Tx.DirtyErr = errors.New(reply.Str)
	}
}

func arityOK(spec commandSpec, n int) bool {
	if n < spec.minArgs {
		return false
	}
	if spec.maxArgs >= 0 && n > spec.maxArgs {
		return false
	}
	return true
}

// firstKeyArg is a best-effort heuristic used only for ACL key-pattern
// checks: the first argument of most data commands is the key.
func firstKeyArg(upper string, args []resp.Value) string {
	switch upper {
	case "PING", "ECHO", "AUTH", "SELECT", "CLIENT", "SUBSCRIBE", "UNSUBSCRIBE",
		"PSUBSCRIBE", "PUNSUBSCRIBE", "PUBLISH", "MULTI", "EXEC", "DISCARD",
		"REPLICAOF", "SLAVEOF", "WAIT", "REPLCONF", "PSYNC", "INFO", "COMMAND", "ACL":
		return ""
	}
	if len(args) == 0 {
		return ""
	}
	return string(args[0].Bulk)
}

var subscribeModeAllowlist = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true, "PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"PING": true, "QUIT": true, "RESET": true,
}

func subscribeModeAllowed(upper string) bool { return subscribeModeAllowlist[upper] }

var authExemptSet = map[string]bool{"AUTH": true, "PING": true, "HELLO": true, "QUIT": true}

func authExempt(upper string) bool { return authExemptSet[upper] }

var txExemptSet = map[string]bool{"MULTI": true, "EXEC": true, "DISCARD": true, "WATCH": true}

func txExempt(upper string) bool { return txExemptSet[upper] }
