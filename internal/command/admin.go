package command

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"

	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

func registerAdminCommands() {
	register("INFO", commandSpec{handler: cmdInfo, minArgs: 0, maxArgs: 1, category: acl.CategoryAdmin})
	register("COMMAND", commandSpec{handler: cmdCommand, minArgs: 0, maxArgs: -1, category: acl.CategoryConnect})
	register("DEBUG", commandSpec{handler: cmdDebug, minArgs: 1, maxArgs: -1, category: acl.CategoryAdmin})
	register("ACL", commandSpec{handler: cmdACL, minArgs: 1, maxArgs: -1, category: acl.CategoryAdmin})
}

func cmdInfo(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	role := "master"
	if srv.Repl != nil && srv.Repl.ReplicaCount() == 0 {
		role = "master"
	}
	info := fmt.Sprintf(
		"# Server\r\nrespd_version:1.0.0\r\nuptime_in_seconds:%d\r\n\r\n# Replication\r\nrole:%s\r\nconnected_slaves:%d\r\nmaster_repl_offset:%d\r\n",
		int(timeSince(srv.StartTime).Seconds()), role, replicaCount(srv), replOffset(srv),
	)
	return resp.BulkStr(info)
}

func cmdCommand(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	if len(args) == 1 && upperString(args[0].Bulk) == "COUNT" {
		return resp.Int64(int64(len(table)))
	}
	names := make([]resp.Value, 0, len(table))
	for name := range table {
		names = append(names, resp.BulkStr(name))
	}
	return resp.Arr(names...)
}

// cmdDebug implements a small, server-specific subset: OBJECT reports a
// key's kind and rough size, and JSONDUMP dumps a go-spew representation
// of an arbitrary session-visible value for interactive debugging, the
// same tool the teacher's codebase reaches for when eyeballing
// structures during development.
func cmdDebug(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	switch upperString(args[0].Bulk) {
	case "OBJECT":
		if len(args) != 2 {
			return resp.Err("ERR wrong number of arguments")
		}
		kind, ok := ks(srv, sess).TypeOf(string(args[1].Bulk))
		if !ok {
			return resp.Err("ERR no such key")
		}
		return resp.SimpleStr(fmt.Sprintf("Value at:0x0 refcount:1 encoding:%s", kind.String()))
	case "JSONDUMP":
		if len(args) != 2 {
			return resp.Err("ERR wrong number of arguments")
		}
		v, err := ks(srv, sess).Get(string(args[1].Bulk))
		if err != nil {
			return resp.Err(err.Error())
		}
		return resp.BulkStr(spew.Sdump(v))
	case "SLEEP":
		return resp.SimpleStr("OK")
	default:
		return resp.Errf("ERR unknown DEBUG subcommand '%s'", string(args[0].Bulk))
	}
}

func cmdACL(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	switch upperString(args[0].Bulk) {
	case "WHOAMI":
		if sess.User == nil {
			return resp.BulkStr("default")
		}
		return resp.BulkStr(sess.User.Name)
	case "LIST":
		users := srv.ACL.List()
		vals := make([]resp.Value, len(users))
		for i, u := range users {
			vals[i] = resp.BulkStr(u.Name)
		}
		return resp.Arr(vals...)
	default:
		return resp.Errf("ERR unknown ACL subcommand '%s'", string(args[0].Bulk))
	}
}
