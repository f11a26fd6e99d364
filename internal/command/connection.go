package command

import (
	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

func registerConnectionCommands() {
	register("PING", commandSpec{handler: cmdPing, minArgs: 0, maxArgs: 1, category: acl.CategoryConnect})
	register("ECHO", commandSpec{handler: cmdEcho, minArgs: 1, maxArgs: 1, category: acl.CategoryConnect})
	register("SELECT", commandSpec{handler: cmdSelect, minArgs: 1, maxArgs: 1, category: acl.CategoryConnect})
	register("AUTH", commandSpec{handler: cmdAuth, minArgs: 1, maxArgs: 2, category: acl.CategoryConnect})
	register("CLIENT", commandSpec{handler: cmdClient, minArgs: 1, maxArgs: -1, category: acl.CategoryConnect})
	register("HELLO", commandSpec{handler: cmdHello, minArgs: 0, maxArgs: -1, category: acl.CategoryConnect})
	register("QUIT", commandSpec{handler: cmdQuit, minArgs: 0, maxArgs: 0, category: acl.CategoryConnect})
	register("RESET", commandSpec{handler: cmdReset, minArgs: 0, maxArgs: 0, category: acl.CategoryConnect})
}

func cmdPing(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	if len(args) == 1 {
		return resp.BulkBytes(args[0].Bulk)
	}
	return resp.SimpleStr("PONG")
}

func cmdEcho(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	return resp.BulkBytes(args[0].Bulk)
}

func cmdSelect(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	n, err := parseIndex(args[0].Bulk)
	if err != nil || n < 0 || n >= len(srv.Keyspaces) {
		return resp.Err("ERR DB index is out of range")
	}
	sess.DBIndex = n
	return resp.SimpleStr("OK")
}

func cmdAuth(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	var username, password string
	if len(args) == 1 {
		username, password = "default", string(args[0].Bulk)
	} else {
		username, password = string(args[0].Bulk), string(args[1].Bulk)
	}
	u, err := srv.ACL.Authenticate(username, password)
	if err != nil {
		return resp.Err(err.Error())
	}
	sess.User = u
	return resp.SimpleStr("OK")
}

func cmdClient(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	sub := upperString(args[0].Bulk)
	switch sub {
	case "GETNAME":
		return resp.BulkStr(sess.Name)
	case "SETNAME":
		if len(args) != 2 {
			return resp.Err("ERR wrong number of arguments for 'client|setname' command")
		}
		sess.Name = string(args[1].Bulk)
		return resp.SimpleStr("OK")
	case "ID":
		return resp.Int64(sess.ID)
	default:
		return resp.Errf("ERR Unknown CLIENT subcommand '%s'", string(args[0].Bulk))
	}
}

func cmdHello(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	return resp.Arr(
		resp.BulkStr("server"), resp.BulkStr("respd"),
		resp.BulkStr("proto"), resp.Int64(2),
		resp.BulkStr("id"), resp.Int64(sess.ID),
		resp.BulkStr("mode"), resp.BulkStr("standalone"),
	)
}

func cmdQuit(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	return resp.SimpleStr("OK")
}

func cmdReset(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	sess.Tx = nil
	sess.DBIndex = 0
	sess.User = nil
	return resp.SimpleStr("RESET")
}
