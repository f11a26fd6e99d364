package command

import (
	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

func registerPubSubCommands() {
	register("SUBSCRIBE", commandSpec{handler: cmdSubscribe, minArgs: 1, maxArgs: -1, category: acl.CategoryPubSub})
	register("UNSUBSCRIBE", commandSpec{handler: cmdUnsubscribe, minArgs: 0, maxArgs: -1, category: acl.CategoryPubSub})
	register("PSUBSCRIBE", commandSpec{handler: cmdPSubscribe, minArgs: 1, maxArgs: -1, category: acl.CategoryPubSub})
	register("PUNSUBSCRIBE", commandSpec{handler: cmdPUnsubscribe, minArgs: 0, maxArgs: -1, category: acl.CategoryPubSub})
	register("PUBLISH", commandSpec{handler: cmdPublish, minArgs: 2, maxArgs: 2, category: acl.CategoryPubSub, isWrite: true})
}

// cmdSubscribe and its siblings return a top-level Array whose elements
// are themselves the one-frame-per-channel confirmations real SUBSCRIBE
// sends as separate pushed replies; internal/server's connection loop
// recognizes these four commands and writes each element as its own
// top-level RESP frame instead of nesting them inside a single array.
func cmdSubscribe(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	if sess.Sub == nil {
		sess.Sub = srv.Hub.NewSubscriber()
	}
	frames := make([]resp.Value, 0, len(args))
	for _, a := range args {
		ch := string(a.Bulk)
		sess.SubscribedChans[ch] = true
		srv.Hub.Subscribe(sess.Sub, ch)
		frames = append(frames, resp.Arr(resp.BulkStr("subscribe"), resp.BulkStr(ch), resp.Int64(int64(sess.SubscriptionCount()))))
	}
	return resp.Arr(frames...)
}

func cmdUnsubscribe(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	channels := args
	if len(channels) == 0 {
		for ch := range sess.SubscribedChans {
			channels = append(channels, resp.BulkStr(ch))
		}
	}
	if len(channels) == 0 {
		return resp.Arr(resp.Arr(resp.BulkStr("unsubscribe"), resp.NullBulk(), resp.Int64(int64(sess.SubscriptionCount()))))
	}
	frames := make([]resp.Value, 0, len(channels))
	for _, a := range channels {
		ch := string(a.Bulk)
		delete(sess.SubscribedChans, ch)
		if sess.Sub != nil {
			srv.Hub.Unsubscribe(sess.Sub, ch)
		}
		frames = append(frames, resp.Arr(resp.BulkStr("unsubscribe"), resp.BulkStr(ch), resp.Int64(int64(sess.SubscriptionCount()))))
	}
	return resp.Arr(frames...)
}

func cmdPSubscribe(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	if sess.Sub == nil {
		sess.Sub = srv.Hub.NewSubscriber()
	}
	frames := make([]resp.Value, 0, len(args))
	for _, a := range args {
		pat := string(a.Bulk)
		sess.SubscribedPats[pat] = true
		srv.Hub.PSubscribe(sess.Sub, pat)
		frames = append(frames, resp.Arr(resp.BulkStr("psubscribe"), resp.BulkStr(pat), resp.Int64(int64(sess.SubscriptionCount()))))
	}
	return resp.Arr(frames...)
}

func cmdPUnsubscribe(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	patterns := args
	if len(patterns) == 0 {
		for pat := range sess.SubscribedPats {
			patterns = append(patterns, resp.BulkStr(pat))
		}
	}
	if len(patterns) == 0 {
		return resp.Arr(resp.Arr(resp.BulkStr("punsubscribe"), resp.NullBulk(), resp.Int64(int64(sess.SubscriptionCount()))))
	}
	frames := make([]resp.Value, 0, len(patterns))
	for _, a := range patterns {
		pat := string(a.Bulk)
		delete(sess.SubscribedPats, pat)
		if sess.Sub != nil {
			srv.Hub.PUnsubscribe(sess.Sub, pat)
		}
		frames = append(frames, resp.Arr(resp.BulkStr("punsubscribe"), resp.BulkStr(pat), resp.Int64(int64(sess.SubscriptionCount()))))
	}
	return resp.Arr(frames...)
}

func cmdPublish(srv *Server, sess *session.Session, args []resp.Value) resp.Value {
	n := srv.Hub.Publish(string(args[0].Bulk), args[1].Bulk)
	return resp.Int64(int64(n))
}
