// Package server implements the RESP TCP accept loop and the
// per-connection read/dispatch/write cycle: the glue between
// internal/resp's wire codec, internal/command's dispatcher, and
// internal/replication's PSYNC handshake, none of which owns a raw
// net.Conn itself.
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/edirooss/respd/internal/command"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

// defaultMaxConns bounds how many connections may be accepted
// concurrently; past this, Accept keeps accepting (so the listen backlog
// does not back up into the OS) but new connections block in the
// limiter until one frees up.
const defaultMaxConns = 10000

// Server owns the TCP listener, the shared command.Server it dispatches
// into, and every connection's bookkeeping (concurrency limiter, recent
// command ring buffer). One Server per listening port.
type Server struct {
	log *zap.Logger
	cmd *command.Server

	limiter *connLimiter
	recent  *recentCommands

	nextConnID atomic.Int64
}

func New(log *zap.Logger, cmd *command.Server) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:     log.Named("server"),
		cmd:     cmd,
		limiter: newConnLimiter(defaultMaxConns),
		recent:  newRecentCommands(),
	}
}

// RecentCommands returns up to n recently dispatched command names,
// newest first, for the admin surface.
func (s *Server) RecentCommands(n int) []string { return s.recent.Read(n) }

// ActiveConnections reports how many connections currently hold an
// accept slot.
func (s *Server) ActiveConnections() int64 { return s.limiter.current() }

// Serve accepts connections on addr until ctx is cancelled, then returns
// nil. It returns a non-nil error only when addr cannot be listened on;
// an Accept error while ctx is still live is logged and accepting goes on.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	s.log.Info("listening", zap.String("addr", addr))
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warn("accept failed", zap.Error(err))
				continue
			}
		}
		id := s.nextConnID.Add(1)
		go s.serveConn(ctx, conn, id)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, id int64) {
	s.limiter.acquire(id)
	defer s.limiter.release(id)
	defer conn.Close()

	log := s.log.With(zap.Int64("conn", id), zap.Stringer("remote", conn.RemoteAddr()))
	log.Debug("connection accepted")
	defer log.Debug("connection closed")

	sess := session.New(id)
	reader := bufio.NewReader(conn)

	var writeMu sync.Mutex
	writeValue := func(v resp.Value) {
		if v.IsNoReply() {
			return
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if _, err := conn.Write(resp.Bytes(v)); err != nil {
			log.Debug("write failed", zap.Error(err))
		}
	}

	pushDone := make(chan struct{})
	pushStarted := false
	defer func() {
		if pushStarted {
			close(pushDone)
		}
		if sess.Sub != nil {
			s.cmd.Hub.RemoveAll(sess.Sub)
		}
		// A connection that issued PSYNC reaches here only after
		// handlePSync returns (the replica disconnected); handlePSync does
		// its own Repl.RemoveReplica cleanup (see psync.go).
	}()

	for {
		v, err := resp.Decode(reader)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("decode error", zap.Error(err))
			}
			return
		}

		name, args, ok := commandLine(v)
		if !ok {
			writeValue(resp.Err("ERR Protocol error: expected array of bulk strings"))
			continue
		}
		upper := strings.ToUpper(name)
		s.recent.Append(upper)

		if upper == "PSYNC" {
			s.handlePSync(ctx, sess, conn, &writeMu, log)
			return
		}

		reply := command.Dispatch(s.cmd, sess, name, args)
		writeSubscribeFrames(writeValue, upper, reply)

		if !pushStarted && sess.Sub != nil {
			pushStarted = true
			go s.drainSubscriber(sess, conn, &writeMu, pushDone, log)
		}

		if upper == "QUIT" {
			return
		}
	}
}

// commandLine extracts a command name and arguments from a decoded RESP
// value: the ordinary case is a non-empty array of bulk strings, which
// is the only request shape a real client ever sends over RESP2.
func commandLine(v resp.Value) (name string, args []resp.Value, ok bool) {
	if v.Type != resp.Array || len(v.Array) == 0 {
		return "", nil, false
	}
	for _, item := range v.Array {
		if item.Type != resp.BulkString {
			return "", nil, false
		}
	}
	return string(v.Array[0].Bulk), v.Array[1:], true
}

// writeSubscribeFrames special-cases the four subscribe commands, whose
// handlers return an Array-of-Arrays standing for multiple independent
// top-level replies (see internal/command/pubsub.go): each inner value
// is written as its own frame rather than nested inside one array, which
// is how a real client actually reads multiple SUBSCRIBE confirmations.
func writeSubscribeFrames(write func(resp.Value), upper string, reply resp.Value) {
	switch upper {
	case "SUBSCRIBE", "UNSUBSCRIBE", "PSUBSCRIBE", "PUNSUBSCRIBE":
		if reply.Type == resp.Array {
			for _, frame := range reply.Array {
				write(frame)
			}
			return
		}
	}
	write(reply)
}

// drainSubscriber writes pushed pub/sub messages to conn for the
// lifetime of the connection, coordinating with the main read/dispatch
// loop's writes via writeMu so the two goroutines never interleave
// partial frames on the same socket.
func (s *Server) drainSubscriber(sess *session.Session, conn net.Conn, writeMu *sync.Mutex, done <-chan struct{}, log *zap.Logger) {
	for {
		select {
		case <-done:
			return
		case msg, ok := <-sess.Sub.Inbox():
			if !ok {
				return
			}
			v := resp.Arr(resp.BulkStr("message"), resp.BulkStr(msg.Channel), resp.BulkBytes(msg.Payload))
			if msg.Pattern != "" {
				v = resp.Arr(resp.BulkStr("pmessage"), resp.BulkStr(msg.Pattern), resp.BulkStr(msg.Channel), resp.BulkBytes(msg.Payload))
			}
			writeMu.Lock()
			_, err := conn.Write(resp.Bytes(v))
			writeMu.Unlock()
			if err != nil {
				log.Debug("subscriber push failed", zap.Error(err))
				return
			}
		}
	}
}
