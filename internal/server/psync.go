package server

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/respd/internal/command"
	"github.com/edirooss/respd/internal/rdb"
	"github.com/edirooss/respd/internal/replication"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/session"
)

// handlePSync answers a replica's PSYNC handshake and then holds the
// connection open for the lifetime of the replication session. PSYNC is
// deliberately never registered in command.table: its reply is a
// simple-string header followed by a raw, unframed RDB bulk and then an
// indefinite forwarded command stream, none of which fits the
// single-resp.Value-return Handler signature every other command uses.
// Only this package holds the raw net.Conn, so only it can drive that
// byte stream.
func (s *Server) handlePSync(ctx context.Context, sess *session.Session, conn net.Conn, writeMu *sync.Mutex, log *zap.Logger) {
	link := s.cmd.Repl.AddReplica()
	sess.IsReplica = true
	sess.ReplicaLink = link
	defer s.cmd.Repl.RemoveReplica(link.ID)

	offset := s.cmd.Repl.Offset()
	header := resp.SimpleStr("FULLRESYNC " + s.cmd.Repl.ReplID() + " " + strconv.FormatInt(offset, 10))

	dump := s.snapshotRDB()

	writeMu.Lock()
	_, err := conn.Write(resp.Bytes(header))
	if err == nil {
		_, err = conn.Write([]byte("$" + strconv.Itoa(len(dump)) + "\r\n"))
	}
	if err == nil {
		_, err = conn.Write(dump)
	}
	writeMu.Unlock()
	if err != nil {
		log.Warn("PSYNC handshake write failed", zap.Error(err))
		return
	}
	log.Info("replica synced", zap.Int64("replica", link.ID), zap.Int64("offset", offset))

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.forwardReplication(streamCtx, link, conn, writeMu, log)

	s.readReplicaCommands(streamCtx, sess, conn, log)
}

// snapshotRDB serializes database 0's string keys through internal/rdb.
// Only database 0 is snapshotted: RDB's multi-database SELECTDB framing
// is parsed on load but never emitted by Save for more than one
// database, matching the single-opSelectDB(0) scope Save documents.
func (s *Server) snapshotRDB() []byte {
	var entries []rdb.Entry
	if len(s.cmd.Keyspaces) > 0 {
		s.cmd.Keyspaces[0].ForEachString(func(key string, val []byte, expireAt time.Time) {
			entries = append(entries, rdb.Entry{Key: key, Value: val, ExpireAt: expireAt})
		})
	}
	var buf bytes.Buffer
	_ = rdb.Save(&buf, entries)
	return buf.Bytes()
}

// readReplicaCommands keeps reading off the replica's connection after
// the handshake: the only traffic a connected replica ever sends back
// is REPLCONF ACK <offset>, in response to a GETACK probe. Returning
// here (connection closed or ctx cancelled) stops the paired
// forwardReplication goroutine via streamCtx.
func (s *Server) readReplicaCommands(ctx context.Context, sess *session.Session, conn net.Conn, log *zap.Logger) {
	r := bufio.NewReader(conn)
	for {
		v, err := resp.Decode(r)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("replica connection read error", zap.Error(err))
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		name, args, ok := commandLine(v)
		if !ok {
			continue
		}
		command.Dispatch(s.cmd, sess, name, args) // REPLCONF ACK: always NoReply
	}
}

// forwardReplication drains link.Send and writes each already-encoded
// command straight to the replica's connection, coordinating with
// readReplicaCommands's (silent) dispatch replies via writeMu.
func (s *Server) forwardReplication(ctx context.Context, link *replication.ReplicaLink, conn net.Conn, writeMu *sync.Mutex, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-link.Send:
			if !ok {
				return
			}
			writeMu.Lock()
			_, err := conn.Write(raw)
			writeMu.Unlock()
			if err != nil {
				log.Debug("replica forward write failed", zap.Error(err))
				return
			}
		}
	}
}
