package main

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/edirooss/respd/internal/command"
	"github.com/edirooss/respd/internal/config"
	"github.com/edirooss/respd/internal/rdb"
	"github.com/edirooss/respd/internal/replication"
	"github.com/edirooss/respd/internal/resp"
	"github.com/edirooss/respd/internal/store"
)

// replicaManager owns the single, swappable replication.Client that
// backs this process's replica role: REPLICAOF <host> <port> tears down
// whatever link is running and starts a new one; REPLICAOF NO ONE just
// tears it down. command.Server only parses REPLICAOF's arguments and
// reports them here via OnReplicaOf, since only the bootstrap layer
// holds the cancel funcs and keyspace handles a link needs.
type replicaManager struct {
	log       *zap.Logger
	cfg       *config.Config
	keyspaces []*store.Keyspace
	cmdSrv    *command.Server

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newReplicaManager(log *zap.Logger, cfg *config.Config, keyspaces []*store.Keyspace, cmdSrv *command.Server) *replicaManager {
	return &replicaManager{log: log.Named("replicaof"), cfg: cfg, keyspaces: keyspaces, cmdSrv: cmdSrv}
}

func (m *replicaManager) handle(req command.ReplicaOfRequest) {
	if req.None {
		m.stop()
		return
	}
	m.start(context.Background(), req.Host+":"+req.Port)
}

func (m *replicaManager) startFromFlag(ctx context.Context, replicaOf string) {
	fields := strings.Fields(replicaOf)
	if len(fields) != 2 {
		m.log.Warn("malformed --replicaof value, ignoring", zap.String("value", replicaOf))
		return
	}
	m.start(ctx, fields[0]+":"+fields[1])
}

func (m *replicaManager) start(parent context.Context, addr string) {
	m.stop()

	ctx, cancel := context.WithCancel(parent)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	client := replication.NewClient(
		m.log,
		addr,
		strconv.Itoa(m.cfg.Port),
		func(dbIndex int, name string, args []resp.Value) {
			command.Apply(m.cmdSrv, dbIndex, name, args)
		},
		func(dump []byte) {
			m.loadSnapshot(dump)
		},
	)
	m.log.Info("starting replication", zap.String("primary", addr))
	go client.Run(ctx)
}

func (m *replicaManager) stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel != nil {
		m.log.Info("stopping replication")
		cancel()
	}
}

func (m *replicaManager) loadSnapshot(dump []byte) {
	if len(m.keyspaces) == 0 {
		return
	}
	ks := m.keyspaces[0]
	n := 0
	if err := rdb.Load(bytes.NewReader(dump), func(e rdb.Entry) {
		ks.RestoreString(e.Key, e.Value, e.ExpireAt)
		n++
	}); err != nil {
		m.log.Warn("loading FULLRESYNC snapshot", zap.Error(err))
		return
	}
	m.log.Info("applied FULLRESYNC snapshot", zap.Int("keys", n))
}
