// Command respd is the server binary: it parses flags, builds every
// shared subsystem (keyspace, pub/sub hub, ACL store, blocking
// registry, replication engine), wires them into a command.Server, and
// runs the RESP listener alongside the admin HTTP surface until an
// interrupt signal asks it to stop.
package main

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/edirooss/respd/internal/acl"
	"github.com/edirooss/respd/internal/adminhttp"
	"github.com/edirooss/respd/internal/blocking"
	"github.com/edirooss/respd/internal/command"
	"github.com/edirooss/respd/internal/config"
	"github.com/edirooss/respd/internal/pubsub"
	"github.com/edirooss/respd/internal/rdb"
	"github.com/edirooss/respd/internal/replication"
	"github.com/edirooss/respd/internal/server"
	"github.com/edirooss/respd/internal/store"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.TimeKey = ""
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.DisableStacktrace = true
	logConfig.DisableCaller = true
	log := zap.Must(logConfig.Build())
	defer log.Sync()
	log = log.Named("main")

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal("parsing flags", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blockingReg := blocking.NewRegistry(log)
	defer blockingReg.Close()

	keyspaces := make([]*store.Keyspace, cfg.Databases)
	for i := range keyspaces {
		keyspaces[i] = store.NewKeyspace(cfg.ShardCount, blockingReg, log)
	}

	loadRDB(log, cfg, keyspaces[0])

	hub := pubsub.NewHub(log)
	aclStore := acl.NewStore(cfg.RequirePass)
	replEngine := replication.NewEngine(log, uuid.NewString())

	cmdSrv := &command.Server{
		Log:         log,
		Keyspaces:   keyspaces,
		Blocking:    blockingReg,
		Hub:         hub,
		ACL:         aclStore,
		Repl:        replEngine,
		StartTime:   time.Now(),
		RequireAuth: cfg.RequirePass != "",
	}

	replMgr := newReplicaManager(log, cfg, keyspaces, cmdSrv)
	cmdSrv.OnReplicaOf = replMgr.handle

	if cfg.ReplicaOf != "" {
		replMgr.startFromFlag(ctx, cfg.ReplicaOf)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatal("creating scheduler", zap.Error(err))
	}
	registerMaintenanceJobs(sched, log, cfg, keyspaces)
	sched.Start()
	defer sched.Shutdown()

	respSrv := server.New(log, cmdSrv)
	adminSrv := adminhttp.New(log, cmdSrv, respSrv, formatAddr("", cfg.AdminPort))

	errs := make(chan error, 2)
	go func() { errs <- respSrv.Serve(ctx, formatAddr("", cfg.Port)) }()
	go func() { errs <- adminSrv.Serve(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errs:
		if err != nil {
			log.Error("server exited", zap.Error(err))
		}
		stop()
	}

	saveRDB(log, cfg, keyspaces[0])
}

// registerMaintenanceJobs wires the periodic housekeeping the teacher's
// own task manager would run as scheduled jobs rather than ad hoc
// goroutines: an expiry sweep over every database every 100ms
// (store.Keyspace.SweepExpired does one pass per call and leaves the
// cadence to its caller), and an RDB snapshot of database 0 every 5 minutes.
func registerMaintenanceJobs(sched gocron.Scheduler, log *zap.Logger, cfg *config.Config, keyspaces []*store.Keyspace) {
	const sweepSampleSize = 20
	_, err := sched.NewJob(
		gocron.DurationJob(100*time.Millisecond),
		gocron.NewTask(func() {
			for _, ks := range keyspaces {
				ks.SweepExpired(sweepSampleSize)
			}
		}),
	)
	if err != nil {
		log.Warn("registering expiry sweep job failed", zap.Error(err))
	}

	_, err = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			saveRDB(log, cfg, keyspaces[0])
		}),
	)
	if err != nil {
		log.Warn("registering snapshot job failed", zap.Error(err))
	}
}

func rdbPath(cfg *config.Config) string {
	return filepath.Join(cfg.Dir, cfg.DBFilename)
}

func loadRDB(log *zap.Logger, cfg *config.Config, ks *store.Keyspace) {
	f, err := os.Open(rdbPath(cfg))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("opening RDB file", zap.Error(err))
		}
		return
	}
	defer f.Close()

	n := 0
	if err := rdb.Load(f, func(e rdb.Entry) {
		ks.RestoreString(e.Key, e.Value, e.ExpireAt)
		n++
	}); err != nil {
		log.Warn("loading RDB file", zap.Error(err))
		return
	}
	log.Info("loaded RDB snapshot", zap.Int("keys", n), zap.String("path", rdbPath(cfg)))
}

func saveRDB(log *zap.Logger, cfg *config.Config, ks *store.Keyspace) {
	var entries []rdb.Entry
	ks.ForEachString(func(key string, val []byte, expireAt time.Time) {
		entries = append(entries, rdb.Entry{Key: key, Value: val, ExpireAt: expireAt})
	})

	var buf bytes.Buffer
	if err := rdb.Save(&buf, entries); err != nil {
		log.Warn("encoding RDB snapshot", zap.Error(err))
		return
	}
	if err := os.WriteFile(rdbPath(cfg), buf.Bytes(), 0o644); err != nil {
		log.Warn("writing RDB snapshot", zap.Error(err))
		return
	}
	log.Info("saved RDB snapshot", zap.Int("keys", len(entries)), zap.String("path", rdbPath(cfg)))
}

func formatAddr(host string, port int) string {
	return host + ":" + strconv.Itoa(port)
}
