// Package config parses the server's command-line flags with pflag,
// matching the teacher's CLI bootstrap conventions.
package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config holds every flag the respd binary accepts.
type Config struct {
	Port         int
	AdminPort    int
	Dir          string
	DBFilename   string
	ReplicaOf    string // "<host> <port>", empty means standalone
	Databases    int
	RequirePass  string
	ShardCount   int
}

// Parse parses args (typically os.Args[1:]) into a Config.
func Parse(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("respd", pflag.ContinueOnError)

	cfg := &Config{}
	fs.IntVar(&cfg.Port, "port", 6379, "TCP port to listen on for RESP connections")
	fs.IntVar(&cfg.AdminPort, "admin-port", 8080, "HTTP port for the admin/metrics surface")
	fs.StringVar(&cfg.Dir, "dir", ".", "working directory for RDB snapshot files")
	fs.StringVar(&cfg.DBFilename, "dbfilename", "dump.rdb", "RDB snapshot filename")
	fs.StringVar(&cfg.ReplicaOf, "replicaof", "", "primary to replicate from, as '<host> <port>'")
	fs.IntVar(&cfg.Databases, "databases", 16, "number of selectable database indexes")
	fs.StringVar(&cfg.RequirePass, "requirepass", "", "password required for the default ACL user")
	fs.IntVar(&cfg.ShardCount, "shard-count", 32, "number of keyspace shards per database")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}
	return cfg, nil
}
