package replication

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/respd/internal/resp"
)

// HandshakeState is one step of the replica-side PSYNC handshake.
type HandshakeState int

const (
	StateInit HandshakeState = iota
	StatePingSent
	StateReplConf1Sent
	StateReplConf2Sent
	StatePsyncSent
	StateAwaitingRDB
	StateStreaming
	StateFailed
)

func (s HandshakeState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StatePingSent:
		return "PING_SENT"
	case StateReplConf1Sent:
		return "REPLCONF1_SENT"
	case StateReplConf2Sent:
		return "REPLCONF2_SENT"
	case StatePsyncSent:
		return "PSYNC_SENT"
	case StateAwaitingRDB:
		return "AWAITING_RDB"
	case StateStreaming:
		return "STREAMING"
	default:
		return "FAILED"
	}
}

// ApplyFunc is called once per command the primary streams, after the
// handshake completes; the server wires this to its command dispatcher
// running against the replica's own keyspace, bypassing ACL and
// replication-recording (a replica does not re-propagate what its own
// primary sends it).
type ApplyFunc func(dbIndex int, name string, args []resp.Value)

// Client drives one outbound connection to a primary, retrying the full
// handshake with backoff on failure. This mirrors the teacher's
// supervised-goroutine-with-context-cancel pattern used for process
// supervision: one goroutine per link, select-based shutdown, restart
// on failure rather than letting the connection silently vanish.
type Client struct {
	log          *zap.Logger
	addr         string
	myPort       string
	apply        ApplyFunc
	loadSnapshot func([]byte)
	state        HandshakeState
	offset       int64
}

// NewClient builds a replica-side handshake client. loadSnapshot, if
// non-nil, receives the raw RDB bulk the primary sends as part of
// FULLRESYNC, before streaming begins; the caller is expected to parse
// it with internal/rdb.Load and install the entries into its own
// keyspace, since this package has no store dependency of its own.
func NewClient(log *zap.Logger, addr, myPort string, apply ApplyFunc, loadSnapshot func([]byte)) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{log: log.Named("replica"), addr: addr, myPort: myPort, apply: apply, loadSnapshot: loadSnapshot}
}

func (c *Client) State() HandshakeState { return c.state }
func (c *Client) Offset() int64         { return c.offset }

// Run supervises the connection until ctx is canceled, reconnecting with
// exponential backoff (capped) whenever the link drops or the handshake
// fails, exactly like a restarted supervised process.
func (c *Client) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := c.runOnce(ctx); err != nil {
			c.state = StateFailed
			c.log.Warn("replication link failed, retrying", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	r := bufio.NewReader(conn)

	c.state = StatePingSent
	if err := sendCommand(conn, "PING"); err != nil {
		return err
	}
	if _, err := resp.Decode(r); err != nil {
		return err
	}

	c.state = StateReplConf1Sent
	if err := sendCommand(conn, "REPLCONF", "listening-port", c.myPort); err != nil {
		return err
	}
	if _, err := resp.Decode(r); err != nil {
		return err
	}

	c.state = StateReplConf2Sent
	if err := sendCommand(conn, "REPLCONF", "capa", "eof", "capa", "psync2"); err != nil {
		return err
	}
	if _, err := resp.Decode(r); err != nil {
		return err
	}

	c.state = StatePsyncSent
	if err := sendCommand(conn, "PSYNC", "?", "-1"); err != nil {
		return err
	}
	if _, err := resp.Decode(r); err != nil { // +FULLRESYNC <replid> <offset>
		return err
	}

	c.state = StateAwaitingRDB
	dump, err := resp.DecodeInline(r) // bulk-framed RDB payload
	if err != nil {
		return err
	}
	if c.loadSnapshot != nil {
		c.loadSnapshot(dump)
	}

	c.state = StateStreaming
	return c.stream(ctx, conn, r)
}

func (c *Client) stream(ctx context.Context, conn net.Conn, r *bufio.Reader) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		v, err := resp.Decode(r)
		if err != nil {
			return err
		}
		if v.Type != resp.Array || len(v.Array) == 0 {
			continue
		}
		name := string(v.Array[0].Bulk)
		args := v.Array[1:]
		size := int64(len(resp.Bytes(v)))

		if name == "REPLCONF" && len(args) >= 1 && string(args[0].Bulk) == "GETACK" {
			// The reported offset excludes this GETACK's own bytes; they
			// are counted once the ACK has been sent.
			if err := sendCommand(conn, "REPLCONF", "ACK", fmt.Sprintf("%d", c.offset)); err != nil {
				return err
			}
			c.offset += size
			continue
		}
		c.offset += size
		if c.apply != nil {
			c.apply(0, name, args)
		}
	}
}

func sendCommand(w interface{ Write([]byte) (int, error) }, parts ...string) error {
	_, err := w.Write(resp.EncodeRawCommand(parts...))
	return err
}
