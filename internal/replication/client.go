package replication

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nullbyte-labs/redisgo/internal/command"
	"github.com/nullbyte-labs/redisgo/internal/resp"
)

// reconnectCooldown is the delay between failed handshake attempts,
// mirroring the teacher's restartCooldown knob on a supervised process.
const reconnectCooldown = 1 * time.Second

// ackInterval is how often the replica reports its applied offset back to
// the master (spec §4.11 "periodically send REPLCONF ACK").
const ackInterval = 1 * time.Second

// Client is the replica side of PSYNC: it connects to a master, performs
// the handshake, and applies every subsequent RESP frame to a local
// keyspace. Its Start/Stop shape — an idempotent supervisor goroutine with
// a cancellable context, auto-reconnecting on any I/O error — is grounded
// on processmgr.ProcessManager's single-process supervision loop, adapted
// from supervising an OS process to supervising a TCP connection.
type Client struct {
	log        *zap.Logger
	dispatcher *command.Dispatcher
	applyConn  *command.Conn
	addr       string

	offset atomic.Int64
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// OnWake, if set, is invoked for every Wake a replayed write command
	// produces (e.g. unblocking a client parked on this replica's own
	// BLPOP against the now-updated key) — wired to the event loop's
	// per-connection writer by cmd/redis-server.
	OnWake func(command.Wake)
}

// NewClient returns a Client that will replicate addr's write stream by
// replaying each journaled frame through dispatcher — the same validate-
// and-execute path an ordinary client's write commands take, so a
// replica's keyspace mutations never drift from a master's. applyConn is
// a dedicated connection identity (never a real client's) so its
// transaction/watch state stays private to replay.
func NewClient(log *zap.Logger, dispatcher *command.Dispatcher, addr string) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		log:        log.Named("replication-client"),
		dispatcher: dispatcher,
		applyConn:  command.NewConn(0),
		addr:       addr,
	}
}

// Start launches the supervisor goroutine. Idempotent: a second Start
// before Stop is a no-op.
func (c *Client) Start() {
	if c.ctx != nil {
		return
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.done = make(chan struct{})
	go c.supervise()
}

// Stop signals the supervisor to shut down and waits for it to exit.
func (c *Client) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
}

// Offset reports the last byte offset successfully applied. The ACK
// heartbeat reads the same counter directly.
func (c *Client) Offset() int64 { return c.offset.Load() }

func (c *Client) supervise() {
	defer close(c.done)
	log := c.log.With(zap.String("master", c.addr))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
			if err := c.runSession(c.ctx, log); err != nil {
				log.Warn("replication session ended", zap.Error(err))
			}
			if c.ctx.Err() != nil {
				return
			}
			timer.Reset(reconnectCooldown)
		}
	}
}

// runSession performs one handshake-and-apply cycle against the master.
// It returns when the connection drops or ctx is cancelled; the caller
// reconnects after a cooldown.
func (c *Client) runSession(ctx context.Context, log *zap.Logger) error {
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial master: %w", err)
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	if err := handshake(conn, r); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	log.Info("full resync complete")

	stopAck := make(chan struct{})
	go c.ackLoop(conn, stopAck)
	defer close(stopAck)

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := r.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if err != nil {
			return err
		}

		for {
			frame, consumed, perr := resp.ParseFrame(buf)
			if perr == resp.ErrNeedMore {
				break
			}
			if perr != nil {
				return perr
			}
			wakes := c.apply(frame.Args)
			c.offset.Add(int64(consumed))
			buf = buf[consumed:]
			if c.OnWake != nil {
				for _, w := range wakes {
					c.OnWake(w)
				}
			}
		}
	}
}

// ackLoop periodically reports the applied offset until stop is closed.
func (c *Client) ackLoop(conn net.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(ackInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ack := resp.Array(
				resp.BulkString([]byte("REPLCONF")),
				resp.BulkString([]byte("ACK")),
				resp.BulkString([]byte(fmt.Sprintf("%d", c.offset.Load()))),
			)
			if _, err := conn.Write(ack); err != nil {
				return
			}
		}
	}
}

// apply replays one journaled write command through the local dispatcher.
// Its reply is discarded — the master already answered the original
// caller — and any Wakes it produces (e.g. waking a local BLPOP) are
// applied locally too, since a replica's own blocked clients must see the
// same data-added events a master's would.
func (c *Client) apply(args [][]byte) []command.Wake {
	if len(args) == 0 {
		return nil
	}
	return c.dispatcher.Dispatch(c.applyConn, args).Wakes
}

// handshake runs the replica-to-master PING/REPLCONF/PSYNC sequence (spec
// §4.11 "Replica side") and discards the FULLRESYNC snapshot payload.
func handshake(conn net.Conn, r *bufio.Reader) error {
	steps := [][][]byte{
		{[]byte("PING")},
		{[]byte("REPLCONF"), []byte("listening-port"), []byte("0")},
		{[]byte("REPLCONF"), []byte("capa"), []byte("eof")},
	}
	for _, args := range steps {
		if err := sendCommand(conn, args); err != nil {
			return err
		}
		if _, err := readSimpleLine(r); err != nil {
			return err
		}
	}

	if err := sendCommand(conn, [][]byte{[]byte("PSYNC"), []byte("?"), []byte("-1")}); err != nil {
		return err
	}
	if _, err := readSimpleLine(r); err != nil { // +FULLRESYNC <replid> <offset>
		return err
	}
	// Discard the RDB bulk payload ($<n>\r\n<n bytes>, no trailing CRLF).
	lengthLine, err := readSimpleLine(r)
	if err != nil {
		return err
	}
	var n int
	if _, err := fmt.Sscanf(lengthLine, "$%d", &n); err == nil && n > 0 {
		if _, err := r.Discard(n); err != nil {
			return err
		}
	}
	return nil
}

func sendCommand(conn net.Conn, args [][]byte) error {
	parts := make([][]byte, len(args))
	for i, a := range args {
		parts[i] = resp.BulkString(a)
	}
	_, err := conn.Write(resp.Array(parts...))
	return err
}

// readSimpleLine reads one CRLF-terminated line, stripping the trailing
// CRLF, for the handshake's line-oriented replies.
func readSimpleLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
