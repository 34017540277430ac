package eventloop

import (
	"bufio"
	"net"
	"sync"

	"github.com/nullbyte-labs/redisgo/internal/command"
)

// clientConn is one accepted connection's I/O state. Mutation of the
// shared keyspace/registries happens only through dispatcher.Dispatch,
// called from this connection's own read goroutine — the write path
// (ordinary replies and Wake deliveries from elsewhere) is guarded by
// writeMu so replies are never interleaved mid-frame (spec §5 "Per
// connection: command replies are written in the order the commands were
// received").
type clientConn struct {
	id   uint64
	conn net.Conn
	r    *bufio.Reader

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}

	cmdConn *command.Conn
}

func newClientConn(id uint64, nc net.Conn, bufSize int) *clientConn {
	return &clientConn{
		id:      id,
		conn:    nc,
		r:       bufio.NewReaderSize(nc, bufSize),
		done:    make(chan struct{}),
		cmdConn: command.NewConn(id),
	}
}

// writeLocked writes b to the socket, serialized against every other
// writer of this connection (the read goroutine's own replies, and Wake
// deliveries arriving from other connections' dispatch calls).
func (c *clientConn) writeLocked(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write(b)
	return err
}

// close is idempotent and safe to call from any goroutine (the read loop
// on local EOF/protocol error, or the server on shutdown).
func (c *clientConn) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
		close(c.done)
	})
}
