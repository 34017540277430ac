package command

import (
	"time"

	"go.uber.org/zap"

	"github.com/nullbyte-labs/redisgo/internal/blocking"
	"github.com/nullbyte-labs/redisgo/internal/keyspace"
	"github.com/nullbyte-labs/redisgo/internal/pubsub"
	"github.com/nullbyte-labs/redisgo/internal/txn"
)

// ReplicationSink receives every successfully executed write command's raw
// args, for the replication journal (spec §4.7 step 5, §4.11). Defined here
// rather than imported from internal/replication to keep this package the
// dependency root: replication imports command (for Wake and Dispatcher),
// while command never imports replication — the interface is the seam.
type ReplicationSink interface {
	// Append journals a successfully executed write command and returns
	// one Wake per connected replica that must now receive the raw
	// frame — replica fan-out reuses the same generic delivery channel
	// blocking wakeups and pub/sub fan-out use.
	Append(args [][]byte) []Wake
}

// noopSink discards writes, the default when replication isn't configured.
type noopSink struct{}

func (noopSink) Append([][]byte) []Wake { return nil }

// Conn is one connection's mutable command-layer state (spec §3
// "Connection state"). The read/write byte buffers live in
// internal/eventloop; this holds the pieces command handlers touch.
type Conn struct {
	ID       uint64
	Txn      *txn.State
	IsReplica bool
}

// NewConn returns a fresh connection state.
func NewConn(id uint64) *Conn {
	return &Conn{ID: id, Txn: txn.NewState()}
}

// Context is threaded through every handler invocation.
type Context struct {
	Keyspace    *keyspace.Keyspace
	Blocking    *blocking.Registry
	PubSub      *pubsub.Manager
	Replication ReplicationSink
	Conn        *Conn
	Now         func() time.Time
	Log         *zap.Logger

	// Deadline and HasDeadline are not set by the dispatcher; BLPOP,
	// XREAD BLOCK and WAIT parse their own timeout arguments.
	Deadline    time.Time
	HasDeadline bool

	// Dispatcher lets EXEC replay its queued commands through the same
	// validate/execute/post-execution path as top-level dispatch.
	Dispatcher *Dispatcher
}
