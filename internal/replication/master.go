// Package replication implements the master-side write journal and
// replica-side PSYNC client from spec §4.11.
package replication

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nullbyte-labs/redisgo/internal/command"
	"github.com/nullbyte-labs/redisgo/internal/resp"
	"github.com/nullbyte-labs/redisgo/internal/scheduler"
)

// replica tracks one connected replica's metadata and acked offset. offset
// is written by the I/O path decoding REPLCONF ACK frames and read by the
// worker processing WAIT, so it's a plain atomic rather than mutex-guarded
// (spec §5 "Shared resource policy").
type replica struct {
	connID        uint64
	listeningPort string
	ackedOffset   atomic.Int64
}

// waiter is one parked WAIT call, pinned to the offset in effect when it
// was issued — later writes must not make an already-parked WAIT harder
// to satisfy.
type waiter struct {
	connID       uint64
	numReplicas  int
	targetOffset int64
}

// Master is the replication journal a command.Dispatcher writes every
// successful write command's raw args into, plus the replica registry and
// WAIT waiter bookkeeping REPLCONF/PSYNC/WAIT need. It implements both
// command.ReplicationSink (the narrow Append seam) and the dispatcher's
// replicationController interface via structural typing — command never
// imports this package.
type Master struct {
	mu       sync.Mutex
	replid   string
	offset   int64 // bytes appended to the journal so far
	replicas map[uint64]*replica
	waiters  map[uint64]*waiter
	deadline *scheduler.DeadlineQueue
	log      *zap.Logger
}

// NewMaster returns a Master with a fresh replid: a random UUID string
// (36 characters with hyphens), not Redis's 40-hex-char runid format.
func NewMaster(log *zap.Logger) *Master {
	if log == nil {
		log = zap.NewNop()
	}
	return &Master{
		replid:   uuid.NewString(),
		replicas: make(map[uint64]*replica),
		waiters:  make(map[uint64]*waiter),
		deadline: scheduler.NewDeadlineQueue(),
		log:      log.Named("replication-master"),
	}
}

// Append journals a write command's raw args as a RESP array frame and
// fans it out to every connected replica, returning one Wake per replica
// (spec §4.11 "fanned out to each replica's outbound buffer"). The offset
// advances by the encoded frame's byte length.
func (m *Master) Append(args [][]byte) []command.Wake {
	frame := encodeCommand(args)

	m.mu.Lock()
	m.offset += int64(len(frame))
	wakes := make([]command.Wake, 0, len(m.replicas))
	for _, r := range m.replicas {
		wakes = append(wakes, command.Wake{ConnID: r.connID, Reply: frame})
	}
	m.mu.Unlock()

	return wakes
}

// RegisterReplica records listening-port metadata for conn (REPLCONF
// LISTENING-PORT). The replica isn't added to the fan-out set until PSYNC
// completes (FullResync), matching real Redis's two-phase handshake.
func (m *Master) RegisterReplica(connID uint64, listeningPort, capa string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replicas[connID]
	if !ok {
		r = &replica{connID: connID}
		m.replicas[connID] = r
	}
	if listeningPort != "" {
		r.listeningPort = listeningPort
	}
}

// FullResync admits connID into the replica fan-out set and returns the
// replid and current offset for the master's +FULLRESYNC reply.
func (m *Master) FullResync(connID uint64) (string, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.replicas[connID]; !ok {
		m.replicas[connID] = &replica{connID: connID}
	}
	return m.replid, m.offset
}

// HandleACK records a replica's applied offset and wakes any WAIT callers
// whose required replica count is now satisfied.
func (m *Master) HandleACK(connID uint64, offset int64) []command.Wake {
	m.mu.Lock()
	r, ok := m.replicas[connID]
	if ok {
		r.ackedOffset.Store(offset)
	}
	var wakes []command.Wake
	for id, w := range m.waiters {
		satisfied := m.ackedAtLeastLocked(w.targetOffset)
		if satisfied >= w.numReplicas {
			wakes = append(wakes, command.Wake{ConnID: id, Reply: resp.Integer(int64(satisfied))})
			delete(m.waiters, id)
			m.deadline.Remove(id)
		}
	}
	m.mu.Unlock()
	return wakes
}

// CurrentOffset returns the master's journal offset.
func (m *Master) CurrentOffset() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offset
}

// AckedAtLeast returns the number of replicas whose acked offset is >= n.
func (m *Master) AckedAtLeast(n int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ackedAtLeastLocked(n)
}

func (m *Master) ackedAtLeastLocked(n int64) int {
	count := 0
	for _, r := range m.replicas {
		if r.ackedOffset.Load() >= n {
			count++
		}
	}
	return count
}

// Wait services the WAIT command for a non-zero timeout: if the required
// replica count is already satisfied it returns immediately, else it parks
// connID on the deadline queue and reports parked=true (the caller returns
// Async(); the scheduler tick's deadline sweep or a later HandleACK wakes
// it — spec §4.12, §5 "WAIT cancels when either its count is satisfied by
// ACKs or its deadline passes").
func (m *Master) Wait(connID uint64, numReplicas int, deadline time.Time, hasDeadline bool) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	target := m.offset
	satisfied := m.ackedAtLeastLocked(target)
	if satisfied >= numReplicas {
		return satisfied, false
	}
	m.waiters[connID] = &waiter{connID: connID, numReplicas: numReplicas, targetOffset: target}
	if hasDeadline {
		m.deadline.Push(connID, deadline)
	}
	return 0, true
}

// SweepExpired drains waiters whose deadline has passed and returns one
// Wake per expired waiter reporting its currently-satisfied count (spec
// §4.12 scheduler tick step (c)). Called by internal/scheduler's periodic
// tick alongside the keyspace and blocking-registry sweeps.
func (m *Master) SweepExpired(now time.Time) []command.Wake {
	m.mu.Lock()
	expired := m.deadline.DrainExpired(now)
	wakes := make([]command.Wake, 0, len(expired))
	for _, id := range expired {
		w, ok := m.waiters[id]
		if !ok {
			continue
		}
		delete(m.waiters, id)
		wakes = append(wakes, command.Wake{ConnID: id, Reply: resp.Integer(int64(m.ackedAtLeastLocked(w.targetOffset)))})
	}
	m.mu.Unlock()
	return wakes
}

// Unregister drops connID from the replica set and cancels any pending
// WAIT registered under it, for connection-close cleanup.
func (m *Master) Unregister(connID uint64) {
	m.mu.Lock()
	delete(m.replicas, connID)
	delete(m.waiters, connID)
	m.deadline.Remove(connID)
	m.mu.Unlock()
}

// NumReplicas reports the currently fanned-out-to replica count, surfaced
// through internal/admin's /info endpoint.
func (m *Master) NumReplicas() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replicas)
}

// encodeCommand re-serializes args as a RESP array of bulk strings — the
// exact wire shape a replica's command.ParseFrame loop expects to read
// back, so journal bytes and wire bytes are identical (spec §4.11 "the
// replication offset advances by the byte count").
func encodeCommand(args [][]byte) []byte {
	parts := make([][]byte, len(args))
	for i, a := range args {
		parts[i] = resp.BulkString(a)
	}
	return resp.Array(parts...)
}
