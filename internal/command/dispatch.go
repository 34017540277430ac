package command

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nullbyte-labs/redisgo/internal/blocking"
	"github.com/nullbyte-labs/redisgo/internal/keyspace"
	"github.com/nullbyte-labs/redisgo/internal/metrics"
	"github.com/nullbyte-labs/redisgo/internal/pubsub"
	"github.com/nullbyte-labs/redisgo/internal/resp"
	"github.com/nullbyte-labs/redisgo/internal/txn"
)

// Dispatcher resolves command names to handlers and runs the five gates
// from spec §4.7.
type Dispatcher struct {
	handlers    map[string]*Handler
	keyspace    *keyspace.Keyspace
	blocking    *blocking.Registry
	pubsub      *pubsub.Manager
	replication ReplicationSink
	metrics     *metrics.Registry
	log         *zap.Logger
	clock       func() time.Time
	streamWaits map[uint64]*streamWait
}

// Deps bundles the subsystems a Dispatcher wires together.
type Deps struct {
	Keyspace    *keyspace.Keyspace
	Blocking    *blocking.Registry
	PubSub      *pubsub.Manager
	Replication ReplicationSink
	Metrics     *metrics.Registry
	Log         *zap.Logger
	Clock       func() time.Time
}

// NewDispatcher builds a Dispatcher with every command in spec §6 (plus
// SPEC_FULL.md's supplemented commands) registered.
func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Replication == nil {
		deps.Replication = noopSink{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	d := &Dispatcher{
		handlers:    make(map[string]*Handler),
		keyspace:    deps.Keyspace,
		blocking:    deps.Blocking,
		pubsub:      deps.PubSub,
		replication: deps.Replication,
		metrics:     deps.Metrics,
		log:         deps.Log.Named("dispatch"),
		clock:       deps.Clock,
		streamWaits: make(map[uint64]*streamWait),
	}
	d.registerConnection()
	d.registerString()
	d.registerList()
	d.registerStream()
	d.registerZSet()
	d.registerGeo()
	d.registerPubSub()
	d.registerTxn()
	d.registerReplication()
	return d
}

// register installs h under its own name and every alias.
func (d *Dispatcher) register(h *Handler, aliases ...string) {
	d.handlers[h.Name] = h
	for _, a := range aliases {
		d.handlers[strings.ToUpper(a)] = h
	}
}

// Dispatch resolves and runs one command frame against conn, applying the
// pub/sub gate, the transaction gate, argument validation, execution, and
// post-execution bookkeeping in that order (spec §4.7).
func (d *Dispatcher) Dispatch(conn *Conn, args [][]byte) Result {
	if len(args) == 0 {
		return ErrorResult("ERR empty command")
	}
	name := strings.ToUpper(string(args[0]))
	h, ok := d.handlers[name]
	if !ok {
		return errUnknownCommand(string(args[0]))
	}

	if d.pubsub.Total(conn.ID) > 0 && !h.AllowedInPubSub {
		return errNotAllowedInPubSub()
	}

	if conn.Txn.Mode() == txn.Queuing && !h.IsTxnControl {
		if h.IsBlocking {
			return errBlockingInTransaction()
		}
		if !h.checkArity(args) {
			return errWrongArgCount(name)
		}
		conn.Txn.Enqueue(args)
		return Success(resp.SimpleString("QUEUED"))
	}

	return d.execOne(conn, name, h, args)
}

// execOne runs argument validation, execution, and post-execution
// bookkeeping for one resolved handler — shared between top-level Dispatch
// and EXEC running its queued commands (spec §4.8: EXEC's queue runs
// through the same per-command machinery as ordinary dispatch, minus the
// gates already passed when the command was queued).
func (d *Dispatcher) execOne(conn *Conn, name string, h *Handler, args [][]byte) Result {
	if !h.checkArity(args) {
		return errWrongArgCount(name)
	}

	ctx := &Context{
		Keyspace:    d.keyspace,
		Blocking:    d.blocking,
		PubSub:      d.pubsub,
		Replication: d.replication,
		Conn:        conn,
		Now:         d.clock,
		Log:         d.log,
		Dispatcher:  d,
	}

	start := d.clock()
	result := h.Exec(ctx, args)
	dur := d.clock().Sub(start)

	if h.IsWrite && result.Kind != ResultError {
		result.Wakes = append(result.Wakes, d.replication.Append(args)...)
	}
	if d.metrics != nil {
		d.metrics.Record(name, dur, result.Kind == ResultError)
	}
	return result
}

// ExecQueued runs a transaction's queued commands in order, for the EXEC
// handler (kept on Dispatcher rather than Context so handlers_txn.go
// doesn't need a circular handle back into this file). It returns both the
// per-command reply bytes for EXEC's array reply and every Wake the queued
// commands produced between them — replication fan-out and blocked-client
// wakeups a queued write triggers are just as real as an ordinary command's
// and must reach the event loop the same way.
func (d *Dispatcher) ExecQueued(conn *Conn, queue []txn.QueuedCommand) ([][]byte, []Wake) {
	out := make([][]byte, 0, len(queue))
	var wakes []Wake
	for _, q := range queue {
		name := strings.ToUpper(string(q.Args[0]))
		h, ok := d.handlers[name]
		if !ok {
			out = append(out, errUnknownCommand(string(q.Args[0])).Bytes)
			continue
		}
		result := d.execOne(conn, name, h, q.Args)
		out = append(out, encodeResult(result))
		wakes = append(wakes, result.Wakes...)
	}
	return out, wakes
}

// encodeResult flattens a Result into its wire bytes for embedding inside
// EXEC's array reply. MultiSuccess is flattened to its constituent replies
// joined in order; Async cannot occur here since blocking commands are
// rejected inside MULTI.
func encodeResult(r Result) []byte {
	switch r.Kind {
	case ResultMultiSuccess:
		out := make([]byte, 0)
		for _, b := range r.Multi {
			out = append(out, b...)
		}
		return out
	default:
		return r.Bytes
	}
}

// CloseConn releases every registry entry owned by conn (spec §5:
// "A connection close removes all its blocking entries, transaction
// state, and subscriptions").
func (d *Dispatcher) CloseConn(conn *Conn) {
	d.blocking.Unblock(conn.ID)
	d.pubsub.UnsubscribeAll(conn.ID)
	delete(d.streamWaits, conn.ID)
	if rc, ok := d.replication.(replicationController); ok {
		rc.Unregister(conn.ID)
	}
}
