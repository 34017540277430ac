// Package command implements the registry and dispatcher from spec §4.7:
// name-to-handler resolution with aliases, the five dispatch gates
// (pub/sub, transaction, validation, execute, post-execution), and the
// command handlers themselves.
package command

import (
	"fmt"

	"github.com/nullbyte-labs/redisgo/internal/resp"
)

// ResultKind tags the shape of a Handler's outcome (spec §4.7 step 4).
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultMultiSuccess
	ResultError
	ResultAsync
)

// Result is a handler's outcome. Exactly one of Bytes/Multi is meaningful
// depending on Kind; ResultAsync carries neither — the handler has already
// parked the connection with the blocking registry.
type Result struct {
	Kind  ResultKind
	Bytes []byte
	Multi [][]byte
	// CloseAfterReply tells the event loop to close the connection once
	// this reply has been flushed (QUIT).
	CloseAfterReply bool
	// Wakes carries replies this command's mutation satisfied for OTHER
	// parked connections (spec §4.9 on-data-added fan-out): a push that
	// wakes a blocked client produces that client's reply here, for the
	// event loop to deliver on its own connection.
	Wakes []Wake
}

// Wake is one reply owed to a previously blocked connection.
type Wake struct {
	ConnID uint64
	Reply  []byte
}

// Success wraps a single already-encoded RESP reply.
func Success(b []byte) Result { return Result{Kind: ResultSuccess, Bytes: b} }

// MultiSuccess wraps several already-encoded replies emitted in order
// (e.g. one ack per channel in a multi-channel SUBSCRIBE).
func MultiSuccess(bs [][]byte) Result { return Result{Kind: ResultMultiSuccess, Multi: bs} }

// ErrorResult wraps an error reply. msg should carry its taxonomy prefix
// ("ERR ...", "WRONGTYPE ...", spec §7).
func ErrorResult(msg string) Result { return Result{Kind: ResultError, Bytes: resp.Error(msg)} }

// Errorf is ErrorResult with fmt.Sprintf formatting.
func Errorf(format string, args ...any) Result { return ErrorResult(fmt.Sprintf(format, args...)) }

// Async reports that the handler parked the connection (spec §4.9); no
// reply is sent now.
func Async() Result { return Result{Kind: ResultAsync} }

// --- error taxonomy (spec §7) -------------------------------------------------

func errUnknownCommand(name string) Result {
	return Errorf("ERR unknown command '%s'", name)
}

func errWrongArgCount(name string) Result {
	return Errorf("ERR wrong number of arguments for '%s' command", name)
}

func errNotInteger() Result {
	return ErrorResult("ERR value is not an integer or out of range")
}

func errInvalidTimeout() Result {
	return ErrorResult("ERR timeout is not a float or negative")
}

func errInvalidStreamID() Result {
	return ErrorResult("ERR Invalid stream ID specified as stream command argument")
}

func errWrongType() Result {
	return ErrorResult("WRONGTYPE Operation against a key holding the wrong kind of value")
}

func errNotAllowedInPubSub() Result {
	return ErrorResult("ERR only (P|S)UBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context")
}

func errBlockingInTransaction() Result {
	return ErrorResult("ERR BLPOP and other blocking commands are not allowed in transactions")
}

// --- handler descriptor --------------------------------------------------------

// Handler is one command's data-driven descriptor (spec §9: "prefer
// data-driven declaration over subclassing").
type Handler struct {
	Name string
	// Arity: positive N means exactly N args (including the command
	// name); negative N means at least -N args. Mirrors real Redis's
	// arity convention.
	Arity int
	// IsWrite marks a command whose successful execution the dispatcher
	// journals to replicas. Waking blocked clients is done by the push
	// and XADD handlers themselves, not through this flag.
	IsWrite bool
	// IsBlocking marks a command that may return ResultAsync.
	IsBlocking bool
	// AllowedInPubSub marks a command permitted while the connection is
	// in pub/sub mode (spec §4.7 gate 1).
	AllowedInPubSub bool
	// IsTxnControl marks MULTI/EXEC/DISCARD/WATCH/UNWATCH, which bypass
	// the queuing gate even while Queuing (spec §4.7 gate 2).
	IsTxnControl bool
	Exec         func(ctx *Context, args [][]byte) Result
}

func (h *Handler) checkArity(args [][]byte) bool {
	if h.Arity >= 0 {
		return len(args) == h.Arity
	}
	return len(args) >= -h.Arity
}
