package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nullbyte-labs/redisgo/internal/resp"
)

// replicationController is the richer surface REPLCONF/PSYNC/WAIT need
// beyond the write journal's ReplicationSink. internal/replication's
// Master implements it; a plain noopSink (no --replicaof/no replicas
// configured) does not, so these handlers degrade to a clear error
// instead of a nil-pointer panic.
type replicationController interface {
	ReplicationSink
	RegisterReplica(connID uint64, listeningPort, capa string)
	HandleACK(connID uint64, offset int64) []Wake
	FullResync(connID uint64) (replid string, offset int64)
	CurrentOffset() int64
	AckedAtLeast(offset int64) int
	Wait(connID uint64, numReplicas int, deadline time.Time, hasDeadline bool) (satisfiedNow int, parked bool)
	Unregister(connID uint64)
}

func (d *Dispatcher) registerReplication() {
	d.register(&Handler{
		Name: "REPLCONF", Arity: -2,
		Exec: func(ctx *Context, args [][]byte) Result {
			rc, ok := ctx.Replication.(replicationController)
			if !ok {
				return ErrorResult("ERR replication is not enabled on this server")
			}
			sub := strings.ToUpper(string(args[1]))
			switch sub {
			case "LISTENING-PORT":
				if len(args) != 3 {
					return errWrongArgCount("REPLCONF")
				}
				rc.RegisterReplica(ctx.Conn.ID, string(args[2]), "")
				return Success(resp.SimpleString("OK"))
			case "CAPA":
				return Success(resp.SimpleString("OK"))
			case "ACK":
				if len(args) != 3 {
					return errWrongArgCount("REPLCONF")
				}
				offset, err := strconv.ParseInt(string(args[2]), 10, 64)
				if err != nil {
					return errNotInteger()
				}
				result := Result{Kind: ResultSuccess}
				result.Wakes = rc.HandleACK(ctx.Conn.ID, offset)
				return result
			case "GETACK":
				offset := rc.CurrentOffset()
				return Success(resp.Array(
					resp.BulkString([]byte("REPLCONF")),
					resp.BulkString([]byte("ACK")),
					resp.BulkString([]byte(strconv.FormatInt(offset, 10))),
				))
			default:
				return Success(resp.SimpleString("OK"))
			}
		},
	})

	d.register(&Handler{
		Name: "PSYNC", Arity: 3,
		Exec: func(ctx *Context, args [][]byte) Result {
			rc, ok := ctx.Replication.(replicationController)
			if !ok {
				return ErrorResult("ERR replication is not enabled on this server")
			}
			replid, offset := rc.FullResync(ctx.Conn.ID)
			ctx.Conn.IsReplica = true
			header := resp.SimpleString(fmt.Sprintf("FULLRESYNC %s %d", replid, offset))
			rdb := []byte("$0\r\n") // no on-disk RDB format in scope; empty snapshot payload, no trailing CRLF
			return Success(append(header, rdb...))
		},
	})

	d.register(&Handler{
		Name: "WAIT", Arity: 3, IsBlocking: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			rc, ok := ctx.Replication.(replicationController)
			if !ok {
				return Success(resp.Integer(0))
			}
			numReplicas, err1 := strconv.Atoi(string(args[1]))
			timeoutMs, err2 := strconv.ParseInt(string(args[2]), 10, 64)
			if err1 != nil || err2 != nil {
				return errNotInteger()
			}
			if timeoutMs == 0 {
				return Success(resp.Integer(int64(rc.AckedAtLeast(rc.CurrentOffset()))))
			}
			count, parked := rc.Wait(ctx.Conn.ID, numReplicas, ctx.Now().Add(time.Duration(timeoutMs)*time.Millisecond), true)
			if !parked {
				return Success(resp.Integer(int64(count)))
			}
			return Async()
		},
	})
}
