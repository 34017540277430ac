package command

import (
	"strconv"
	"time"

	"github.com/nullbyte-labs/redisgo/internal/container/quicklist"
	"github.com/nullbyte-labs/redisgo/internal/resp"
)

// pushHandler builds LPUSH/RPUSH's shared handler (spec §4.7: "LPUSH/RPUSH
// share a handler; the operation name is preserved in the context") —
// expressed here as one factory producing a distinct *Handler per
// direction, since each needs its own registered Name/Arity and neither
// literally reuses the other's bytecode.
func pushHandler(name string, left bool) *Handler {
	return &Handler{
		Name: name, Arity: -3, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			key := string(args[1])
			values := args[2:]
			var n int
			err := ctx.Keyspace.MutateList(key, func(l *quicklist.QuickList) {
				for _, v := range values {
					if left {
						l.PushLeft(v)
					} else {
						l.PushRight(v)
					}
				}
				n = l.Len()
			})
			if err != nil {
				return errWrongType()
			}
			result := Success(resp.Integer(int64(n)))
			result.Wakes = wakeListWaiters(ctx, key)
			return result
		},
	}
}

// wakeListWaiters pops for every FIFO-first waiter blocked on key while
// data remains (spec §4.9: "repeat while both a waiter exists and data
// remains").
func wakeListWaiters(ctx *Context, key string) []Wake {
	var wakes []Wake
	for {
		connID, ok := ctx.Blocking.WakeOne(key)
		if !ok {
			break
		}
		var val []byte
		var popped bool
		ctx.Keyspace.MutateList(key, func(l *quicklist.QuickList) {
			val, popped = l.PopLeft()
		})
		if !popped {
			break
		}
		ctx.Blocking.Unblock(connID)
		reply := resp.Array(resp.BulkString([]byte(key)), resp.BulkString(val))
		wakes = append(wakes, Wake{ConnID: connID, Reply: reply})
	}
	return wakes
}

func (d *Dispatcher) registerList() {
	d.register(pushHandler("LPUSH", true))
	d.register(pushHandler("RPUSH", false))

	d.register(&Handler{
		Name: "LPOP", Arity: -2, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result { return popHandler(ctx, args, true) },
	})
	d.register(&Handler{
		Name: "RPOP", Arity: -2, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result { return popHandler(ctx, args, false) },
	})

	d.register(&Handler{
		Name: "LLEN", Arity: 2,
		Exec: func(ctx *Context, args [][]byte) Result {
			list, ok, err := ctx.Keyspace.ViewList(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.Integer(0))
			}
			return Success(resp.Integer(int64(list.Len())))
		},
	})

	d.register(&Handler{
		Name: "LRANGE", Arity: 4,
		Exec: func(ctx *Context, args [][]byte) Result {
			start, err1 := strconv.Atoi(string(args[2]))
			end, err2 := strconv.Atoi(string(args[3]))
			if err1 != nil || err2 != nil {
				return errNotInteger()
			}
			list, ok, err := ctx.Keyspace.ViewList(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.Array())
			}
			return Success(resp.BulkStringArray(list.Range(start, end)))
		},
	})

	d.register(&Handler{
		Name: "BLPOP", Arity: -3, IsBlocking: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			keys := make([]string, len(args)-2)
			for i, k := range args[1 : len(args)-1] {
				keys[i] = string(k)
			}
			timeout, err := strconv.ParseFloat(string(args[len(args)-1]), 64)
			if err != nil || timeout < 0 {
				return errInvalidTimeout()
			}

			for _, key := range keys {
				var val []byte
				var popped bool
				err := ctx.Keyspace.MutateList(key, func(l *quicklist.QuickList) {
					val, popped = l.PopLeft()
				})
				if err != nil {
					return errWrongType()
				}
				if popped {
					return Success(resp.Array(resp.BulkString([]byte(key)), resp.BulkString(val)))
				}
			}

			hasDeadline := timeout > 0
			var deadline time.Time
			if hasDeadline {
				deadline = ctx.Now().Add(time.Duration(timeout * float64(time.Second)))
			}
			ctx.Blocking.Block(ctx.Conn.ID, keys, deadline, hasDeadline)
			return Async()
		},
	})
}

func popHandler(ctx *Context, args [][]byte, left bool) Result {
	key := string(args[1])
	count := 1
	multi := false
	if len(args) == 3 {
		n, err := strconv.Atoi(string(args[2]))
		if err != nil || n < 0 {
			return errNotInteger()
		}
		count = n
		multi = true
	} else if len(args) > 3 {
		return errWrongArgCount("LPOP")
	}

	list, ok, err := ctx.Keyspace.ViewList(key)
	if err != nil {
		return errWrongType()
	}
	if !ok || list.Len() == 0 {
		if multi {
			return Success(resp.NullArray())
		}
		return Success(resp.NullBulkString())
	}

	var popped [][]byte
	ctx.Keyspace.MutateList(key, func(l *quicklist.QuickList) {
		if left {
			popped = l.PopLeftN(count)
		} else {
			popped = l.PopRightN(count)
		}
	})

	if !multi {
		if len(popped) == 0 {
			return Success(resp.NullBulkString())
		}
		return Success(resp.BulkString(popped[0]))
	}
	return Success(resp.BulkStringArray(popped))
}
