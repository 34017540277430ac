package command

import "github.com/nullbyte-labs/redisgo/internal/resp"

func (d *Dispatcher) registerTxn() {
	d.register(&Handler{
		Name: "MULTI", Arity: 1, IsTxnControl: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			if err := ctx.Conn.Txn.Begin(); err != nil {
				return ErrorResult(err.Error())
			}
			return Success(resp.SimpleString("OK"))
		},
	})

	d.register(&Handler{
		Name: "DISCARD", Arity: 1, IsTxnControl: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			if err := ctx.Conn.Txn.Discard(); err != nil {
				return ErrorResult(err.Error())
			}
			return Success(resp.SimpleString("OK"))
		},
	})

	d.register(&Handler{
		Name: "EXEC", Arity: 1, IsTxnControl: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			queue, err := ctx.Conn.Txn.TakeQueue()
			if err != nil {
				return ErrorResult(err.Error())
			}
			snapshot := ctx.Conn.Txn.WatchedSnapshot()
			ctx.Conn.Txn.ResetWatches()

			for key, ver := range snapshot {
				if ctx.Keyspace.Version(key) != ver {
					return Success(resp.NullArray())
				}
			}

			replies, wakes := ctx.Dispatcher.ExecQueued(ctx.Conn, queue)
			result := Success(resp.Array(replies...))
			result.Wakes = wakes
			return result
		},
	})

	d.register(&Handler{
		Name: "WATCH", Arity: -2, IsTxnControl: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			for _, k := range args[1:] {
				key := string(k)
				if err := ctx.Conn.Txn.Watch(key, ctx.Keyspace.Version(key)); err != nil {
					return ErrorResult(err.Error())
				}
			}
			return Success(resp.SimpleString("OK"))
		},
	})

	d.register(&Handler{
		Name: "UNWATCH", Arity: 1, IsTxnControl: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			if err := ctx.Conn.Txn.Unwatch(); err != nil {
				return ErrorResult(err.Error())
			}
			return Success(resp.SimpleString("OK"))
		},
	})
}
