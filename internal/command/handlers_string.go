package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/nullbyte-labs/redisgo/internal/keyspace"
	"github.com/nullbyte-labs/redisgo/internal/resp"
)

func (d *Dispatcher) registerString() {
	d.register(&Handler{
		Name: "SET", Arity: -3, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			key, val := string(args[1]), args[2]
			policy := keyspace.NeverExpire()
			i := 3
			for i < len(args) {
				switch strings.ToUpper(string(args[i])) {
				case "PX":
					if i+1 >= len(args) {
						return errWrongArgCount("SET")
					}
					ms, err := strconv.ParseInt(string(args[i+1]), 10, 64)
					if err != nil {
						return errNotInteger()
					}
					policy = keyspace.ExpireAfter(ctx.Now(), time.Duration(ms)*time.Millisecond)
					i += 2
				case "EX":
					if i+1 >= len(args) {
						return errWrongArgCount("SET")
					}
					secs, err := strconv.ParseInt(string(args[i+1]), 10, 64)
					if err != nil {
						return errNotInteger()
					}
					policy = keyspace.ExpireAfter(ctx.Now(), time.Duration(secs)*time.Second)
					i += 2
				default:
					return ErrorResult("ERR syntax error")
				}
			}
			ctx.Keyspace.SetString(key, val, policy)
			return Success(resp.SimpleString("OK"))
		},
	})

	d.register(&Handler{
		Name: "GET", Arity: 2,
		Exec: func(ctx *Context, args [][]byte) Result {
			val, ok, err := ctx.Keyspace.GetString(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.NullBulkString())
			}
			return Success(resp.BulkString(val))
		},
	})

	d.register(&Handler{
		Name: "INCR", Arity: 2, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			n, err := ctx.Keyspace.Incr(string(args[1]))
			if err == keyspace.ErrWrongType {
				return errWrongType()
			}
			if err != nil {
				return errNotInteger()
			}
			return Success(resp.Integer(n))
		},
	})
}
