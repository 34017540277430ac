package command

import (
	"strconv"
	"strings"

	"github.com/nullbyte-labs/redisgo/internal/container/zset"
	"github.com/nullbyte-labs/redisgo/internal/resp"
)

func formatScore(s float64) []byte {
	return []byte(strconv.FormatFloat(s, 'g', -1, 64))
}

func (d *Dispatcher) registerZSet() {
	d.register(&Handler{
		Name: "ZADD", Arity: -4, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			rest := args[2:]
			if len(rest)%2 != 0 {
				return errWrongArgCount("ZADD")
			}
			// Validate every score before touching the key: one bad float
			// rejects the whole command and mutates nothing.
			scores := make([]float64, len(rest)/2)
			for i := 0; i < len(rest); i += 2 {
				score, perr := strconv.ParseFloat(string(rest[i]), 64)
				if perr != nil {
					return ErrorResult("ERR value is not a valid float")
				}
				scores[i/2] = score
			}
			added := 0
			err := ctx.Keyspace.MutateZSet(string(args[1]), func(z *zset.ZSet) {
				for i := 0; i < len(rest); i += 2 {
					if z.Add(string(rest[i+1]), scores[i/2]) {
						added++
					}
				}
			})
			if err != nil {
				return errWrongType()
			}
			return Success(resp.Integer(int64(added)))
		},
	})

	d.register(&Handler{
		Name: "ZCARD", Arity: 2,
		Exec: func(ctx *Context, args [][]byte) Result {
			z, ok, err := ctx.Keyspace.ViewZSet(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.Integer(0))
			}
			return Success(resp.Integer(int64(z.Len())))
		},
	})

	d.register(&Handler{
		Name: "ZRANGE", Arity: -4,
		Exec: func(ctx *Context, args [][]byte) Result {
			start, err1 := strconv.Atoi(string(args[2]))
			end, err2 := strconv.Atoi(string(args[3]))
			if err1 != nil || err2 != nil {
				return errNotInteger()
			}
			withScores := len(args) >= 5 && strings.EqualFold(string(args[4]), "WITHSCORES")

			z, ok, err := ctx.Keyspace.ViewZSet(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.Array())
			}
			members := z.Range(start, end)
			var elems [][]byte
			for _, m := range members {
				elems = append(elems, resp.BulkString([]byte(m.Name)))
				if withScores {
					elems = append(elems, resp.BulkString(formatScore(m.Score)))
				}
			}
			return Success(resp.Array(elems...))
		},
	})

	d.register(&Handler{
		Name: "ZRANK", Arity: 3,
		Exec: func(ctx *Context, args [][]byte) Result {
			z, ok, err := ctx.Keyspace.ViewZSet(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.NullBulkString())
			}
			rank, found := z.Rank(string(args[2]))
			if !found {
				return Success(resp.NullBulkString())
			}
			return Success(resp.Integer(int64(rank)))
		},
	})

	d.register(&Handler{
		Name: "ZREM", Arity: -3, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			n := 0
			err := ctx.Keyspace.MutateZSet(string(args[1]), func(z *zset.ZSet) {
				for _, m := range args[2:] {
					if z.Rem(string(m)) {
						n++
					}
				}
			})
			if err != nil {
				return errWrongType()
			}
			return Success(resp.Integer(int64(n)))
		},
	})

	d.register(&Handler{
		Name: "ZSCORE", Arity: 3,
		Exec: func(ctx *Context, args [][]byte) Result {
			z, ok, err := ctx.Keyspace.ViewZSet(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.NullBulkString())
			}
			score, found := z.Score(string(args[2]))
			if !found {
				return Success(resp.NullBulkString())
			}
			return Success(resp.BulkString(formatScore(score)))
		},
	})
}
