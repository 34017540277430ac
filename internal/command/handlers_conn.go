package command

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/nullbyte-labs/redisgo/internal/keyspace"
	"github.com/nullbyte-labs/redisgo/internal/resp"
	"github.com/nullbyte-labs/redisgo/internal/txn"
)

func (d *Dispatcher) registerConnection() {
	d.register(&Handler{
		Name: "PING", Arity: -1, AllowedInPubSub: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			inPubSub := ctx.PubSub.Total(ctx.Conn.ID) > 0
			if inPubSub {
				msg := []byte{}
				if len(args) > 1 {
					msg = args[1]
				}
				return Success(resp.Array(resp.BulkString([]byte("pong")), resp.BulkString(msg)))
			}
			if len(args) > 1 {
				return Success(resp.BulkString(args[1]))
			}
			return Success(resp.SimpleString("PONG"))
		},
	})

	d.register(&Handler{
		Name: "ECHO", Arity: 2,
		Exec: func(ctx *Context, args [][]byte) Result {
			return Success(resp.BulkString(args[1]))
		},
	})

	d.register(&Handler{
		Name: "QUIT", Arity: -1, AllowedInPubSub: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			r := Success(resp.SimpleString("OK"))
			r.CloseAfterReply = true
			return r
		},
	})

	d.register(&Handler{
		Name: "RESET", Arity: -1, AllowedInPubSub: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			ctx.PubSub.UnsubscribeAll(ctx.Conn.ID)
			ctx.Blocking.Unblock(ctx.Conn.ID)
			ctx.Conn.Txn = txn.NewState()
			return Success(resp.SimpleString("RESET"))
		},
	})

	d.register(&Handler{
		Name: "CLIENT", Arity: -1,
		Exec: func(ctx *Context, args [][]byte) Result {
			if len(args) >= 2 && strings.EqualFold(string(args[1]), "GETNAME") {
				return Success(resp.BulkString(nil))
			}
			return Success(resp.SimpleString("OK"))
		},
	})

	d.register(&Handler{
		Name: "HELLO", Arity: -1,
		Exec: func(ctx *Context, args [][]byte) Result {
			fields := [][]byte{
				resp.BulkString([]byte("server")), resp.BulkString([]byte("redisgo")),
				resp.BulkString([]byte("proto")), resp.Integer(2),
				resp.BulkString([]byte("mode")), resp.BulkString([]byte("standalone")),
				resp.BulkString([]byte("role")), resp.BulkString([]byte("master")),
			}
			return Success(resp.Array(fields...))
		},
	})

	d.register(&Handler{
		Name: "INFO", Arity: -1,
		Exec: func(ctx *Context, args [][]byte) Result {
			info := "# Server\r\nredis_version:redisgo-1.0\r\n# Keyspace\r\ndb0:keys=" +
				strconv.Itoa(ctx.Keyspace.DBSize()) + "\r\n"
			return Success(resp.BulkString([]byte(info)))
		},
	})

	d.register(&Handler{
		Name: "CONFIG", Arity: -2,
		Exec: func(ctx *Context, args [][]byte) Result {
			if !strings.EqualFold(string(args[1]), "GET") {
				return ErrorResult("ERR CONFIG supports only GET in this server")
			}
			if len(args) < 3 {
				return errWrongArgCount("CONFIG")
			}
			// No tunable parameters are modeled; every param reports empty.
			return Success(resp.Array(resp.BulkString(args[2]), resp.BulkString(nil)))
		},
	})

	d.register(&Handler{
		Name: "METRICS", Arity: -1,
		Exec: func(ctx *Context, args [][]byte) Result {
			return Success(resp.BulkString([]byte("# metrics export is a thin collaborator; see /metrics over HTTP\r\n")))
		},
	})

	d.register(&Handler{
		Name: "KEYS", Arity: 2,
		Exec: func(ctx *Context, args [][]byte) Result {
			keys := ctx.Keyspace.Keys(string(args[1]))
			elems := make([][]byte, len(keys))
			for i, k := range keys {
				elems[i] = resp.BulkString([]byte(k))
			}
			return Success(resp.Array(elems...))
		},
	})

	d.register(&Handler{
		Name: "TYPE", Arity: 2,
		Exec: func(ctx *Context, args [][]byte) Result {
			return Success(resp.SimpleString(string(ctx.Keyspace.Type(string(args[1])))))
		},
	})

	d.register(&Handler{
		Name: "DBSIZE", Arity: 1,
		Exec: func(ctx *Context, args [][]byte) Result {
			return Success(resp.Integer(int64(ctx.Keyspace.DBSize())))
		},
	})

	d.register(&Handler{
		Name: "EXISTS", Arity: -2,
		Exec: func(ctx *Context, args [][]byte) Result {
			n := 0
			for _, k := range args[1:] {
				if ctx.Keyspace.Exists(string(k)) {
					n++
				}
			}
			return Success(resp.Integer(int64(n)))
		},
	})

	d.register(&Handler{
		Name: "DEL", Arity: -2, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			keys := make([]string, len(args)-1)
			for i, k := range args[1:] {
				keys[i] = string(k)
			}
			return Success(resp.Integer(int64(ctx.Keyspace.Del(keys...))))
		},
	})

	d.register(&Handler{
		Name: "EXPIRE", Arity: 3, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			secs, err := strconv.ParseInt(string(args[2]), 10, 64)
			if err != nil {
				return errNotInteger()
			}
			ok := ctx.Keyspace.SetExpiry(string(args[1]), keyspace.ExpireAfter(ctx.Now(), time.Duration(secs)*time.Second))
			return Success(resp.Integer(boolToInt(ok)))
		},
	})

	d.register(&Handler{
		Name: "PEXPIRE", Arity: 3, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			ms, err := strconv.ParseInt(string(args[2]), 10, 64)
			if err != nil {
				return errNotInteger()
			}
			ok := ctx.Keyspace.SetExpiry(string(args[1]), keyspace.ExpireAfter(ctx.Now(), time.Duration(ms)*time.Millisecond))
			return Success(resp.Integer(boolToInt(ok)))
		},
	})

	d.register(&Handler{
		Name: "TTL", Arity: 2,
		Exec: func(ctx *Context, args [][]byte) Result {
			ttl, hasTTL, ok := ctx.Keyspace.TTL(string(args[1]))
			if !ok {
				return Success(resp.Integer(-2))
			}
			if !hasTTL {
				return Success(resp.Integer(-1))
			}
			return Success(resp.Integer(int64(ttl / time.Second)))
		},
	})

	d.register(&Handler{
		Name: "PTTL", Arity: 2,
		Exec: func(ctx *Context, args [][]byte) Result {
			ttl, hasTTL, ok := ctx.Keyspace.TTL(string(args[1]))
			if !ok {
				return Success(resp.Integer(-2))
			}
			if !hasTTL {
				return Success(resp.Integer(-1))
			}
			return Success(resp.Integer(int64(ttl / time.Millisecond)))
		},
	})

	d.register(&Handler{
		Name: "PERSIST", Arity: 2, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			return Success(resp.Integer(boolToInt(ctx.Keyspace.Persist(string(args[1])))))
		},
	})

	d.register(&Handler{
		Name: "DEBUG", Arity: -2,
		Exec: func(ctx *Context, args [][]byte) Result {
			sub := strings.ToUpper(string(args[1]))
			switch sub {
			case "OBJECT":
				if len(args) < 3 {
					return errWrongArgCount("DEBUG")
				}
				kind := ctx.Keyspace.Type(string(args[2]))
				return Success(resp.SimpleString(fmt.Sprintf("kind=%s", kind)))
			case "JSONDUMP":
				if len(args) < 3 {
					return errWrongArgCount("DEBUG")
				}
				dump := spew.Sdump(string(args[2]), ctx.Keyspace.Type(string(args[2])))
				return Success(resp.BulkString([]byte(dump)))
			default:
				return ErrorResult("ERR unsupported DEBUG subcommand")
			}
		},
	})
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
