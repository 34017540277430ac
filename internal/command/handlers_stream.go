package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/nullbyte-labs/redisgo/internal/container/stream"
	"github.com/nullbyte-labs/redisgo/internal/resp"
)

// parseStreamID parses an explicit "ms-seq" or bare "ms" (seq defaults to
// 0) textual ID.
func parseStreamID(s string) (stream.ID, bool) {
	parts := strings.SplitN(s, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return stream.ID{}, false
	}
	if len(parts) == 1 {
		return stream.ID{Ms: ms}, true
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return stream.ID{}, false
	}
	return stream.ID{Ms: ms, Seq: seq}, true
}

func parseRangeBound(s string, isStart bool) (stream.ID, bool) {
	switch s {
	case "-":
		return stream.Min, true
	case "+":
		return stream.Max, true
	default:
		return parseStreamID(s)
	}
}

func encodeStreamEntries(entries []stream.Entry) []byte {
	elems := make([][]byte, len(entries))
	for i, e := range entries {
		fields := make([][]byte, 0, len(e.Fields)*2)
		for _, f := range e.Fields {
			fields = append(fields, resp.BulkString(f.Name), resp.BulkString(f.Value))
		}
		elems[i] = resp.Array(resp.BulkString([]byte(e.ID.String())), resp.Array(fields...))
	}
	return resp.Array(elems...)
}

func encodeXReadReply(keys []string, perKey [][]stream.Entry) []byte {
	var elems [][]byte
	for i, k := range keys {
		if len(perKey[i]) == 0 {
			continue
		}
		elems = append(elems, resp.Array(resp.BulkString([]byte(k)), encodeStreamEntries(perKey[i])))
	}
	if elems == nil {
		return resp.NullArray()
	}
	return resp.Array(elems...)
}

func nowMs(ctx *Context) uint64 { return uint64(ctx.Now().UnixMilli()) }

func (d *Dispatcher) registerStream() {
	d.register(&Handler{
		Name: "XADD", Arity: -5, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			key := string(args[1])
			idArg := string(args[2])
			fieldArgs := args[3:]
			if len(fieldArgs)%2 != 0 {
				return errWrongArgCount("XADD")
			}
			fields := make([]stream.Field, len(fieldArgs)/2)
			for i := 0; i < len(fields); i++ {
				fields[i] = stream.Field{Name: fieldArgs[2*i], Value: fieldArgs[2*i+1]}
			}

			var id stream.ID
			var genErr error
			err := ctx.Keyspace.MutateStream(key, func(s *stream.Stream) {
				switch {
				case idArg == "*":
					id = s.NextAuto(nowMs(ctx))
				case strings.HasSuffix(idArg, "-*"):
					ms, perr := strconv.ParseUint(strings.TrimSuffix(idArg, "-*"), 10, 64)
					if perr != nil {
						genErr = errInvalidStreamIDSentinel
						return
					}
					id, genErr = s.NextForMs(ms)
				default:
					parsed, ok := parseStreamID(idArg)
					if !ok {
						genErr = errInvalidStreamIDSentinel
						return
					}
					id = parsed
					genErr = s.ValidateExplicit(id)
				}
				if genErr == nil {
					s.Append(id, fields)
				}
			})
			if err != nil {
				return errWrongType()
			}
			switch genErr {
			case nil:
			case errInvalidStreamIDSentinel:
				return errInvalidStreamID()
			case stream.ErrIDZero:
				return ErrorResult("ERR The ID specified in XADD must be greater than 0-0")
			case stream.ErrIDTooSmall, stream.ErrIDExists:
				return ErrorResult("ERR The ID specified in XADD is equal or smaller than the target stream top item")
			default:
				return Errorf("ERR %s", genErr)
			}
			result := Success(resp.BulkString([]byte(id.String())))
			result.Wakes = ctx.Dispatcher.WakeStreamWaiters(key)
			return result
		},
	})

	d.register(&Handler{
		Name: "XRANGE", Arity: -4,
		Exec: func(ctx *Context, args [][]byte) Result {
			start, ok1 := parseRangeBound(string(args[2]), true)
			end, ok2 := parseRangeBound(string(args[3]), false)
			if !ok1 || !ok2 {
				return errInvalidStreamID()
			}
			count := -1
			if len(args) >= 6 && strings.EqualFold(string(args[4]), "COUNT") {
				n, err := strconv.Atoi(string(args[5]))
				if err != nil {
					return errNotInteger()
				}
				count = n
			}
			s, ok, err := ctx.Keyspace.ViewStream(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.Array())
			}
			return Success(encodeStreamEntries(s.Range(start, end, count)))
		},
	})

	d.register(&Handler{
		Name: "XREAD", Arity: -4,
		Exec: func(ctx *Context, args [][]byte) Result {
			i := 1
			count := -1
			var blockMs int64 = -1
			for i < len(args) {
				switch strings.ToUpper(string(args[i])) {
				case "COUNT":
					n, err := strconv.Atoi(string(args[i+1]))
					if err != nil {
						return errNotInteger()
					}
					count = n
					i += 2
				case "BLOCK":
					ms, err := strconv.ParseInt(string(args[i+1]), 10, 64)
					if err != nil {
						return errInvalidTimeout()
					}
					blockMs = ms
					i += 2
				case "STREAMS":
					i++
					goto streamsParsed
				default:
					return ErrorResult("ERR syntax error")
				}
			}
		streamsParsed:
			rest := args[i:]
			if len(rest)%2 != 0 || len(rest) == 0 {
				return ErrorResult("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
			}
			n := len(rest) / 2
			keys := make([]string, n)
			lastIDs := make([]stream.ID, n)
			for k := 0; k < n; k++ {
				keys[k] = string(rest[k])
				idTok := string(rest[n+k])
				if idTok == "$" {
					s, ok, _ := ctx.Keyspace.ViewStream(keys[k])
					if ok {
						lastIDs[k] = s.LastID()
					}
					continue
				}
				id, ok := parseStreamID(idTok)
				if !ok {
					return errInvalidStreamID()
				}
				lastIDs[k] = id
			}

			perKey := make([][]stream.Entry, n)
			any := false
			for k := range keys {
				s, ok, err := ctx.Keyspace.ViewStream(keys[k])
				if err != nil {
					return errWrongType()
				}
				if !ok {
					continue
				}
				perKey[k] = s.After(lastIDs[k], count)
				if len(perKey[k]) > 0 {
					any = true
				}
			}
			if any || blockMs < 0 {
				return Success(encodeXReadReply(keys, perKey))
			}

			hasDeadline := blockMs > 0
			var deadline time.Time
			if hasDeadline {
				deadline = ctx.Now().Add(time.Duration(blockMs) * time.Millisecond)
			}
			ctx.Dispatcher.BlockStream(ctx.Conn.ID, keys, lastIDs, count, deadline, hasDeadline)
			return Async()
		},
	})
}

var errInvalidStreamIDSentinel = streamIDError{}

type streamIDError struct{}

func (streamIDError) Error() string { return "invalid stream ID" }
