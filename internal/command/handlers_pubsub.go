package command

import "github.com/nullbyte-labs/redisgo/internal/resp"

func subAck(kind, name string, count int) []byte {
	return resp.Array(
		resp.BulkString([]byte(kind)),
		resp.BulkString([]byte(name)),
		resp.Integer(int64(count)),
	)
}

func (d *Dispatcher) registerPubSub() {
	d.register(&Handler{
		Name: "SUBSCRIBE", Arity: -2, AllowedInPubSub: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			acks := make([][]byte, 0, len(args)-1)
			for _, ch := range args[1:] {
				n := ctx.PubSub.Subscribe(ctx.Conn.ID, string(ch))
				acks = append(acks, subAck("subscribe", string(ch), n))
			}
			return MultiSuccess(acks)
		},
	})

	d.register(&Handler{
		Name: "PSUBSCRIBE", Arity: -2, AllowedInPubSub: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			acks := make([][]byte, 0, len(args)-1)
			for _, pat := range args[1:] {
				n := ctx.PubSub.PSubscribe(ctx.Conn.ID, string(pat))
				acks = append(acks, subAck("psubscribe", string(pat), n))
			}
			return MultiSuccess(acks)
		},
	})

	d.register(&Handler{
		Name: "UNSUBSCRIBE", Arity: -1, AllowedInPubSub: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			var channels []string
			for _, c := range args[1:] {
				channels = append(channels, string(c))
			}
			if len(channels) == 0 {
				channels = ctx.PubSub.ChannelsOf(ctx.Conn.ID)
			}
			if len(channels) == 0 {
				return MultiSuccess([][]byte{subAck("unsubscribe", "", 0)})
			}
			acks := make([][]byte, 0, len(channels))
			for _, ch := range channels {
				n := ctx.PubSub.Unsubscribe(ctx.Conn.ID, ch)
				acks = append(acks, subAck("unsubscribe", ch, n))
			}
			return MultiSuccess(acks)
		},
	})

	d.register(&Handler{
		Name: "PUNSUBSCRIBE", Arity: -1, AllowedInPubSub: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			var patterns []string
			for _, p := range args[1:] {
				patterns = append(patterns, string(p))
			}
			if len(patterns) == 0 {
				patterns = ctx.PubSub.PatternsOf(ctx.Conn.ID)
			}
			if len(patterns) == 0 {
				return MultiSuccess([][]byte{subAck("punsubscribe", "", 0)})
			}
			acks := make([][]byte, 0, len(patterns))
			for _, pat := range patterns {
				n := ctx.PubSub.PUnsubscribe(ctx.Conn.ID, pat)
				acks = append(acks, subAck("punsubscribe", pat, n))
			}
			return MultiSuccess(acks)
		},
	})

	d.register(&Handler{
		Name: "PUBLISH", Arity: 3,
		Exec: func(ctx *Context, args [][]byte) Result {
			channel, msg := string(args[1]), args[2]
			recipients := ctx.PubSub.Publish(channel)
			result := Success(resp.Integer(int64(len(recipients))))
			for _, r := range recipients {
				var reply []byte
				if r.Pattern == "" {
					reply = resp.Array(resp.BulkString([]byte("message")), resp.BulkString([]byte(channel)), resp.BulkString(msg))
				} else {
					reply = resp.Array(resp.BulkString([]byte("pmessage")), resp.BulkString([]byte(r.Pattern)), resp.BulkString([]byte(channel)), resp.BulkString(msg))
				}
				result.Wakes = append(result.Wakes, Wake{ConnID: r.ConnID, Reply: reply})
			}
			return result
		},
	})
}

