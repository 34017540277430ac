package command

import (
	"strconv"
	"strings"

	"github.com/nullbyte-labs/redisgo/internal/container/zset"
	"github.com/nullbyte-labs/redisgo/internal/geo"
	"github.com/nullbyte-labs/redisgo/internal/resp"
)

func (d *Dispatcher) registerGeo() {
	d.register(&Handler{
		Name: "GEOADD", Arity: -5, IsWrite: true,
		Exec: func(ctx *Context, args [][]byte) Result {
			rest := args[2:]
			if len(rest)%3 != 0 {
				return errWrongArgCount("GEOADD")
			}
			added := 0
			var bad bool
			err := ctx.Keyspace.MutateZSet(string(args[1]), func(z *zset.ZSet) {
				for i := 0; i < len(rest); i += 3 {
					lon, e1 := strconv.ParseFloat(string(rest[i]), 64)
					lat, e2 := strconv.ParseFloat(string(rest[i+1]), 64)
					if e1 != nil || e2 != nil || !geo.Valid(lon, lat) {
						bad = true
						return
					}
					score := float64(geo.Encode(lon, lat))
					if z.Add(string(rest[i+2]), score) {
						added++
					}
				}
			})
			if err != nil {
				return errWrongType()
			}
			if bad {
				return ErrorResult("ERR invalid longitude,latitude pair")
			}
			return Success(resp.Integer(int64(added)))
		},
	})

	d.register(&Handler{
		Name: "GEODIST", Arity: -4,
		Exec: func(ctx *Context, args [][]byte) Result {
			unit := geo.Meters
			if len(args) >= 5 {
				unit = geo.Unit(strings.ToLower(string(args[4])))
				if !unit.Valid() {
					return ErrorResult("ERR unsupported unit provided. please use m, km, ft, mi")
				}
			}
			z, ok, err := ctx.Keyspace.ViewZSet(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.NullBulkString())
			}
			s1, ok1 := z.Score(string(args[2]))
			s2, ok2 := z.Score(string(args[3]))
			if !ok1 || !ok2 {
				return Success(resp.NullBulkString())
			}
			lon1, lat1 := geo.Decode(uint64(s1))
			lon2, lat2 := geo.Decode(uint64(s2))
			meters := geo.HaversineMeters(lon1, lat1, lon2, lat2)
			return Success(resp.BulkString([]byte(strconv.FormatFloat(unit.FromMeters(meters), 'f', 4, 64))))
		},
	})

	d.register(&Handler{
		Name: "GEOPOS", Arity: -3,
		Exec: func(ctx *Context, args [][]byte) Result {
			z, ok, err := ctx.Keyspace.ViewZSet(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			var elems [][]byte
			for _, m := range args[2:] {
				if !ok {
					elems = append(elems, resp.NullArray())
					continue
				}
				score, found := z.Score(string(m))
				if !found {
					elems = append(elems, resp.NullArray())
					continue
				}
				lon, lat := geo.Decode(uint64(score))
				elems = append(elems, resp.Array(
					resp.BulkString([]byte(strconv.FormatFloat(lon, 'f', 17, 64))),
					resp.BulkString([]byte(strconv.FormatFloat(lat, 'f', 17, 64))),
				))
			}
			return Success(resp.Array(elems...))
		},
	})

	d.register(&Handler{
		Name: "GEOSEARCH", Arity: -7,
		Exec: func(ctx *Context, args [][]byte) Result {
			z, ok, err := ctx.Keyspace.ViewZSet(string(args[1]))
			if err != nil {
				return errWrongType()
			}
			if !ok {
				return Success(resp.Array())
			}

			var originLon, originLat float64
			i := 2
			switch strings.ToUpper(string(args[i])) {
			case "FROMMEMBER":
				score, found := z.Score(string(args[i+1]))
				if !found {
					return ErrorResult("ERR could not decode requested zset member")
				}
				originLon, originLat = geo.Decode(uint64(score))
				i += 2
			case "FROMLONLAT":
				lon, e1 := strconv.ParseFloat(string(args[i+1]), 64)
				lat, e2 := strconv.ParseFloat(string(args[i+2]), 64)
				if e1 != nil || e2 != nil {
					return errNotInteger()
				}
				originLon, originLat = lon, lat
				i += 3
			default:
				return ErrorResult("ERR syntax error")
			}

			if i >= len(args) || !strings.EqualFold(string(args[i]), "BYRADIUS") {
				return ErrorResult("ERR syntax error")
			}
			i++
			if i+1 >= len(args) {
				return errWrongArgCount("GEOSEARCH")
			}
			radius, err2 := strconv.ParseFloat(string(args[i]), 64)
			if err2 != nil {
				return errNotInteger()
			}
			unit := geo.Unit(strings.ToLower(string(args[i+1])))
			if !unit.Valid() {
				return ErrorResult("ERR unsupported unit provided. please use m, km, ft, mi")
			}
			radiusMeters := unit.ToMeters(radius)

			var elems [][]byte
			for _, m := range z.ToSlice() {
				lon, lat := geo.Decode(uint64(m.Score))
				if geo.HaversineMeters(originLon, originLat, lon, lat) <= radiusMeters {
					elems = append(elems, resp.BulkString([]byte(m.Name)))
				}
			}
			return Success(resp.Array(elems...))
		},
	})
}
