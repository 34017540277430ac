package keyspace

import (
	"github.com/nullbyte-labs/redisgo/internal/container/quicklist"
	"github.com/nullbyte-labs/redisgo/internal/container/stream"
	"github.com/nullbyte-labs/redisgo/internal/container/zset"
)

// Kind names the tagged-union variant stored under a key (spec §3: "exactly
// one variant per key").
type Kind string

const (
	KindNone   Kind = "none"
	KindString Kind = "string"
	KindList   Kind = "list"
	KindStream Kind = "stream"
	KindZSet   Kind = "zset"
)

// Value is the tagged-union interface every stored variant implements.
// Modeled as a sum type, not an inheritance hierarchy, per spec §9.
type Value interface {
	Kind() Kind
}

// StringValue is the String variant: a byte-string payload.
type StringValue struct{ Bytes []byte }

func (StringValue) Kind() Kind { return KindString }

// ListValue is the List (QuickList) variant.
type ListValue struct{ List *quicklist.QuickList }

func (ListValue) Kind() Kind { return KindList }

// StreamValue is the Stream variant.
type StreamValue struct{ Stream *stream.Stream }

func (StreamValue) Kind() Kind { return KindStream }

// ZSetValue is the sorted-set variant, also used to back Geospatial values
// (spec §3: "stored as a sorted set where score is a 52-bit interleaved
// geohash").
type ZSetValue struct{ ZSet *zset.ZSet }

func (ZSetValue) Kind() Kind { return KindZSet }
