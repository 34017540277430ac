// Package keyspace implements the concurrent, typed keyspace from spec
// §3/§4.2: a key→tagged-value mapping with lazy per-entry expiry,
// heterogeneous value containers, and Redis glob key search.
//
// Concurrency model: every connection's goroutine in internal/eventloop,
// the replication client, and the scheduler's expiry sweep (on its own
// goroutine) all call into the same Keyspace. It serializes every
// operation behind a single mutex — the same "global serialization
// removes read/write TOCTOU" discipline the teacher's DataStore
// documents.
package keyspace

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nullbyte-labs/redisgo/internal/container/quicklist"
	"github.com/nullbyte-labs/redisgo/internal/container/stream"
	"github.com/nullbyte-labs/redisgo/internal/container/zset"

	"sync"
)

// ErrWrongType is returned when an operation targets a key holding a
// different kind of value (spec §7: WRONGTYPE).
var ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

type entry struct {
	value  Value
	expiry ExpiryPolicy
}

// Keyspace is the server's single key→value store.
type Keyspace struct {
	mu       sync.Mutex
	data     map[string]*entry
	versions map[string]uint64 // per-key modification counter, never reset by deletion (spec §4.8)
	log      *zap.Logger
	now      func() time.Time
}

// New returns an empty Keyspace.
func New(log *zap.Logger) *Keyspace {
	if log == nil {
		log = zap.NewNop()
	}
	return &Keyspace{
		data:     make(map[string]*entry),
		versions: make(map[string]uint64),
		log:      log.Named("keyspace"),
		now:      time.Now,
	}
}

// touch bumps key's modification version. Must be called with mu held,
// for every mutation (create, update, delete, expiry eviction).
func (k *Keyspace) touch(key string) {
	k.versions[key]++
}

// Version returns key's current modification counter, the snapshot WATCH
// captures (spec §4.8).
func (k *Keyspace) Version(key string) uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.versions[key]
}

// expireIfNeeded evicts key if its entry has expired. Must be called with
// mu held. Returns the live entry, or nil if absent/expired.
func (k *Keyspace) expireIfNeeded(key string) *entry {
	e, ok := k.data[key]
	if !ok {
		return nil
	}
	if e.expiry.IsExpired(k.now()) {
		delete(k.data, key)
		k.touch(key)
		return nil
	}
	return e
}

// Type returns the variant name stored at key, or "none" if absent/expired
// (spec §8 invariant 1).
func (k *Keyspace) Type(key string) Kind {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	if e == nil {
		return KindNone
	}
	return e.value.Kind()
}

// Exists reports whether key is present and unexpired.
func (k *Keyspace) Exists(key string) bool {
	return k.Type(key) != KindNone
}

// Del removes the given keys, returning the count actually removed.
func (k *Keyspace) Del(keys ...string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, key := range keys {
		if k.expireIfNeeded(key) == nil {
			continue
		}
		delete(k.data, key)
		k.touch(key)
		n++
	}
	return n
}

// DBSize returns the count of live (non-expired) keys (SPEC_FULL.md DBSIZE).
func (k *Keyspace) DBSize() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	n := 0
	for key, e := range k.data {
		if e.expiry.IsExpired(now) {
			continue
		}
		_ = key
		n++
	}
	return n
}

// Keys returns every live key matching pattern (spec §4.2 Redis glob).
func (k *Keyspace) Keys(pattern string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	var out []string
	for key, e := range k.data {
		if e.expiry.IsExpired(now) {
			continue
		}
		if GlobMatch(pattern, key) {
			out = append(out, key)
		}
	}
	return out
}

// SetExpiry installs an expiry policy on an existing key (EXPIRE/PEXPIRE).
// Returns false if the key doesn't exist.
func (k *Keyspace) SetExpiry(key string, policy ExpiryPolicy) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	if e == nil {
		return false
	}
	e.expiry = policy
	k.touch(key)
	return true
}

// Persist clears any expiry on key. Returns false if the key doesn't exist
// or already had no expiry.
func (k *Keyspace) Persist(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	if e == nil {
		return false
	}
	if _, ok := e.expiry.Deadline(); !ok {
		return false
	}
	e.expiry = NeverExpire()
	k.touch(key)
	return true
}

// TTL reports the remaining time-to-live for key. ok is false if the key
// doesn't exist; hasTTL is false if the key exists but never expires.
func (k *Keyspace) TTL(key string) (ttl time.Duration, hasTTL bool, ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	if e == nil {
		return 0, false, false
	}
	ttl, hasTTL = e.expiry.TTL(k.now())
	return ttl, hasTTL, true
}

// --- expiry sweep ------------------------------------------------------------

// SweepExpired evicts every currently-expired key, for the scheduler's
// periodic tick (spec §4.12). Returns the keys evicted.
func (k *Keyspace) SweepExpired(now time.Time) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	var evicted []string
	for key, e := range k.data {
		if e.expiry.IsExpired(now) {
			delete(k.data, key)
			k.touch(key)
			evicted = append(evicted, key)
		}
	}
	return evicted
}

// --- string ------------------------------------------------------------------

// GetString returns the string value at key. ok is false if absent/expired.
// Returns ErrWrongType if key holds a different kind.
func (k *Keyspace) GetString(key string) (val []byte, ok bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	if e == nil {
		return nil, false, nil
	}
	sv, isStr := e.value.(StringValue)
	if !isStr {
		return nil, false, ErrWrongType
	}
	return sv.Bytes, true, nil
}

// SetString stores val at key with the given expiry policy, replacing
// whatever was there (spec §3: "reassignment replaces atomically").
func (k *Keyspace) SetString(key string, val []byte, policy ExpiryPolicy) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = &entry{value: StringValue{Bytes: val}, expiry: policy}
	k.touch(key)
}

// Incr parses the string at key as a base-10 integer, increments it by 1,
// and stores the result (creating the key at 0 first if absent).
func (k *Keyspace) Incr(key string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	var n int64
	if e != nil {
		sv, isStr := e.value.(StringValue)
		if !isStr {
			return 0, ErrWrongType
		}
		parsed, err := parseInt(sv.Bytes)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	k.data[key] = &entry{value: StringValue{Bytes: []byte(fmt.Sprintf("%d", n))}}
	k.touch(key)
	return n, nil
}

func parseInt(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, errors.New("ERR value is not an integer or out of range")
	}
	neg := false
	i := 0
	if b[0] == '-' || b[0] == '+' {
		neg = b[0] == '-'
		i = 1
	}
	if i == len(b) {
		return 0, errors.New("ERR value is not an integer or out of range")
	}
	var n int64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, errors.New("ERR value is not an integer or out of range")
		}
		n = n*10 + int64(b[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, nil
}

// --- list --------------------------------------------------------------------

// MutateList runs fn against the QuickList at key, creating an empty one
// first if the key is absent, and removing the key entirely if fn leaves
// the list empty (spec §3: "emptying a collection removes the key
// entirely"). Returns ErrWrongType if key holds a different kind.
func (k *Keyspace) MutateList(key string, fn func(*quicklist.QuickList)) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	var list *quicklist.QuickList
	if e == nil {
		list = quicklist.New()
	} else {
		lv, ok := e.value.(ListValue)
		if !ok {
			return ErrWrongType
		}
		list = lv.List
	}
	fn(list)
	k.touch(key)
	if list.Len() == 0 {
		delete(k.data, key)
		return nil
	}
	k.data[key] = &entry{value: ListValue{List: list}}
	return nil
}

// ViewList returns the QuickList at key without creating it. ok is false
// if absent/expired.
func (k *Keyspace) ViewList(key string) (list *quicklist.QuickList, ok bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	if e == nil {
		return nil, false, nil
	}
	lv, isList := e.value.(ListValue)
	if !isList {
		return nil, false, ErrWrongType
	}
	return lv.List, true, nil
}

// --- stream --------------------------------------------------------------------

// MutateStream runs fn against the Stream at key, creating an empty one
// first if the key is absent. Unlike lists, an emptied stream is not
// removed — XADD/XDEL on a stream never implicitly deletes it, mirroring
// upstream Redis.
func (k *Keyspace) MutateStream(key string, fn func(*stream.Stream)) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	var s *stream.Stream
	if e == nil {
		s = stream.New()
	} else {
		sv, ok := e.value.(StreamValue)
		if !ok {
			return ErrWrongType
		}
		s = sv.Stream
	}
	fn(s)
	k.data[key] = &entry{value: StreamValue{Stream: s}}
	k.touch(key)
	return nil
}

// ViewStream returns the Stream at key without creating it.
func (k *Keyspace) ViewStream(key string) (s *stream.Stream, ok bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	if e == nil {
		return nil, false, nil
	}
	sv, isStream := e.value.(StreamValue)
	if !isStream {
		return nil, false, ErrWrongType
	}
	return sv.Stream, true, nil
}

// --- zset / geo ----------------------------------------------------------------

// MutateZSet runs fn against the ZSet at key (also used for Geo values),
// creating an empty one first if absent, removing the key if fn leaves it
// empty.
func (k *Keyspace) MutateZSet(key string, fn func(*zset.ZSet)) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	var z *zset.ZSet
	if e == nil {
		z = zset.New()
	} else {
		zv, ok := e.value.(ZSetValue)
		if !ok {
			return ErrWrongType
		}
		z = zv.ZSet
	}
	fn(z)
	k.touch(key)
	if z.Len() == 0 {
		delete(k.data, key)
		return nil
	}
	k.data[key] = &entry{value: ZSetValue{ZSet: z}}
	return nil
}

// ViewZSet returns the ZSet at key without creating it.
func (k *Keyspace) ViewZSet(key string) (z *zset.ZSet, ok bool, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.expireIfNeeded(key)
	if e == nil {
		return nil, false, nil
	}
	zv, isZSet := e.value.(ZSetValue)
	if !isZSet {
		return nil, false, ErrWrongType
	}
	return zv.ZSet, true, nil
}
