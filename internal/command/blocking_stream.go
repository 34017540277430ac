package command

import (
	"time"

	"github.com/nullbyte-labs/redisgo/internal/container/stream"
	"github.com/nullbyte-labs/redisgo/internal/resp"
)

// streamWait remembers the per-key IDs an XREAD BLOCK caller was waiting
// past, since internal/blocking's registry is generic across list and
// stream contexts (spec §4.9) and doesn't itself carry this detail.
type streamWait struct {
	keys    []string
	lastIDs []stream.ID
	count   int
}

// BlockStream registers connID as blocked on an XREAD BLOCK call.
func (d *Dispatcher) BlockStream(connID uint64, keys []string, lastIDs []stream.ID, count int, deadline time.Time, hasDeadline bool) {
	d.streamWaits[connID] = &streamWait{keys: keys, lastIDs: lastIDs, count: count}
	d.blocking.Block(connID, keys, deadline, hasDeadline)
}

// WakeStreamWaiters wakes every connection blocked on an XREAD against key
// for which new entries are now available, building each one's full XREAD
// reply (which may span other streams in its original call too).
func (d *Dispatcher) WakeStreamWaiters(key string) []Wake {
	var wakes []Wake
	for {
		connID, ok := d.blocking.WakeOne(key)
		if !ok {
			break
		}
		sw, ok := d.streamWaits[connID]
		if !ok {
			d.blocking.Unblock(connID)
			continue
		}
		perKey := make([][]stream.Entry, len(sw.keys))
		any := false
		for i, k := range sw.keys {
			s, ok, err := d.keyspace.ViewStream(k)
			if err != nil || !ok {
				continue
			}
			perKey[i] = s.After(sw.lastIDs[i], sw.count)
			if len(perKey[i]) > 0 {
				any = true
			}
		}
		if !any {
			break
		}
		d.blocking.Unblock(connID)
		delete(d.streamWaits, connID)
		wakes = append(wakes, Wake{ConnID: connID, Reply: encodeXReadReply(sw.keys, perKey)})
	}
	return wakes
}

// SweepExpired retires every blocked connection whose deadline has passed at
// now, replying with the null array BLPOP uses or the null bulk
// XREAD BLOCK uses on timeout (spec §4.9: "a timed-out block replies with
// the null array/null bulk and must not fire again"). Wired by
// cmd/redis-server's periodic sweep ticker alongside keyspace.SweepExpired.
func (d *Dispatcher) SweepExpired(now time.Time) []Wake {
	ids := d.blocking.SweepExpired(now)
	wakes := make([]Wake, 0, len(ids))
	for _, connID := range ids {
		reply := resp.NullArray()
		if _, isStream := d.streamWaits[connID]; isStream {
			reply = resp.NullBulkString()
		}
		delete(d.streamWaits, connID)
		wakes = append(wakes, Wake{ConnID: connID, Reply: reply})
	}
	return wakes
}
