// Package blocking implements the blocking-client registry from spec §4.9.
// The event loop is single-worker (spec §5), so a "blocked" client never
// parks a goroutine: the dispatcher registers the connection's wait here and
// returns without replying. A later push on a watched key, or a deadline
// sweep, tells the dispatcher which connection to retry.
package blocking

import (
	"time"

	"github.com/nullbyte-labs/redisgo/internal/scheduler"
)

// waiter is one connection's pending block. A connection blocks on one or
// more keys (BLPOP accepts a key list) and wakes on whichever is satisfied
// first.
type waiter struct {
	connID   uint64
	keys     []string
	deadline time.Time
	hasDL    bool
}

// Registry tracks every currently blocked connection, grouped per key in
// FIFO order so the longest-waiting client is served first (spec §4.9
// invariant: "fairness is FIFO per key").
type Registry struct {
	byKey     map[string][]*waiter
	byConn    map[uint64]*waiter
	deadlines *scheduler.DeadlineQueue
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byKey:     make(map[string][]*waiter),
		byConn:    make(map[uint64]*waiter),
		deadlines: scheduler.NewDeadlineQueue(),
	}
}

// Block registers connID as waiting on keys. hasDeadline false means block
// indefinitely (no timeout, spec's "0" timeout value).
func (r *Registry) Block(connID uint64, keys []string, deadline time.Time, hasDeadline bool) {
	r.Unblock(connID) // idempotent: replace any stale registration
	w := &waiter{connID: connID, keys: keys, deadline: deadline, hasDL: hasDeadline}
	r.byConn[connID] = w
	for _, k := range keys {
		r.byKey[k] = append(r.byKey[k], w)
	}
	if hasDeadline {
		r.deadlines.Push(connID, deadline)
	}
}

// Unblock removes connID from every key queue and the deadline heap. Called
// when the client's retry succeeds, its deadline fires, or it disconnects.
func (r *Registry) Unblock(connID uint64) {
	w, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)
	r.deadlines.Remove(connID)
	for _, k := range w.keys {
		queue := r.byKey[k]
		for i, cand := range queue {
			if cand.connID == connID {
				r.byKey[k] = append(queue[:i], queue[i+1:]...)
				break
			}
		}
		if len(r.byKey[k]) == 0 {
			delete(r.byKey, k)
		}
	}
}

// IsBlocked reports whether connID currently has a pending block.
func (r *Registry) IsBlocked(connID uint64) bool {
	_, ok := r.byConn[connID]
	return ok
}

// WakeOne returns the longest-waiting connection blocked on key, without
// removing it — the dispatcher must call Unblock itself once the retried
// command actually consumes data, since a spurious wake (another waiter
// got there first) must leave the registration intact for the next push.
func (r *Registry) WakeOne(key string) (connID uint64, ok bool) {
	queue := r.byKey[key]
	if len(queue) == 0 {
		return 0, false
	}
	return queue[0].connID, true
}

// SweepExpired returns the connections whose deadline has passed at now,
// removing their registration (spec §4.9: a timed-out block replies with
// the null array/null bulk and must not fire again).
func (r *Registry) SweepExpired(now time.Time) []uint64 {
	ids := r.deadlines.DrainExpired(now)
	for _, id := range ids {
		r.Unblock(id)
	}
	return ids
}

// NumBlocked reports the number of connections currently blocked, for
// SPEC_FULL.md's INFO/metrics surface.
func (r *Registry) NumBlocked() int { return len(r.byConn) }
