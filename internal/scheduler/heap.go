// Package scheduler provides the server's periodic sweep primitive and the
// min-heap used to track absolute deadlines cheaply.
package scheduler

import (
	"container/heap"
	"time"
)

// deadlineEvent represents a single scheduled deadline.
// index is required for heap.Fix + O(log n) removals.
type deadlineEvent struct {
	id    uint64
	when  time.Time
	index int
}

// DeadlineQueue is a min-heap ordered by absolute deadline, indexed by an
// opaque uint64 id so a caller can cancel or replace a pending deadline in
// O(log n) without scanning. Used by the blocking registry (per-client
// timeout) and by WAIT (per-call timeout).
type DeadlineQueue struct {
	h       eventHeap
	entries map[uint64]*deadlineEvent
}

// NewDeadlineQueue returns an empty queue.
func NewDeadlineQueue() *DeadlineQueue {
	h := eventHeap{}
	heap.Init(&h)
	return &DeadlineQueue{
		h:       h,
		entries: make(map[uint64]*deadlineEvent),
	}
}

// Push schedules id to fire at when. A prior pending deadline for the same
// id is replaced (last push wins).
func (q *DeadlineQueue) Push(id uint64, when time.Time) {
	if old, ok := q.entries[id]; ok {
		heap.Remove(&q.h, old.index)
		delete(q.entries, id)
	}
	ev := &deadlineEvent{id: id, when: when}
	q.entries[id] = ev
	heap.Push(&q.h, ev)
}

// Peek returns the soonest pending deadline without removing it.
func (q *DeadlineQueue) Peek() (id uint64, when time.Time, ok bool) {
	if len(q.h) == 0 {
		return 0, time.Time{}, false
	}
	ev := q.h[0]
	return ev.id, ev.when, true
}

// Pop removes the head event unconditionally.
func (q *DeadlineQueue) Pop() {
	if len(q.h) == 0 {
		return
	}
	ev := heap.Pop(&q.h).(*deadlineEvent)
	delete(q.entries, ev.id)
}

// Remove deletes the pending deadline for id, if any (e.g. the client woke
// up before its timeout).
func (q *DeadlineQueue) Remove(id uint64) {
	ev, ok := q.entries[id]
	if !ok {
		return
	}
	heap.Remove(&q.h, ev.index)
	delete(q.entries, id)
}

// DrainExpired removes and returns the ids of every event whose deadline is
// at or before now, soonest first.
func (q *DeadlineQueue) DrainExpired(now time.Time) []uint64 {
	var expired []uint64
	for {
		id, when, ok := q.Peek()
		if !ok || when.After(now) {
			break
		}
		q.Pop()
		expired = append(expired, id)
	}
	return expired
}

// Len reports the number of pending deadlines.
func (q *DeadlineQueue) Len() int { return len(q.h) }

// --- heap internals ----------------------------------------------------------

// eventHeap is a min-heap ordered by event.when.
type eventHeap []*deadlineEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	return h[i].when.Before(h[j].when)
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*deadlineEvent)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	ev.index = -1 // mark as removed
	*h = old[:n-1]
	return ev
}
