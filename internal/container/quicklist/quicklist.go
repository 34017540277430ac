// Package quicklist implements the List value container from spec §3/§4.4:
// a doubly linked sequence of fixed-capacity segments, each holding a
// contiguous [start,end) window growable at either end. The head segment
// may have free slots only at its left, the tail only at its right; an
// empty segment is removed immediately.
package quicklist

// SegmentCapacity is the fixed capacity of each segment (spec §3 suggests 64).
const SegmentCapacity = 64

type segment struct {
	buf        [SegmentCapacity][]byte
	start, end int // valid elements are buf[start:end]
	prev, next *segment
}

func (s *segment) len() int { return s.end - s.start }

// newHeadSegment returns an empty segment right-aligned so it only has
// free room on its left, the shape required of a head segment.
func newHeadSegment() *segment {
	return &segment{start: SegmentCapacity, end: SegmentCapacity}
}

// newTailSegment returns an empty segment left-aligned so it only has
// free room on its right, the shape required of a tail segment.
func newTailSegment() *segment {
	return &segment{start: 0, end: 0}
}

// QuickList is a segmented doubly linked list with O(1) amortized push/pop
// at both ends and an atomically tracked length.
type QuickList struct {
	head, tail *segment
	length     int
}

// New returns an empty QuickList.
func New() *QuickList { return &QuickList{} }

// Len returns the total number of elements.
func (q *QuickList) Len() int { return q.length }

// PushLeft prepends val, creating a new head segment if the current head is
// full on its left side.
func (q *QuickList) PushLeft(val []byte) {
	if q.head == nil {
		seg := &segment{start: SegmentCapacity / 2, end: SegmentCapacity / 2}
		q.head, q.tail = seg, seg
	}
	if q.head.start == 0 {
		seg := newHeadSegment()
		seg.next = q.head
		q.head.prev = seg
		q.head = seg
	}
	q.head.start--
	q.head.buf[q.head.start] = val
	q.length++
}

// PushRight appends val, creating a new tail segment if the current tail is
// full on its right side.
func (q *QuickList) PushRight(val []byte) {
	if q.tail == nil {
		seg := &segment{start: SegmentCapacity / 2, end: SegmentCapacity / 2}
		q.head, q.tail = seg, seg
	}
	if q.tail.end == SegmentCapacity {
		seg := newTailSegment()
		seg.prev = q.tail
		q.tail.next = seg
		q.tail = seg
	}
	q.tail.buf[q.tail.end] = val
	q.tail.end++
	q.length++
}

// PopLeft removes and returns the leftmost element, or (nil, false) if empty.
func (q *QuickList) PopLeft() ([]byte, bool) {
	if q.head == nil {
		return nil, false
	}
	v := q.head.buf[q.head.start]
	q.head.buf[q.head.start] = nil
	q.head.start++
	q.length--
	if q.head.len() == 0 {
		q.removeSegment(q.head)
	}
	return v, true
}

// PopRight removes and returns the rightmost element, or (nil, false) if empty.
func (q *QuickList) PopRight() ([]byte, bool) {
	if q.tail == nil {
		return nil, false
	}
	q.tail.end--
	v := q.tail.buf[q.tail.end]
	q.tail.buf[q.tail.end] = nil
	q.length--
	if q.tail.len() == 0 {
		q.removeSegment(q.tail)
	}
	return v, true
}

// removeSegment unlinks an emptied segment, per the "removed immediately" invariant.
func (q *QuickList) removeSegment(s *segment) {
	if s.prev != nil {
		s.prev.next = s.next
	} else {
		q.head = s.next
	}
	if s.next != nil {
		s.next.prev = s.prev
	} else {
		q.tail = s.prev
	}
}

// PopLeftN removes and returns up to count elements from the left, fewer
// than count if the list is shorter (spec's Open Question, resolved
// Redis-compatibly in SPEC_FULL.md).
func (q *QuickList) PopLeftN(count int) [][]byte {
	if count > q.length {
		count = q.length
	}
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		v, ok := q.PopLeft()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// PopRightN removes and returns up to count elements from the right.
func (q *QuickList) PopRightN(count int) [][]byte {
	if count > q.length {
		count = q.length
	}
	out := make([][]byte, 0, count)
	for i := 0; i < count; i++ {
		v, ok := q.PopRight()
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// ToSlice materializes the whole list head to tail.
func (q *QuickList) ToSlice() [][]byte {
	out := make([][]byte, 0, q.length)
	for s := q.head; s != nil; s = s.next {
		for i := s.start; i < s.end; i++ {
			out = append(out, s.buf[i])
		}
	}
	return out
}

// Range returns the inclusive [start,end] slice per spec §4.4: negative
// indices count from the end, clamped to [0,len-1]; empty if start > end.
func (q *QuickList) Range(start, end int) [][]byte {
	n := q.length
	start = normalizeIndex(start, n)
	end = normalizeIndex(end, n)
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if n == 0 || start > end {
		return [][]byte{}
	}
	all := q.ToSlice()
	return all[start : end+1]
}

func normalizeIndex(i, n int) int {
	if i < 0 {
		i = n + i
	}
	return i
}
