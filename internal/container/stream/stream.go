// Package stream implements the Stream value container from spec §3/§4.3:
// a totally ordered map keyed by ms-seq, storing insertion-order-preserving
// field/value pairs, with the ID generator rules for XADD's *, ms-*, and
// explicit ms-seq forms.
package stream

import (
	"errors"
	"sort"
)

// Generator error sentinels (mapped to the spec §7 error taxonomy by the
// command layer).
var (
	ErrIDZero     = errors.New("stream: the ID specified is 0-0")
	ErrIDTooSmall = errors.New("stream: the ID specified is smaller than the target stream top item")
	ErrIDExists   = errors.New("stream: the ID specified already exists")
)

// Field is a single field/value pair, order-preserving within an Entry.
type Field struct {
	Name, Value []byte
}

// Entry is one appended stream record.
type Entry struct {
	ID     ID
	Fields []Field
}

// Stream is an append-mostly ordered sequence of Entries. Because every
// appended ID must strictly exceed the last (enforced by the generator),
// entries are always appended in increasing order, so a single growable
// slice already preserves the stream's lexicographic order without a
// secondary index.
type Stream struct {
	entries []Entry
	lastID  ID
}

// New returns an empty stream.
func New() *Stream { return &Stream{} }

// Len reports the number of entries.
func (s *Stream) Len() int { return len(s.entries) }

// LastID returns the most recently appended ID (Zero if empty).
func (s *Stream) LastID() ID { return s.lastID }

// NextAuto implements XADD key * ...: ms := max(now, lastMs); seq is 0 if
// ms advanced, else lastSeq+1.
func (s *Stream) NextAuto(nowMs uint64) ID {
	ms := nowMs
	if ms < s.lastID.Ms {
		ms = s.lastID.Ms
	}
	var seq uint64
	if ms == s.lastID.Ms {
		seq = s.lastID.Seq + 1
	}
	return ID{Ms: ms, Seq: seq}
}

// NextForMs implements XADD key ms-* ...: the sequence auto-increments
// within ms.
func (s *Stream) NextForMs(ms uint64) (ID, error) {
	if s.Len() == 0 {
		if ms == 0 {
			return ID{Ms: 0, Seq: 1}, nil
		}
		return ID{Ms: ms, Seq: 0}, nil
	}
	if ms < s.lastID.Ms {
		return ID{}, ErrIDTooSmall
	}
	if ms == s.lastID.Ms {
		return ID{Ms: ms, Seq: s.lastID.Seq + 1}, nil
	}
	return ID{Ms: ms, Seq: 0}, nil
}

// ValidateExplicit checks an explicit ms-seq ID against spec §4.3's rules:
// 0-0 is rejected, duplicates are rejected, and it must strictly exceed the
// current last ID.
func (s *Stream) ValidateExplicit(id ID) error {
	if id.Equal(Zero) {
		return ErrIDZero
	}
	if s.Len() > 0 {
		if !s.lastID.Less(id) {
			if s.lastID.Equal(id) {
				return ErrIDExists
			}
			return ErrIDTooSmall
		}
	}
	return nil
}

// Append adds an already-validated/generated entry. Appended IDs must
// strictly exceed the prior last ID; this is an invariant enforced by the
// generator functions above, not re-checked here.
func (s *Stream) Append(id ID, fields []Field) Entry {
	e := Entry{ID: id, Fields: fields}
	s.entries = append(s.entries, e)
	s.lastID = id
	return e
}

// Range returns entries with start <= ID <= end (both inclusive), in
// insertion order, per spec §4.3's XRANGE semantics. count < 0 means
// unlimited.
func (s *Stream) Range(start, end ID, count int) []Entry {
	lo := sort.Search(len(s.entries), func(i int) bool {
		return !s.entries[i].ID.Less(start)
	})
	var out []Entry
	for i := lo; i < len(s.entries); i++ {
		e := s.entries[i]
		if end.Less(e.ID) {
			break
		}
		out = append(out, e)
		if count >= 0 && len(out) >= count {
			break
		}
	}
	return out
}

// After returns up to count entries strictly greater than last, used by
// XREAD/XREADGROUP (including the blocking variants in spec §4.9). count
// < 0 means unlimited.
func (s *Stream) After(last ID, count int) []Entry {
	lo := sort.Search(len(s.entries), func(i int) bool {
		return last.Less(s.entries[i].ID)
	})
	var out []Entry
	for i := lo; i < len(s.entries); i++ {
		out = append(out, s.entries[i])
		if count >= 0 && len(out) >= count {
			break
		}
	}
	return out
}

// HasAfter reports whether any entry strictly exceeds last. The XREAD
// BLOCK wake path does not call it; it checks After's result instead.
func (s *Stream) HasAfter(last ID) bool {
	if len(s.entries) == 0 {
		return false
	}
	return last.Less(s.lastID)
}
