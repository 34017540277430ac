package stream

import "fmt"

// ID is a Redis stream ID: two non-negative 64-bit integers, ordered
// lexicographically by Ms then numerically by Seq. 0-0 is invalid and
// rejected wherever an ID is appended (spec §3/§4.3).
type ID struct {
	Ms  uint64
	Seq uint64
}

// Zero is the forbidden 0-0 ID.
var Zero = ID{0, 0}

// Less reports whether id precedes other in stream order.
func (id ID) Less(other ID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

// Equal reports value equality.
func (id ID) Equal(other ID) bool { return id.Ms == other.Ms && id.Seq == other.Seq }

// String renders the canonical "ms-seq" textual form.
func (id ID) String() string { return fmt.Sprintf("%d-%d", id.Ms, id.Seq) }

// Max is the largest representable ID, used as the "+" XRANGE endpoint.
var Max = ID{Ms: ^uint64(0), Seq: ^uint64(0)}

// Min is the smallest representable ID, used as the "-" XRANGE endpoint
// (note: 0-0 itself is never a valid entry ID, but it is a valid bound).
var Min = ID{Ms: 0, Seq: 0}
