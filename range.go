package indexalloc

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// IndexRange is a contiguous span of indices treated as one allocation unit.
//
//	  Start                     End
//	    |                        |
//	+---+------------------------+---+
//	|...|<------- Count -------->|...|
//	+---+------------------------+---+
type IndexRange[I constraints.Integer] struct {
	Start I
	Count I
}

// End returns the first index after the range.
func (r IndexRange[I]) End() I {
	return r.Start + r.Count
}

// Contains reports whether index lies inside the range.
func (r IndexRange[I]) Contains(index I) bool {
	return index >= r.Start && index < r.End()
}

func (r IndexRange[I]) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End())
}

// span is the internal form of a range. Counts are kept as int so excess
// arithmetic can go negative whatever the index type is.
type span struct {
	start, count int
	free         bool
}

func (s span) end() int {
	return s.start + s.count
}

func toRange[I constraints.Integer](s span) IndexRange[I] {
	return IndexRange[I]{Start: I(s.start), Count: I(s.count)}
}
