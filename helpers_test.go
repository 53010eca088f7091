package indexalloc

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/constraints"
)

type move[I constraints.Integer] struct {
	source IndexRange[I]
	target I
}

// recorder keeps every callback it receives.
type recorder[I constraints.Integer] struct {
	numIndices I
	sets       int
	moves      []move[I]
}

func (r *recorder[I]) SetNumIndices(numIndices I) {
	r.numIndices = numIndices
	r.sets++
}

func (r *recorder[I]) MoveIndexRange(source IndexRange[I], target I) {
	r.moves = append(r.moves, move[I]{source, target})
}

// check reports whether the i-th move matches.
func (r *recorder[I]) check(i int, source, target, count I) bool {
	if i >= len(r.moves) {
		return false
	}
	m := r.moves[i]
	return m.source.Start == source && m.target == target && m.source.Count == count
}

func newRecorded[I constraints.Integer]() (*IndexAllocator[I], *recorder[I]) {
	r := &recorder[I]{}
	return New[I](r), r
}

func mustAlloc[I constraints.Integer](t *testing.T, a *IndexAllocator[I], count I) I {
	t.Helper()
	index, err := a.Alloc(count)
	require.NoError(t, err)
	return index
}

func mustFree[I constraints.Integer](t *testing.T, a *IndexAllocator[I], index I) {
	t.Helper()
	require.NoError(t, a.Free(index))
}

func mustCount[I constraints.Integer](t *testing.T, a *IndexAllocator[I], index I) I {
	t.Helper()
	count, err := a.CountForIndex(index)
	require.NoError(t, err)
	return count
}

// checkLedger verifies the ledger, marks and free list partition the index space.
func checkLedger[I constraints.Integer](t *testing.T, a *IndexAllocator[I]) {
	t.Helper()
	require.Len(t, a.ledger, a.numIndices)

	var allocated, free int
	for i := 0; i < a.numIndices; {
		count := a.ledger[i]
		require.Positive(t, count, "index %d is not a range start", i)
		if a.marks.Test(uint(i)) {
			// only the header of a free range is exact.
			for k := 1; k < count; k++ {
				require.Negative(t, a.ledger[i+k], "index %d", i+k)
				require.GreaterOrEqual(t, i+k+a.ledger[i+k], 0)
				_, ok := a.RangeForIndex(I(i + k))
				require.False(t, ok, "free index %d", i+k)
			}
			free += count
		} else {
			for k := 1; k < count; k++ {
				require.Equal(t, -k, a.ledger[i+k], "index %d", i+k)
			}
			allocated += count
		}
		i += count
	}

	var listed int
	for _, s := range a.free.spans {
		require.True(t, a.marks.Test(uint(s.start)))
		require.Equal(t, s.count, a.ledger[s.start])
		listed += s.count
	}
	require.Equal(t, uint(a.free.len()), a.marks.Count())
	require.Equal(t, free, listed)
	require.Equal(t, a.allocated, allocated)
	require.Equal(t, a.numIndices, allocated+free)
}

type sizeTest[I constraints.Integer] func(t *testing.T, count I)

// runSizes runs a test for several index types and base counts.
func runSizes(t *testing.T, i8 sizeTest[int8], i16 sizeTest[int16], i32 sizeTest[int32], u16 sizeTest[uint16]) {
	for _, c := range []int8{1, 2, 3} {
		t.Run(fmt.Sprintf("int8/%d", c), func(t *testing.T) { i8(t, c) })
	}
	for _, c := range []int16{1, 2, 4} {
		t.Run(fmt.Sprintf("int16/%d", c), func(t *testing.T) { i16(t, c) })
	}
	for _, c := range []int32{1, 2, 5} {
		t.Run(fmt.Sprintf("int32/%d", c), func(t *testing.T) { i32(t, c) })
	}
	for _, c := range []uint16{1, 3} {
		t.Run(fmt.Sprintf("uint16/%d", c), func(t *testing.T) { u16(t, c) })
	}
}
