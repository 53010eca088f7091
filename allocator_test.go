package indexalloc

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/constraints"
)

func testAllocAndFreeOne[I constraints.Integer](t *testing.T, count I) {
	assert := assert.New(t)
	a, _ := newRecorded[I]()

	assert.True(a.Empty())
	index := mustAlloc(t, a, count)
	assert.False(a.Empty())
	assert.True(a.ValidIndex(index))
	mustFree(t, a, index)
	assert.True(a.Empty())
	assert.False(a.ValidIndex(index))
	checkLedger(t, a)
}

func TestAllocAndFreeOne(t *testing.T) {
	runSizes(t, testAllocAndFreeOne[int8], testAllocAndFreeOne[int16], testAllocAndFreeOne[int32], testAllocAndFreeOne[uint16])
}

func testAllocAndFreeOrders[I constraints.Integer](t *testing.T, count I) {
	orders := map[string][]int{
		"in-order":  {1, 0},
		"reverse":   {0, 1},
		"scattered": {1, 0, 2},
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			a, _ := newRecorded[I]()

			indices := make([]I, len(order))
			for i := range indices {
				indices[i] = mustAlloc(t, a, count)
			}
			for i := 1; i < len(indices); i++ {
				assert.NotEqual(indices[i-1], indices[i])
			}
			assert.False(a.Empty())

			for _, i := range order {
				mustFree(t, a, indices[i])
			}
			assert.True(a.Empty())
			checkLedger(t, a)
		})
	}
}

func TestAllocAndFreeOrders(t *testing.T) {
	runSizes(t, testAllocAndFreeOrders[int8], testAllocAndFreeOrders[int16], testAllocAndFreeOrders[int32], testAllocAndFreeOrders[uint16])
}

func testSetNumIndices[I constraints.Integer](t *testing.T, count I) {
	assert := assert.New(t)
	a, r := newRecorded[I]()

	assert.Equal(I(0), r.numIndices)
	index := mustAlloc(t, a, count)
	assert.Equal(count, r.numIndices)
	mustFree(t, a, index)
	assert.Equal(count, r.numIndices)
	a.Defragment()
	assert.Equal(I(0), r.numIndices)
	assert.Equal(I(0), a.NumIndices())
	assert.Empty(r.moves)
	checkLedger(t, a)
}

func TestSetNumIndices(t *testing.T) {
	runSizes(t, testSetNumIndices[int8], testSetNumIndices[int16], testSetNumIndices[int32], testSetNumIndices[uint16])
}

func testRecycling[I constraints.Integer](t *testing.T, count I) {
	assert := assert.New(t)
	a, r := newRecorded[I]()

	// a big chunk results in exactly that many indices.
	big := mustAlloc(t, a, 2*count)
	mustFree(t, a, big)
	assert.Equal(2*count, r.numIndices)

	// same size again is recycled.
	again := mustAlloc(t, a, 2*count)
	mustFree(t, a, again)
	assert.Equal(big, again)
	assert.Equal(2*count, r.numIndices)

	// smaller allocations split the free range, no growth.
	med := mustAlloc(t, a, count)
	assert.Equal(big, med)
	assert.Equal(2*count, r.numIndices)

	medAgain := mustAlloc(t, a, count)
	assert.Equal(big+count, medAgain)
	assert.Equal(2*count, r.numIndices)
	assert.Equal(1, r.sets)
	checkLedger(t, a)
}

func TestRecycling(t *testing.T) {
	runSizes(t, testRecycling[int8], testRecycling[int16], testRecycling[int32], testRecycling[uint16])
}

func TestBestFitRecycling(t *testing.T) {
	assert := assert.New(t)
	a, r := newRecorded[int32]()

	index := mustAlloc(t, a, 10)
	mustAlloc(t, a, 1)
	mustFree(t, a, index)
	sets := r.sets

	assert.Equal(index, mustAlloc(t, a, 6))
	assert.Equal(index+6, mustAlloc(t, a, 4))
	assert.Equal(int32(11), a.NumIndices())
	assert.Equal(sets, r.sets)
	assert.Equal(int32(0), a.NumUnusedIndices())
	checkLedger(t, a)
}

func TestLeastExcessWins(t *testing.T) {
	assert := assert.New(t)
	a, _ := newRecorded[int32]()

	var starts []int32
	for _, count := range []int32{9, 1, 5, 1, 6, 1} {
		starts = append(starts, mustAlloc(t, a, count))
	}
	mustFree(t, a, starts[0]) // 9
	mustFree(t, a, starts[2]) // 5
	mustFree(t, a, starts[4]) // 6

	// 5 takes the exact fit, 4 prefers 6 over 9, 3 gets 9 and 2 the rest of 6.
	assert.Equal(starts[2], mustAlloc(t, a, 5))
	assert.Equal(starts[4], mustAlloc(t, a, 4))
	assert.Equal(starts[0], mustAlloc(t, a, 3))
	assert.Equal(starts[4]+4, mustAlloc(t, a, 2))
	assert.Equal(int32(6), a.NumUnusedIndices())
	checkLedger(t, a)
}

func TestAllocErrors(t *testing.T) {
	assert := assert.New(t)
	a, r := newRecorded[int8]()

	_, err := a.Alloc(0)
	assert.ErrorIs(err, ErrInvalidArgument)
	_, err = a.Alloc(-3)
	assert.ErrorIs(err, ErrInvalidArgument)

	mustAlloc(t, a, 100)
	_, err = a.Alloc(28)
	assert.ErrorIs(err, ErrIndexOverflow)
	assert.Equal(int8(100), a.NumIndices())
	assert.Equal(int8(100), r.numIndices)

	// the last representable size still fits.
	index := mustAlloc(t, a, 27)
	assert.Equal(int8(100), index)
	assert.Equal(int8(math.MaxInt8), a.NumIndices())
	checkLedger(t, a)
}

func TestUnsignedOverflow(t *testing.T) {
	a, _ := newRecorded[uint8]()
	mustAlloc(t, a, 200)
	_, err := a.Alloc(56)
	assert.ErrorIs(t, err, ErrIndexOverflow)
	assert.Equal(t, uint8(255), mustAlloc(t, a, 55)+55)
}

func TestWideCountOverflow(t *testing.T) {
	assert := assert.New(t)

	a, r := newRecorded[uint64]()
	for _, count := range []uint64{math.MaxUint64, 1 << 63, math.MaxInt64 + 7} {
		_, err := a.Alloc(count)
		assert.ErrorIs(err, ErrIndexOverflow)
		assert.NotErrorIs(err, ErrInvalidArgument)
	}
	assert.Zero(r.sets)
	assert.Equal(uint64(0), a.NumIndices())

	b, _ := newRecorded[uintptr]()
	_, err := b.Alloc(^uintptr(0))
	assert.ErrorIs(err, ErrIndexOverflow)
	assert.Equal(uintptr(0), mustAlloc(t, b, 3))
}

func TestFreeErrors(t *testing.T) {
	assert := assert.New(t)
	a, _ := newRecorded[int16]()

	index := mustAlloc(t, a, 4)
	assert.ErrorIs(a.Free(-1), ErrInvalidIndex)
	assert.ErrorIs(a.Free(4), ErrInvalidIndex)
	assert.ErrorIs(a.Free(index+1), ErrInvalidIndex)

	mustFree(t, a, index)
	assert.ErrorIs(a.Free(index), ErrInvalidIndex)

	_, err := a.CountForIndex(index)
	assert.ErrorIs(err, ErrInvalidIndex)
	_, err = a.CountForIndex(100)
	assert.ErrorIs(err, ErrInvalidIndex)
	checkLedger(t, a)
}

func TestSplitTailQueries(t *testing.T) {
	assert := assert.New(t)
	a, _ := newRecorded[int32]()

	big := mustAlloc(t, a, 10)
	mustAlloc(t, a, 1)
	mustFree(t, a, big)

	assert.Equal(int32(0), mustAlloc(t, a, 3))
	for i := int32(3); i < 10; i++ {
		_, ok := a.RangeForIndex(i)
		assert.False(ok, "index %d", i)
	}
	checkLedger(t, a)

	// the tail is split again, the new head gets exact offsets.
	assert.Equal(int32(3), mustAlloc(t, a, 2))
	r, ok := a.RangeForIndex(4)
	assert.True(ok)
	assert.Equal(IndexRange[int32]{Start: 3, Count: 2}, r)
	_, ok = a.RangeForIndex(6)
	assert.False(ok)
	assert.False(a.ValidIndex(5))
	checkLedger(t, a)
}

func TestRangeForIndex(t *testing.T) {
	assert := assert.New(t)
	a, _ := newRecorded[int32]()

	first := mustAlloc(t, a, 3)
	second := mustAlloc(t, a, 4)

	for i := int32(0); i < 3; i++ {
		r, ok := a.RangeForIndex(first + i)
		assert.True(ok)
		assert.Equal(IndexRange[int32]{Start: 0, Count: 3}, r)
	}
	r, ok := a.RangeForIndex(second + 3)
	assert.True(ok)
	assert.Equal(IndexRange[int32]{Start: 3, Count: 4}, r)
	assert.True(r.Contains(6))
	assert.False(r.Contains(7))
	assert.Equal(int32(7), r.End())
	assert.Equal("[3,7)", r.String())

	mustFree(t, a, first)
	_, ok = a.RangeForIndex(1)
	assert.False(ok)
	_, ok = a.RangeForIndex(7)
	assert.False(ok)
	_, ok = a.RangeForIndex(-1)
	assert.False(ok)
}

func TestScan(t *testing.T) {
	assert := assert.New(t)
	a, _ := newRecorded[int32]()

	var starts []int32
	for _, count := range []int32{2, 3, 1, 4} {
		starts = append(starts, mustAlloc(t, a, count))
	}
	mustFree(t, a, starts[1])

	var got []IndexRange[int32]
	a.Scan(func(r IndexRange[int32]) bool {
		got = append(got, r)
		return true
	})
	assert.Equal([]IndexRange[int32]{{0, 2}, {5, 1}, {6, 4}}, got)

	var n int
	a.Scan(func(IndexRange[int32]) bool {
		n++
		return false
	})
	assert.Equal(1, n)
}

func TestNeedsDefragment(t *testing.T) {
	assert := assert.New(t)
	r := &recorder[int32]{}
	options := DefaultOptions
	options.DefragDelta = 4
	options.DefragRatio = 0.5
	a := New[int32](r, options)

	var starts []int32
	for i := 0; i < 8; i++ {
		starts = append(starts, mustAlloc(t, a, 1))
	}
	assert.False(a.NeedsDefragment())

	for _, i := range []int{0, 2, 4} {
		mustFree(t, a, starts[i])
	}
	// 3 unused, below delta.
	assert.False(a.NeedsDefragment())
	assert.False(a.MaybeDefragment())

	mustFree(t, a, starts[6])
	// 4 of 8, reaches both thresholds.
	assert.True(a.NeedsDefragment())
	assert.True(a.MaybeDefragment())
	assert.Equal(int32(4), a.NumIndices())
	assert.False(a.NeedsDefragment())
	checkLedger(t, a)
}

func TestStats(t *testing.T) {
	assert := assert.New(t)
	a, _ := newRecorded[int32]()

	x := mustAlloc(t, a, 4)
	mustAlloc(t, a, 2)
	mustFree(t, a, x)
	mustAlloc(t, a, 3)

	stat := a.Stats()
	assert.Equal(6, stat.NumIndices)
	assert.Equal(5, stat.Allocated)
	assert.Equal(1, stat.Unused)
	assert.Equal(1, stat.FreeRanges)
	assert.Equal(uint64(3), stat.Allocs)
	assert.Equal(uint64(1), stat.Recycled)
	assert.Equal(uint64(2), stat.Grows)
	assert.Equal(uint64(1), stat.Frees)
	assert.InDelta(100.0/6, stat.UnusedRate(), 1e-9)

	a.Defragment()
	stat = a.Stats()
	assert.Equal(uint64(1), stat.Defragments)
	assert.Equal(uint64(1), stat.Moves)
	assert.Equal(uint64(2), stat.MovedIndices)
	assert.Equal(0, stat.FreeRanges)
	assert.Zero(stat.UnusedRate())
}

func TestOptions(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(checkOptions(DefaultOptions))
	for _, options := range []Options{
		{Capacity: -1},
		{DefragRatio: 1.5},
		{DefragRatio: -0.1},
		{DefragDelta: -1},
	} {
		assert.ErrorIs(checkOptions(options), ErrInvalidOptions)
		assert.Panics(func() { New[int32](&recorder[int32]{}, options) })
	}
	assert.Panics(func() { New[int32](nil) })
}

func TestCallbackFuncs(t *testing.T) {
	assert := assert.New(t)

	var sizes []int16
	var moves []move[int16]
	a := New[int16](CallbackFuncs[int16]{
		OnSetNumIndices: func(n int16) { sizes = append(sizes, n) },
		OnMoveIndexRange: func(source IndexRange[int16], target int16) {
			moves = append(moves, move[int16]{source, target})
		},
	})
	x := mustAlloc(t, a, 1)
	mustAlloc(t, a, 1)
	mustFree(t, a, x)
	a.Defragment()

	assert.Equal([]int16{1, 2, 1}, sizes)
	assert.Equal([]move[int16]{{IndexRange[int16]{1, 1}, 0}}, moves)

	// nil funcs are skipped.
	b := New[int16](CallbackFuncs[int16]{})
	y := mustAlloc(t, b, 2)
	mustAlloc(t, b, 2)
	mustFree(t, b, y)
	assert.NotPanics(b.Defragment)
}

func TestDefragmentLogs(t *testing.T) {
	var buf bytes.Buffer
	options := DefaultOptions
	options.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := New[int32](&recorder[int32]{}, options)

	x := mustAlloc(t, a, 1)
	mustAlloc(t, a, 1)
	mustFree(t, a, x)
	a.Defragment()

	out := buf.String()
	require.Contains(t, out, "indexalloc: defragmented")
	require.Contains(t, out, "before=2")
	require.Contains(t, out, "after=1")
	require.Contains(t, out, "moves=1")
}
