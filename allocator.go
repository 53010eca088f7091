// Package indexalloc allocates contiguous ranges of indices into an array
// owned by the caller, and keeps that array dense.
//
// Freed ranges are recycled by later allocations (best fit, least excess).
// Calling Defragment backfills the remaining holes with the highest
// allocations, reporting every relocation through Callbacks so the caller can
// move its payload, and then shrinks the index space.
//
// IndexAllocator is not safe for concurrent use.
package indexalloc

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/exp/constraints"
)

// IndexAllocator hands out ranges of indices of type I.
type IndexAllocator[I constraints.Integer] struct {
	callbacks Callbacks[I]
	options   Options
	logger    *slog.Logger

	// numIndices is the length the caller's array must have.
	numIndices int

	// allocated is the sum of counts of live allocations.
	allocated int

	// ledger maps every index in [0, numIndices) to its range.
	ledger ledger

	// free is the list of freed ranges waiting for recycling or Defragment.
	free freeList

	// marks has a bit set at the start of every free range.
	marks *bitset.BitSet

	// runtime stats.
	stats Stats
}

// New returns an empty IndexAllocator bound to callbacks.
func New[I constraints.Integer](callbacks Callbacks[I], options ...Options) *IndexAllocator[I] {
	if callbacks == nil {
		panic("indexalloc: nil callbacks")
	}
	opt := DefaultOptions
	if len(options) > 0 {
		opt = options[0]
	}
	if err := checkOptions(opt); err != nil {
		panic(err)
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &IndexAllocator[I]{
		callbacks: callbacks,
		options:   opt,
		logger:    logger,
		ledger:    make(ledger, 0, opt.Capacity),
		marks:     bitset.New(uint(opt.Capacity)),
	}
}

// Alloc reserves count contiguous indices and returns the first one.
//
// A freed range is recycled when one is large enough, preferring the one with
// the least excess; an oversized range is split and its tail stays free.
// Otherwise the index space grows and SetNumIndices is called before Alloc
// returns.
func (a *IndexAllocator[I]) Alloc(count I) (I, error) {
	if count <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidArgument, count)
	}
	want := int(count)
	if want <= 0 || I(want) != count {
		return 0, fmt.Errorf("%w: count %d", ErrIndexOverflow, count)
	}
	a.stats.Allocs++

	if pos := a.free.leastExcess(want); pos >= 0 {
		s := a.free.spans[pos]
		a.marks.Clear(uint(s.start))

		a.ledger.put(s.start, want)
		if excess := s.count - want; excess > 0 {
			// split, the tail only needs a new header.
			rest := span{start: s.start + want, count: excess, free: true}
			a.ledger[rest.start] = rest.count
			a.marks.Set(uint(rest.start))
			a.free.spans[pos] = rest
		} else {
			a.free.take(pos)
		}

		a.allocated += want
		a.stats.Recycled++
		return I(s.start), nil
	}

	total := a.numIndices + want
	if total < a.numIndices || int(I(total)) != total {
		return 0, fmt.Errorf("%w: %d + %d", ErrIndexOverflow, a.numIndices, want)
	}

	start := a.ledger.grow(want)
	a.numIndices = total
	a.allocated += want
	a.stats.Grows++
	a.callbacks.SetNumIndices(I(total))

	return I(start), nil
}

// Free releases the allocation starting at index. The indices are recycled
// by a later Alloc or backfilled by the next Defragment; no callback is made.
func (a *IndexAllocator[I]) Free(index I) error {
	i := int(index)
	if !a.valid(i) {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	count := a.ledger[i]
	a.free.push(i, count)
	a.marks.Set(uint(i))
	a.allocated -= count
	a.stats.Frees++
	return nil
}

func (a *IndexAllocator[I]) valid(i int) bool {
	return i >= 0 && i < a.numIndices && a.ledger[i] > 0 && !a.marks.Test(uint(i))
}

// ValidIndex reports whether index is the start of a live allocation.
func (a *IndexAllocator[I]) ValidIndex(index I) bool {
	return a.valid(int(index))
}

// CountForIndex returns the length of the allocation starting at index.
func (a *IndexAllocator[I]) CountForIndex(index I) (I, error) {
	i := int(index)
	if !a.valid(i) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	return I(a.ledger[i]), nil
}

// RangeForIndex returns the live allocation that contains index, which may
// be any index of the range, not only its start.
func (a *IndexAllocator[I]) RangeForIndex(index I) (IndexRange[I], bool) {
	i := int(index)
	if i < 0 || i >= a.numIndices {
		return IndexRange[I]{}, false
	}
	// inside a free range the offset may lead anywhere below index, but
	// never to a live range that covers it.
	start := a.ledger.startOf(i)
	count := a.ledger[start]
	if count <= 0 || i >= start+count || a.marks.Test(uint(start)) {
		return IndexRange[I]{}, false
	}
	return IndexRange[I]{Start: I(start), Count: I(count)}, true
}

// Scan calls f for every live allocation in ascending order until f returns false.
func (a *IndexAllocator[I]) Scan(f func(IndexRange[I]) bool) {
	for i := 0; i < a.numIndices; i += a.ledger[i] {
		if a.marks.Test(uint(i)) {
			continue
		}
		if !f(IndexRange[I]{Start: I(i), Count: I(a.ledger[i])}) {
			return
		}
	}
}

// Empty reports whether no allocation is live. The index space may still be
// non-empty until Defragment runs.
func (a *IndexAllocator[I]) Empty() bool {
	return a.allocated == 0
}

// NumIndices returns the length the caller's array must have, including
// freed indices that have not been defragmented yet.
func (a *IndexAllocator[I]) NumIndices() I {
	return I(a.numIndices)
}

// NumAllocated returns the number of indices held by live allocations.
func (a *IndexAllocator[I]) NumAllocated() I {
	return I(a.allocated)
}

// NumUnusedIndices returns the number of freed indices, the amount Defragment
// would reclaim.
func (a *IndexAllocator[I]) NumUnusedIndices() I {
	return I(a.numIndices - a.allocated)
}

// NeedsDefragment reports whether the unused indices reach both
// Options.DefragDelta and Options.DefragRatio of the index space.
func (a *IndexAllocator[I]) NeedsDefragment() bool {
	unused := a.numIndices - a.allocated
	if unused == 0 || unused < a.options.DefragDelta {
		return false
	}
	return float64(unused)/float64(a.numIndices) >= a.options.DefragRatio
}

// MaybeDefragment runs Defragment if NeedsDefragment, and reports whether it did.
func (a *IndexAllocator[I]) MaybeDefragment() bool {
	if !a.NeedsDefragment() {
		return false
	}
	a.Defragment()
	return true
}
