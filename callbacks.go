package indexalloc

import "golang.org/x/exp/constraints"

// Callbacks is implemented by the owner of the payload array.
//
// SetNumIndices is called whenever the index space changes size. When it grows
// (during Alloc) the array must be at least numIndices long before the call
// returns. When it shrinks (at the end of Defragment) the new size is never
// larger than the previous one, so the array may be shrunk lazily.
//
// MoveIndexRange is called during Defragment to relocate source.Count
// contiguous elements from source.Start to target. target is always lower
// than source.Start, so a single forward copy is sufficient.
type Callbacks[I constraints.Integer] interface {
	SetNumIndices(numIndices I)
	MoveIndexRange(source IndexRange[I], target I)
}

// CallbackFuncs adapts a pair of functions to Callbacks. Nil fields are skipped.
type CallbackFuncs[I constraints.Integer] struct {
	OnSetNumIndices  func(numIndices I)
	OnMoveIndexRange func(source IndexRange[I], target I)
}

func (c CallbackFuncs[I]) SetNumIndices(numIndices I) {
	if c.OnSetNumIndices != nil {
		c.OnSetNumIndices(numIndices)
	}
}

func (c CallbackFuncs[I]) MoveIndexRange(source IndexRange[I], target I) {
	if c.OnMoveIndexRange != nil {
		c.OnMoveIndexRange(source, target)
	}
}
