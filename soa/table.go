// Package soa keeps structure-of-arrays tables dense. Rows are handed out in
// blocks through an indexalloc.IndexAllocator and addressed by stable handles
// that survive compaction.
package soa

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/tidwall/hashmap"
	"github.com/xgzlucario/indexalloc"
	"github.com/zeebo/xxh3"
)

// Handle names a block of rows for as long as it lives. Handles are never
// reused within a table, and the zero Handle is never issued.
type Handle uint32

// Table is a set of columns sharing one row index space.
type Table struct {
	alloc   *indexalloc.IndexAllocator[int32]
	columns []Column
	logger  *slog.Logger
	next    Handle

	// handle -> rows, row start -> handle.
	rows   hashmap.Map[Handle, indexalloc.IndexRange[int32]]
	owners hashmap.Map[int32, Handle]

	sync.RWMutex
}

// New returns an empty table over columns. The columns must be empty.
func New(options indexalloc.Options, columns ...Column) *Table {
	for i, c := range columns {
		if c.Len() != 0 {
			panic(fmt.Sprintf("soa: column %d is not empty", i))
		}
	}
	t := &Table{
		columns: columns,
		logger:  options.Logger,
		next:    1,
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t.alloc = indexalloc.New[int32](indexalloc.CallbackFuncs[int32]{
		OnSetNumIndices:  t.resize,
		OnMoveIndexRange: t.move,
	}, options)
	return t
}

func (t *Table) resize(n int32) {
	for _, c := range t.columns {
		c.Resize(int(n))
	}
}

// move relocates a block of rows and rebinds every handle inside it. The
// block may hold several allocations; they all move by the same delta and
// are visited from the lowest one, so a new start never collides with an
// old one still to be visited.
func (t *Table) move(source indexalloc.IndexRange[int32], target int32) {
	for _, c := range t.columns {
		c.Move(int(source.Start), int(source.Count), int(target))
	}
	for off := int32(0); off < source.Count; {
		h, ok := t.owners.Delete(source.Start + off)
		if !ok {
			panic(fmt.Sprintf("soa: no owner at row %d", source.Start+off))
		}
		r, _ := t.rows.Get(h)
		r.Start = target + off
		t.rows.Set(h, r)
		t.owners.Set(r.Start, h)
		off += r.Count
	}
}

// Insert reserves count rows and returns their handle. The rows hold zero
// values when the table grew, or stale values when freed rows were recycled.
func (t *Table) Insert(count int) (Handle, error) {
	if count <= 0 || count > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCount, count)
	}
	t.Lock()
	defer t.Unlock()

	if t.next == math.MaxUint32 {
		return 0, ErrHandlesExhausted
	}
	start, err := t.alloc.Alloc(int32(count))
	if err != nil {
		return 0, err
	}
	h := t.next
	t.next++
	t.rows.Set(h, indexalloc.IndexRange[int32]{Start: start, Count: int32(count)})
	t.owners.Set(start, h)
	return h, nil
}

// Remove releases the rows of h.
func (t *Table) Remove(h Handle) error {
	t.Lock()
	defer t.Unlock()

	r, ok := t.rows.Delete(h)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	t.owners.Delete(r.Start)
	if err := t.alloc.Free(r.Start); err != nil {
		t.logger.Error("soa: free failed", "handle", h, "start", r.Start, "error", err)
		return err
	}
	return nil
}

// Rows returns the current rows of h. They are only valid until the next
// compaction.
func (t *Table) Rows(h Handle) (start, count int, ok bool) {
	t.RLock()
	defer t.RUnlock()
	r, ok := t.rows.Get(h)
	return int(r.Start), int(r.Count), ok
}

// View calls f with the rows of h under the read lock. f must not call
// any other Table method, it would deadlock once a writer is waiting.
func (t *Table) View(h Handle, f func(start, count int)) bool {
	t.RLock()
	defer t.RUnlock()
	r, ok := t.rows.Get(h)
	if ok {
		f(int(r.Start), int(r.Count))
	}
	return ok
}

// Update calls f with the rows of h under the write lock. f must not call
// any other Table method, it would deadlock.
func (t *Table) Update(h Handle, f func(start, count int)) bool {
	t.Lock()
	defer t.Unlock()
	r, ok := t.rows.Get(h)
	if ok {
		f(int(r.Start), int(r.Count))
	}
	return ok
}

// Scan calls f for every live block in row order until f returns false.
// It holds the read lock, so f must not call other Table methods; collect
// handles and act on them after Scan returns.
func (t *Table) Scan(f func(h Handle, start, count int) bool) {
	t.RLock()
	defer t.RUnlock()
	t.alloc.Scan(func(r indexalloc.IndexRange[int32]) bool {
		h, _ := t.owners.Get(r.Start)
		return f(h, int(r.Start), int(r.Count))
	})
}

// Checksum returns the xxh3 digest of the bytes encode produces for the rows
// of h. encode runs under the read lock.
func (t *Table) Checksum(h Handle, encode func(start, count int) []byte) (uint64, bool) {
	t.RLock()
	defer t.RUnlock()
	r, ok := t.rows.Get(h)
	if !ok {
		return 0, false
	}
	return xxh3.Hash(encode(int(r.Start), int(r.Count))), true
}

// Len returns the number of rows of every column, including freed ones.
func (t *Table) Len() int {
	t.RLock()
	defer t.RUnlock()
	return int(t.alloc.NumIndices())
}

// Live returns the number of live handles.
func (t *Table) Live() int {
	t.RLock()
	defer t.RUnlock()
	return t.rows.Len()
}

// Compact defragments the table when enough rows are unused, and reports
// whether it did.
func (t *Table) Compact() bool {
	t.Lock()
	defer t.Unlock()
	return t.alloc.MaybeDefragment()
}

// Defragment packs every live row to the front of the columns.
func (t *Table) Defragment() {
	t.Lock()
	defer t.Unlock()
	t.alloc.Defragment()
}

func (t *Table) Stats() indexalloc.Stats {
	t.RLock()
	defer t.RUnlock()
	return t.alloc.Stats()
}
