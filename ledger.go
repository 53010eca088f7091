package indexalloc

import "slices"

// ledger records, for every index of the space, the range that owns it.
//
//	+-----+-----+-----+-----+-----+-----+
//	|  3  | -1  | -2  |  1  |  2  | -1  |
//	+-----+-----+-----+-----+-----+-----+
//	   0     1     2     3     4     5
//
// A positive value starts a range of that many indices. A negative value is
// the offset back to the start of the owning range. Free and allocated ranges
// are recorded the same way; the allocator keeps free starts in a bitset.
//
// Inside free ranges only the start is exact. Other entries are negative but
// may point at any earlier index, so joining or splitting free ranges only
// rewrites a header.
type ledger []int

// put records a range of count indices at start.
func (l ledger) put(start, count int) {
	l[start] = count
	for i := 1; i < count; i++ {
		l[start+i] = -i
	}
}

// join grows the free range at start to count indices, swallowing the free
// range that started at from.
func (l ledger) join(start, count, from int) {
	l[start] = count
	l[from] = start - from
}

// startOf returns the start of the range owning index.
func (l ledger) startOf(index int) int {
	if v := l[index]; v < 0 {
		return index + v
	}
	return index
}

// grow appends a range of count indices and returns its start.
func (l *ledger) grow(count int) int {
	start := len(*l)
	*l = slices.Grow(*l, count)[:start+count]
	l.put(start, count)
	return start
}

func (l *ledger) truncate(n int) {
	*l = (*l)[:n]
}
