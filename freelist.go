package indexalloc

import "math"

// freeList holds the free spans in no particular order.
type freeList struct {
	spans []span
}

func (f *freeList) push(start, count int) {
	f.spans = append(f.spans, span{start: start, count: count, free: true})
}

// leastExcess returns the position of the span whose count is the smallest
// one not below want, or -1 if every span is too small.
func (f *freeList) leastExcess(want int) int {
	pos, least := -1, math.MaxInt
	for i, s := range f.spans {
		excess := s.count - want
		if excess >= 0 && excess < least {
			pos, least = i, excess
			if excess == 0 {
				break
			}
		}
	}
	return pos
}

// take removes the span at pos; the last span fills its slot.
func (f *freeList) take(pos int) span {
	s := f.spans[pos]
	last := len(f.spans) - 1
	f.spans[pos] = f.spans[last]
	f.spans = f.spans[:last]
	return s
}

func (f *freeList) len() int {
	return len(f.spans)
}

func (f *freeList) reset() {
	f.spans = f.spans[:0]
}
