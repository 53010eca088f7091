package indexalloc

// Defragment backfills every free range and shrinks the index space to the
// number of allocated indices.
//
// Holes are filled from the lowest one up. For each hole the highest
// allocation that fits is moved into it, together with the allocations
// directly below it as long as the block still fits. When nothing fits, the
// allocations right after the hole are shifted down over it instead. Each
// relocated block is reported with one MoveIndexRange call, and
// SetNumIndices is called once at the end with the smaller size.
//
//	before:  | A |  hole  | B | C |      |  D  |
//	fill:    | A | C |    | B |          |  D  |
//	shift:   | A | C | B |  D  |
//
// A hole of the same size as a smaller allocation further down is not
// preferred over the highest fitting one, so the number of moves is not
// always the minimum possible.
//
// The cost is O(n log k) for n ranges of k distinct counts, plus the number
// of moved indices.
func (a *IndexAllocator[I]) Defragment() {
	if a.free.len() == 0 {
		return
	}
	before, moves := a.numIndices, a.stats.Moves

	l := newSpanList(a.spans())
	for h := 0; len(l.nodes) > 0; {
		// everything before h is allocated and dense.
		for h != none && !l.nodes[h].free {
			h = l.nodes[h].next
		}
		if h == none {
			break
		}
		first, last := l.block(h)
		h = a.relocate(l, h, first, last)
	}

	a.ledger.truncate(a.numIndices)
	a.free.reset()
	a.marks.ClearAll()
	a.stats.Defragments++

	a.logger.Debug("indexalloc: defragmented",
		"before", before,
		"after", a.numIndices,
		"moves", a.stats.Moves-moves)

	a.callbacks.SetNumIndices(I(a.numIndices))
}

// spans walks the ledger and returns the ordered ranges covering the index
// space, with adjacent free ranges merged and a free tail cut off.
func (a *IndexAllocator[I]) spans() []span {
	spans := make([]span, 0, 2*a.free.len()+1)
	for i := 0; i < a.numIndices; {
		s := span{start: i, count: a.ledger[i], free: a.marks.Test(uint(i))}
		i = s.end()

		if n := len(spans); n > 0 && s.free && spans[n-1].free {
			prev := &spans[n-1]
			a.marks.Clear(uint(s.start))
			a.ledger.join(prev.start, prev.count+s.count, s.start)
			prev.count += s.count
			continue
		}
		spans = append(spans, s)
	}

	if n := len(spans); n > 0 && spans[n-1].free {
		a.marks.Clear(uint(spans[n-1].start))
		spans = spans[:n-1]
	}
	a.numIndices = 0
	if n := len(spans); n > 0 {
		a.numIndices = spans[n-1].end()
	}
	return spans
}

// relocate moves the block first..last to the start of the hole h and
// returns the node following the block.
func (a *IndexAllocator[I]) relocate(l *spanList, h, first, last int) int {
	hole := l.nodes[h].span
	source := span{start: l.nodes[first].start, count: l.nodes[last].end() - l.nodes[first].start}
	shift := first == l.nodes[h].next
	p := l.nodes[first].prev

	target := hole.start
	for n := first; ; n = l.nodes[n].next {
		l.retire(n)
		l.nodes[n].start = target
		a.ledger.put(target, l.nodes[n].count)
		a.marks.Clear(uint(target))
		target += l.nodes[n].count
		if n == last {
			break
		}
	}

	if shift {
		// the hole ends up behind the block. Only the part that held the
		// block needs new offsets; the rest already points below target.
		l.cut(h, h)
		l.link(h, h, last, l.nodes[last].next)
		l.nodes[h].start = target
		a.ledger[target] = hole.count
		for i := max(target+1, source.start); i < target+hole.count; i++ {
			a.ledger[i] = target - i
		}
		a.marks.Set(uint(target))
		a.joinNext(l, h)
	} else {
		l.cut(first, last)
		l.link(first, last, l.nodes[h].prev, h)
		if rest := hole.count - source.count; rest > 0 {
			l.nodes[h].start = target
			l.nodes[h].count = rest
			a.ledger[target] = rest
			a.marks.Set(uint(target))
		} else {
			l.cut(h, h)
		}

		// the vacated block becomes free and joins its free neighbours.
		s := l.push(span{start: source.start, count: source.count, free: true})
		l.link(s, s, p, l.nodes[p].next)
		a.ledger.put(source.start, source.count)
		a.marks.Set(uint(source.start))
		if l.nodes[p].free {
			a.joinNext(l, p)
			s = p
		}
		a.joinNext(l, s)
	}

	a.callbacks.MoveIndexRange(toRange[I](source), I(hole.start))
	a.stats.Moves++
	a.stats.MovedIndices += uint64(source.count)

	a.trim(l)
	return l.nodes[last].next
}

// joinNext merges the free node n with the next one when that is free too.
func (a *IndexAllocator[I]) joinNext(l *spanList, n int) {
	x := l.nodes[n].next
	if x == none || !l.nodes[x].free {
		return
	}
	a.marks.Clear(uint(l.nodes[x].start))
	a.ledger.join(l.nodes[n].start, l.nodes[n].count+l.nodes[x].count, l.nodes[x].start)
	l.nodes[n].count += l.nodes[x].count
	l.cut(x, x)
}

// trim cuts a free tail off the index space.
func (a *IndexAllocator[I]) trim(l *spanList) {
	t := l.tail
	if l.nodes[t].free {
		a.numIndices = l.nodes[t].start
		a.marks.Clear(uint(a.numIndices))
		l.cut(t, t)
		return
	}
	a.numIndices = l.nodes[t].end()
}
