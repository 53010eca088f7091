package indexalloc

import "slices"

const none = -1

type node struct {
	span
	prev, next int

	// bucket is the position of count in spanList.counts, or none for
	// free nodes.
	bucket int
	moved  bool
}

// spanList is the ordered span list Defragment works on. Nodes are linked so
// a relocation only touches its neighbours, and allocated nodes are indexed
// by count so the highest one that fits a hole is found without a scan.
//
//	counts:  [ 1 ][ 2 ][ 4 ]        tree: max start over the
//	buckets:  a,d  b,e  c           top pending node of every count
//
// Nodes that have been relocated are retired from the index; their start no
// longer matches their position in the buckets.
type spanList struct {
	nodes []node
	tail  int

	counts  []int
	buckets [][]int
	tree    []int
}

// newSpanList links spans, which must be ordered and without adjacent free
// spans. Node ids are positions in spans.
func newSpanList(spans []span) *spanList {
	l := &spanList{nodes: make([]node, len(spans), len(spans)+len(spans)/2+1), tail: len(spans) - 1}
	for i, s := range spans {
		l.nodes[i] = node{span: s, prev: i - 1, next: i + 1, bucket: none}
		if !s.free {
			l.counts = append(l.counts, s.count)
		}
	}
	if n := len(spans); n > 0 {
		l.nodes[n-1].next = none
	}

	slices.Sort(l.counts)
	l.counts = slices.Compact(l.counts)
	l.buckets = make([][]int, len(l.counts))
	for i := range l.nodes {
		if l.nodes[i].free {
			continue
		}
		b, _ := slices.BinarySearch(l.counts, l.nodes[i].count)
		l.nodes[i].bucket = b
		l.buckets[b] = append(l.buckets[b], i)
	}

	m := len(l.counts)
	l.tree = make([]int, 2*m)
	for b, bucket := range l.buckets {
		l.tree[m+b] = bucket[len(bucket)-1]
	}
	for i := m - 1; i > 0; i-- {
		l.tree[i] = l.higher(l.tree[2*i], l.tree[2*i+1])
	}
	return l
}

func (l *spanList) higher(x, y int) int {
	if x == none || (y != none && l.nodes[y].start > l.nodes[x].start) {
		return y
	}
	return x
}

// highestFit returns the pending allocated node with the highest start whose
// count is at most count, or none.
func (l *spanList) highestFit(count int) int {
	r, found := slices.BinarySearch(l.counts, count)
	if found {
		r++
	}
	m := len(l.counts)
	res := none
	for lo, hi := m, m+r; lo < hi; lo, hi = lo>>1, hi>>1 {
		if lo&1 == 1 {
			res = l.higher(res, l.tree[lo])
			lo++
		}
		if hi&1 == 1 {
			hi--
			res = l.higher(res, l.tree[hi])
		}
	}
	return res
}

// retire drops n from the count index. It must be called before n moves.
func (l *spanList) retire(n int) {
	l.nodes[n].moved = true
	b := l.nodes[n].bucket
	bucket := l.buckets[b]
	if bucket[len(bucket)-1] != n {
		// popped once everything above it is gone.
		return
	}
	for len(bucket) > 0 && l.nodes[bucket[len(bucket)-1]].moved {
		bucket = bucket[:len(bucket)-1]
	}
	l.buckets[b] = bucket

	i := len(l.counts) + b
	l.tree[i] = none
	if len(bucket) > 0 {
		l.tree[i] = bucket[len(bucket)-1]
	}
	for i >>= 1; i > 0; i >>= 1 {
		l.tree[i] = l.higher(l.tree[2*i], l.tree[2*i+1])
	}
}

// block picks the nodes to move into the hole h. All allocated nodes before
// h must be in place. It returns the first and last node of the block.
func (l *spanList) block(h int) (first, last int) {
	hole := l.nodes[h].span

	// the highest allocation that fits, grown downwards while it still fits.
	if j := l.highestFit(hole.count); j != none && l.nodes[j].start > hole.start {
		lo, total := j, l.nodes[j].count
		for p := l.nodes[lo].prev; !l.nodes[p].free && total+l.nodes[p].count <= hole.count; p = l.nodes[lo].prev {
			lo = p
			total += l.nodes[p].count
		}
		return lo, j
	}

	// nothing fits, take the run of allocations right after the hole.
	first = l.nodes[h].next
	last = first
	for n := l.nodes[last].next; n != none && !l.nodes[n].free; n = l.nodes[n].next {
		last = n
	}
	return first, last
}

func (l *spanList) push(s span) int {
	l.nodes = append(l.nodes, node{span: s, prev: none, next: none, bucket: none})
	return len(l.nodes) - 1
}

// cut unlinks the chain first..last and joins its neighbours.
func (l *spanList) cut(first, last int) {
	p, x := l.nodes[first].prev, l.nodes[last].next
	if p != none {
		l.nodes[p].next = x
	}
	if x != none {
		l.nodes[x].prev = p
	} else {
		l.tail = p
	}
}

// link inserts the chain first..last between p and x.
func (l *spanList) link(first, last, p, x int) {
	l.nodes[first].prev = p
	l.nodes[last].next = x
	if p != none {
		l.nodes[p].next = first
	}
	if x != none {
		l.nodes[x].prev = last
	} else {
		l.tail = last
	}
}
