package indexalloc

// Stats is a snapshot of an IndexAllocator.
type Stats struct {
	NumIndices int
	Allocated  int
	Unused     int
	FreeRanges int

	// counters since creation.
	Allocs       uint64
	Recycled     uint64
	Grows        uint64
	Frees        uint64
	Defragments  uint64
	Moves        uint64
	MovedIndices uint64
}

// Stats
func (a *IndexAllocator[I]) Stats() Stats {
	stat := a.stats
	stat.NumIndices = a.numIndices
	stat.Allocated = a.allocated
	stat.Unused = a.numIndices - a.allocated
	stat.FreeRanges = a.free.len()
	return stat
}

// UnusedRate returns the share of unused indices in percent.
func (s Stats) UnusedRate() float64 {
	if s.NumIndices == 0 {
		return 0
	}
	return float64(s.Unused) / float64(s.NumIndices) * 100
}
