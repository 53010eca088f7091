package indexalloc

import (
	"fmt"
	"log/slog"
)

// Options is the configuration of IndexAllocator.
type Options struct {
	// Capacity is the initial capacity of the occupancy ledger.
	Capacity int

	// Defragment threshold, see NeedsDefragment.
	// Unused indices must be at least DefragDelta and their share of the
	// index space at least DefragRatio.
	DefragRatio float64
	DefragDelta int

	// Logger receives debug records about defragmentation. Nil discards.
	Logger *slog.Logger
}

// DefaultOptions
var DefaultOptions = Options{
	Capacity:    64,
	DefragRatio: 0.25,
	DefragDelta: 16,
	Logger:      nil,
}

func checkOptions(options Options) error {
	if options.Capacity < 0 {
		return fmt.Errorf("%w: negative capacity %d", ErrInvalidOptions, options.Capacity)
	}
	if options.DefragRatio < 0 || options.DefragRatio > 1 {
		return fmt.Errorf("%w: defrag ratio %v out of [0, 1]", ErrInvalidOptions, options.DefragRatio)
	}
	if options.DefragDelta < 0 {
		return fmt.Errorf("%w: negative defrag delta %d", ErrInvalidOptions, options.DefragDelta)
	}
	return nil
}
