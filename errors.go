package indexalloc

import "errors"

var (
	// ErrInvalidArgument is returned by Alloc when count is not positive.
	ErrInvalidArgument = errors.New("indexalloc: count must be positive")

	// ErrInvalidIndex is returned when an index is not the start of a live allocation.
	ErrInvalidIndex = errors.New("indexalloc: not an allocated range start")

	// ErrIndexOverflow is returned by Alloc when the index space would no longer
	// fit in the index type.
	ErrIndexOverflow = errors.New("indexalloc: index space overflows index type")

	// ErrInvalidOptions wraps option validation failures.
	ErrInvalidOptions = errors.New("indexalloc/options: invalid options")
)
