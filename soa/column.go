package soa

import "slices"

// Column is one array of a Table. Every column always has one element per
// row of the table.
type Column interface {
	Len() int
	Resize(n int)
	Move(src, count, dst int)
}

// Slice is a Column backed by a Go slice.
type Slice[T any] struct {
	Data []T
}

func NewSlice[T any](capacity int) *Slice[T] {
	return &Slice[T]{Data: make([]T, 0, capacity)}
}

func (s *Slice[T]) Len() int {
	return len(s.Data)
}

// Resize grows the slice with zero values or shrinks it. The dropped tail is
// cleared so it does not keep pointers alive.
func (s *Slice[T]) Resize(n int) {
	if n >= len(s.Data) {
		s.Data = slices.Grow(s.Data, n-len(s.Data))[:n]
		return
	}
	clear(s.Data[n:])
	s.Data = s.Data[:n]
}

func (s *Slice[T]) Move(src, count, dst int) {
	copy(s.Data[dst:dst+count], s.Data[src:src+count])
}
