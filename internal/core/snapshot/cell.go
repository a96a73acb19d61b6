package snapshot

import "sync/atomic"

// Cell is a single-slot "latest value" holder. Writers publish whole values,
// readers always observe a fully formed value. Published values must not be
// mutated after Store.
type Cell[T any] struct {
	current    atomic.Pointer[T]
	generation atomic.Uint64
}

func NewCell[T any](initial T) *Cell[T] {
	c := &Cell[T]{}
	c.current.Store(&initial)
	return c
}

func (c *Cell[T]) Load() T {
	return *c.current.Load()
}

func (c *Cell[T]) Store(v T) {
	c.current.Store(&v)
	c.generation.Add(1)
}

// Generation increments on every Store; readers use it to detect a new value.
func (c *Cell[T]) Generation() uint64 {
	return c.generation.Load()
}
