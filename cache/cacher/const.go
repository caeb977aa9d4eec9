package cacher

import "sync"

// Const is a lazily-loaded constant. Loading happens once, on first Get, until Clear.
type Const[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
	load   func() T
}

// NewConst returns a const cacher for load.
func NewConst[T any](load func() T) *Const[T] {
	if load == nil {
		panic("nil loader func")
	}
	return &Const[T]{load: load}
}

// IsLoaded reports whether the value has been loaded.
func (c *Const[T]) IsLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Get loads the value if needed and returns it.
func (c *Const[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.value = c.load()
		c.loaded = true
	}
	return c.value
}

// Clear drops the value; the next Get reloads it.
func (c *Const[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.value = zero
	c.loaded = false
}
