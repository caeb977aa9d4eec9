package utils

import "context"

// UnlimitedChannel is a channel pair with an unbounded buffer in between: sends on In()
// never block while the channel is open.
type UnlimitedChannel[T any] struct {
	in     chan T
	out    chan T
	done   chan struct{}
	buffer *Deque[T]
	cancel context.CancelFunc
}

// NewUnlimitedChannel starts the pump goroutine and returns the channel.
func NewUnlimitedChannel[T any]() *UnlimitedChannel[T] {
	ctx, cancel := context.WithCancel(context.Background())
	c := &UnlimitedChannel[T]{
		in:     make(chan T),
		out:    make(chan T),
		done:   make(chan struct{}),
		buffer: NewDeque[T](),
		cancel: cancel,
	}
	go c.pump(ctx)
	return c
}

func (c *UnlimitedChannel[T]) pump(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		head, ok := c.buffer.Head()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case v := <-c.in:
				c.buffer.PushBack(v)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case v := <-c.in:
			c.buffer.PushBack(v)
		case c.out <- head:
			c.buffer.PopFront()
		}
	}
}

// In returns the send side.
func (c *UnlimitedChannel[T]) In() chan<- T { return c.in }

// Out returns the receive side.
func (c *UnlimitedChannel[T]) Out() <-chan T { return c.out }

// Close stops the pump. Buffered values stay available through Dump once Done is closed.
func (c *UnlimitedChannel[T]) Close() { c.cancel() }

// Done is closed when the pump has exited.
func (c *UnlimitedChannel[T]) Done() <-chan struct{} { return c.done }

// Len returns the buffered count. Only meaningful after Done.
func (c *UnlimitedChannel[T]) Len() uint64 { return c.buffer.Len() }

// Dump returns what is still buffered. Only safe after Done.
func (c *UnlimitedChannel[T]) Dump() []T { return c.buffer.Slice() }
