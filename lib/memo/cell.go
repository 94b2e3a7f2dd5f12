package memo

import (
	"context"
	"fmt"
	"sync"
)

type call[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func resolved[T any](value T, err error) *call[T] {
	c := &call[T]{done: make(chan struct{}), value: value, err: err}
	close(c.done)
	return c
}

// Cell holds a value that is computed at most once. Callers that arrive
// while the computation is running wait on the same in-flight call.
//
// Errors are cached like values, a failed Cell stays failed until it is
// invalidated.
type Cell[T any] struct {
	mu         sync.Mutex
	current    *call[T]
	generation uint64
}

// Get returns the cached value, starting compute if nothing is cached yet.
//
// compute runs on a context that is detached from the caller's
// cancellation, so a caller giving up does not fail the other waiters.
func (c *Cell[T]) Get(ctx context.Context, compute func(ctx context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	cl := c.current
	if cl == nil {
		cl = &call[T]{done: make(chan struct{})}
		c.current = cl
		go c.run(context.WithoutCancel(ctx), cl, c.generation, compute)
	}
	c.mu.Unlock()

	return wait(ctx, cl)
}

// PanicError is returned to the waiters of a computation that panicked.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("computation panicked: %v", e.Value)
}

func (c *Cell[T]) run(ctx context.Context, cl *call[T], generation uint64, compute func(ctx context.Context) (T, error)) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				cl.value, cl.err = zero, PanicError{Value: r}
			}
		}()
		cl.value, cl.err = compute(ctx)
	}()
	close(cl.done)

	c.mu.Lock()
	defer c.mu.Unlock()
	// a Set during the computation is overwritten, an Invalidate is not
	if c.generation == generation {
		c.current = cl
	}
}

func wait[T any](ctx context.Context, cl *call[T]) (T, error) {
	select {
	case <-cl.done:
		return cl.value, cl.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Set stores a resolved value, replacing whatever the cell currently holds.
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = resolved(value, nil)
}

// SetAt stores a resolved value only if the cell was not invalidated since
// generation was read from Generation. It reports whether the value was
// stored.
func (c *Cell[T]) SetAt(generation uint64, value T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != generation {
		return false
	}
	c.current = resolved(value, nil)
	return true
}

// Generation changes every time the cell is invalidated.
func (c *Cell[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Invalidate forgets the cached value so that the next Get recomputes it.
func (c *Cell[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.generation++
}

// Peek returns the cached value if the cell holds a successful result.
func (c *Cell[T]) Peek() (T, bool) {
	c.mu.Lock()
	cl := c.current
	c.mu.Unlock()

	var zero T
	if cl == nil {
		return zero, false
	}
	select {
	case <-cl.done:
		if cl.err != nil {
			return zero, false
		}
		return cl.value, true
	default:
		return zero, false
	}
}
