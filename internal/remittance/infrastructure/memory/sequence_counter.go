package memory

import (
	"context"
	"sync"
)

// SequenceCounter is an in-process counter for tests and single-run tools.
type SequenceCounter struct {
	mu    sync.Mutex
	value int
}

// NewSequenceCounter constructs a counter whose next value is start+1.
func NewSequenceCounter(start int) *SequenceCounter {
	if start < 0 {
		start = 0
	}
	return &SequenceCounter{value: start}
}

// Next increments and returns the counter.
func (c *SequenceCounter) Next(ctx context.Context) (int, error) {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value, nil
}

// Current returns the last handed out value.
func (c *SequenceCounter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
