// Package ringbuffer contains a ring buffer.
package ringbuffer

import (
	"fmt"
	"sync/atomic"
)

// RingBuffer is a lock-free ring buffer with a single reader.
type RingBuffer[T any] struct {
	size       uint64
	readIndex  atomic.Uint64
	writeIndex atomic.Uint64
	closed     atomic.Bool
	buffer     []atomic.Pointer[T]
	event      *event
}

// New allocates a RingBuffer.
func New[T any](size uint64) (*RingBuffer[T], error) {
	// indexes are mapped to slots with a modulo,
	// that must stay consistent when they overflow.
	if size == 0 || (size&(size-1)) != 0 {
		return nil, fmt.Errorf("size must be a power of two")
	}

	return &RingBuffer[T]{
		size:   size,
		buffer: make([]atomic.Pointer[T], size),
		event:  newEvent(),
	}, nil
}

// Close makes Pull() return false.
// Items that have not been pulled yet are discarded.
func (r *RingBuffer[T]) Close() {
	r.closed.Store(true)
	r.event.signal()
}

// Push pushes an item at the end of the buffer.
// It returns false if the buffer is full.
func (r *RingBuffer[T]) Push(data T) bool {
	for {
		writeIndex := r.writeIndex.Load()

		if (writeIndex - r.readIndex.Load()) >= r.size {
			return false
		}

		if r.writeIndex.CompareAndSwap(writeIndex, writeIndex+1) {
			r.buffer[writeIndex%r.size].Store(&data)
			r.event.signal()
			return true
		}
	}
}

// Pull pulls an item from the beginning of the buffer.
// It blocks until an item is available or the buffer is closed.
func (r *RingBuffer[T]) Pull() (T, bool) {
	for {
		if r.closed.Load() {
			var zero T
			return zero, false
		}

		i := r.readIndex.Load() % r.size
		res := r.buffer[i].Swap(nil)
		if res == nil {
			r.event.wait()
			continue
		}

		r.readIndex.Add(1)
		return *res, true
	}
}
