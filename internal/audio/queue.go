// SPDX-License-Identifier: MIT
package audio

import (
	"sync/atomic"

	"sampler/internal/engine"
	"sampler/pkg/bitint"
)

// FrameQueue is a lock-free single-producer/single-consumer ring of frames.
//
// The producer (control domain) calls Push and DropQueued. The consumer (the
// audio callback) calls Pop. Neither side ever blocks or allocates.
//
// head and tail are free-running counters; the slot index is counter & mask,
// which is why the capacity is rounded up to a power of two.
type FrameQueue struct {
	buf  []engine.Frame
	mask uint64

	head atomic.Uint64 // Next slot to pop. Written by the consumer only.
	tail atomic.Uint64 // Next slot to push. Written by the producer only.
	skip atomic.Uint64 // Frames before this counter are stale. Written by the producer only.
}

// NewFrameQueue creates a queue holding at least capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	n := bitint.NextPowerOfTwo(max(capacity, 2))
	return &FrameQueue{
		buf:  make([]engine.Frame, n),
		mask: uint64(n - 1),
	}
}

// Push copies f into the queue. It returns false when the queue is full.
func (q *FrameQueue) Push(f *engine.Frame) bool {
	t := q.tail.Load()
	if t-q.head.Load() >= uint64(len(q.buf)) {
		return false
	}
	q.buf[t&q.mask] = *f
	q.tail.Store(t + 1) // Publishes the slot to the consumer.
	return true
}

// Pop copies the oldest frame into dst. It returns false when the queue is
// empty, leaving dst untouched.
func (q *FrameQueue) Pop(dst *engine.Frame) bool {
	h := q.head.Load()
	if s := q.skip.Load(); s > h {
		h = s
		q.head.Store(h)
	}
	if h == q.tail.Load() {
		return false
	}
	*dst = q.buf[h&q.mask]
	q.head.Store(h + 1) // Releases the slot to the producer.
	return true
}

// DropQueued marks every frame pushed so far as stale. The consumer skips them
// on its next Pop. Called by the producer when newer audio replaces the old.
func (q *FrameQueue) DropQueued() {
	q.skip.Store(q.tail.Load())
}

// Len returns the number of frames waiting, as seen by the caller.
func (q *FrameQueue) Len() int {
	h := max(q.head.Load(), q.skip.Load())
	t := q.tail.Load()
	if t <= h {
		return 0
	}
	return int(t - h)
}

// Cap returns the queue capacity in frames.
func (q *FrameQueue) Cap() int {
	return len(q.buf)
}

// Full reports whether a Push would fail.
func (q *FrameQueue) Full() bool {
	return q.tail.Load()-q.head.Load() >= uint64(len(q.buf))
}
