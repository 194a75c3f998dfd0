// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"sync/atomic"

	"sampler/internal/engine"
)

// ErrBufferUnderrun reports callbacks that found the frame queue empty and
// emitted silence. It is produced by Underruns in the control domain; the
// callback itself never returns an error.
var ErrBufferUnderrun = errors.New("frame queue underrun")

// Mode selects what a callback emits when no queued frame is available.
type Mode int32

const (
	// ModeQueue emits silence on underrun.
	ModeQueue Mode = iota
	// ModePassThrough copies the live input frame to the output.
	ModePassThrough
)

func (m Mode) String() string {
	switch m {
	case ModeQueue:
		return "queue"
	case ModePassThrough:
		return "passthrough"
	}
	return fmt.Sprintf("Mode(%d)", int32(m))
}

// ParseMode maps "queue" and "passthrough" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "queue":
		return ModeQueue, true
	case "passthrough":
		return ModePassThrough, true
	}
	return ModeQueue, false
}

// FrameSource supplies exactly one frame per audio callback.
//
// Next runs in the real-time domain: it pops at most one frame, never blocks,
// never allocates and never fails. Counters are atomics so the control domain
// can read them without touching the callback.
type FrameSource struct {
	queue *FrameQueue
	mode  atomic.Int32

	delivered atomic.Uint64
	underruns atomic.Uint64
	reported  atomic.Uint64 // Underrun count at the last Underruns call.
}

// NewFrameSource creates a source reading from queue.
func NewFrameSource(queue *FrameQueue, mode Mode) *FrameSource {
	s := &FrameSource{queue: queue}
	s.mode.Store(int32(mode))
	return s
}

// Next fills out with the next frame. in is the live input frame and may be
// shorter than a frame or nil.
func (s *FrameSource) Next(in []float32, out *engine.Frame) {
	if s.queue != nil && s.queue.Pop(out) {
		s.delivered.Add(1)
		return
	}

	if Mode(s.mode.Load()) == ModePassThrough {
		n := copy(out[:], in)
		clear(out[n:])
		return
	}

	clear(out[:])
	s.underruns.Add(1)
}

// SetMode switches the underrun strategy. Safe to call while streaming.
func (s *FrameSource) SetMode(m Mode) {
	s.mode.Store(int32(m))
}

// Mode returns the current underrun strategy.
func (s *FrameSource) Mode() Mode {
	return Mode(s.mode.Load())
}

// Queue returns the queue the source pops from.
func (s *FrameSource) Queue() *FrameQueue {
	return s.queue
}

// Delivered returns the number of queued frames handed to the output.
func (s *FrameSource) Delivered() uint64 {
	return s.delivered.Load()
}

// UnderrunCount returns the total number of silent frames emitted.
func (s *FrameSource) UnderrunCount() uint64 {
	return s.underruns.Load()
}

// Underruns returns an error wrapping ErrBufferUnderrun if any underrun
// happened since the previous call. Control domain only.
func (s *FrameSource) Underruns() error {
	total := s.underruns.Load()
	prev := s.reported.Swap(total)
	if total == prev {
		return nil
	}
	return fmt.Errorf("%w: %d silent frames (%d total)", ErrBufferUnderrun, total-prev, total)
}
