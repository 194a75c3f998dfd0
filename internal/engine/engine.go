// SPDX-License-Identifier: MIT
/*
Package engine binds the session to an opaque granular synthesis engine.

The engine is reached only through four raw entry points and one shared linear
memory region, the same surface a compiled engine module exports:

	create instance   -> instance pointer
	waveform pointer  -> byte offset of a float region of the requested length
	render            -> byte offset of FrameSize floats of output
	free instance

All pointers are byte offsets. Floats are addressed in element units, that is
the byte offset divided by four.

Thread Safety:
- A Binding and its Instances belong to the control domain. They are never
  called from the real-time audio callback.
*/
package engine

import "sampler/internal/params"

// FrameSize is the render quantum: every engine render call produces exactly
// this many samples, and every audio callback consumes exactly one frame.
const FrameSize = 128

// Frame is one render quantum. It is an array so that frames are copied by
// value and can never be shorter or longer than FrameSize.
type Frame [FrameSize]float32

// Ptr is a byte offset into the engine's linear memory.
type Ptr uint32

// Index converts a byte offset to an element offset for float access.
func (p Ptr) Index() uint32 { return uint32(p) / 4 }

// Memory is the engine's shared linear memory, addressed in float elements.
// Read and Write return the number of elements actually transferred, which is
// less than requested when the range runs past the end of memory.
type Memory interface {
	Read(index uint32, dst []float32) int
	Write(index uint32, src []float32) int
}

// Module is the raw four-entry-point surface of a synthesis engine.
type Module interface {
	CreateInstance() (Ptr, error)
	WaveformPtr(ctx Ptr, length int) (Ptr, error)
	Render(ctx Ptr, args [params.Count]float32) (Ptr, error)
	FreeInstance(ctx Ptr) error
	Memory() Memory
}
