// SPDX-License-Identifier: MIT
package engine

import (
	"fmt"

	applog "sampler/internal/log"
	"sampler/internal/params"
)

// Instance is the handle of one running engine instance. Its zero value and a
// nil pointer are both "not ready".
type Instance struct {
	ctx      Ptr
	live     bool
	poisoned bool

	waveform    Ptr
	waveformLen int
	frames      uint64 // Frames rendered since the last upload.
}

// Frames reports how many frames the instance has rendered since the last
// waveform upload, which is its playback position in frames.
func (i *Instance) Frames() uint64 {
	if i == nil {
		return 0
	}
	return i.frames
}

// WaveformLen returns the length of the uploaded waveform.
func (i *Instance) WaveformLen() int {
	if i == nil {
		return 0
	}
	return i.waveformLen
}

// Binding drives one engine module through its raw entry points.
type Binding struct {
	module Module
	out    Frame // Scratch frame reused by RenderFrame.
}

// NewBinding wraps a loaded module. A nil module yields a binding whose
// CreateInstance always fails with ErrModuleNotInitialized.
func NewBinding(module Module) *Binding {
	return &Binding{module: module}
}

// CreateInstance asks the module for a new engine instance.
func (b *Binding) CreateInstance() (*Instance, error) {
	if b.module == nil {
		return nil, ErrModuleNotInitialized
	}
	ctx, err := b.module.CreateInstance()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModuleNotInitialized, err)
	}
	applog.Debugf("Engine: Created instance at 0x%x", uint32(ctx))
	return &Instance{ctx: ctx, live: true}, nil
}

// UploadWaveform copies samples into engine memory at the offset the engine
// allocates for them and verifies the copy by reading it back. It may
// allocate and must never be called from the audio callback.
//
// A length disagreement poisons the instance: every later call fails and the
// caller must free it and create a new one.
func (b *Binding) UploadWaveform(inst *Instance, samples []float32) error {
	if err := b.ready(inst); err != nil {
		return err
	}

	ptr, err := b.module.WaveformPtr(inst.ctx, len(samples))
	if err != nil {
		return fmt.Errorf("engine: waveform allocation of %d samples: %w", len(samples), err)
	}

	mem := b.module.Memory()
	written := mem.Write(ptr.Index(), samples)

	readback := make([]float32, len(samples))
	read := mem.Read(ptr.Index(), readback)

	if written != len(samples) || read != len(samples) {
		inst.poisoned = true
		applog.Errorf("Engine: Upload mismatch (want %d, wrote %d, read back %d)", len(samples), written, read)
		return fmt.Errorf("%w: want %d samples, wrote %d, read back %d",
			ErrUploadLengthMismatch, len(samples), written, read)
	}

	inst.waveform = ptr
	inst.waveformLen = len(samples)
	inst.frames = 0
	applog.Debugf("Engine: Uploaded %d samples at element %d", len(samples), ptr.Index())
	return nil
}

// RenderFrame renders the next FrameSize samples. Calls advance the engine's
// grain phase and position, so they are not idempotent and must follow the
// contiguous output order.
func (b *Binding) RenderFrame(inst *Instance, snap params.Set) (Frame, error) {
	if err := b.ready(inst); err != nil {
		return Frame{}, err
	}

	ptr, err := b.module.Render(inst.ctx, snap.Args())
	if err != nil {
		return Frame{}, fmt.Errorf("engine: render frame %d: %w", inst.frames, err)
	}
	if n := b.module.Memory().Read(ptr.Index(), b.out[:]); n != FrameSize {
		return Frame{}, fmt.Errorf("engine: render frame %d returned %d samples, want %d", inst.frames, n, FrameSize)
	}

	inst.frames++
	return b.out, nil
}

// FreeInstance releases all engine-side memory of the instance. The handle is
// unusable afterwards.
func (b *Binding) FreeInstance(inst *Instance) error {
	if inst == nil || !inst.live {
		return fmt.Errorf("%w: instance freed", ErrEngineNotReady)
	}
	inst.live = false
	if err := b.module.FreeInstance(inst.ctx); err != nil {
		return fmt.Errorf("engine: free instance: %w", err)
	}
	applog.Debugf("Engine: Freed instance at 0x%x", uint32(inst.ctx))
	return nil
}

func (b *Binding) ready(inst *Instance) error {
	switch {
	case inst == nil:
		return fmt.Errorf("%w: no instance", ErrEngineNotReady)
	case !inst.live:
		return fmt.Errorf("%w: instance freed", ErrEngineNotReady)
	case inst.poisoned:
		return fmt.Errorf("%w: instance unusable after failed upload", ErrEngineNotReady)
	}
	return nil
}
