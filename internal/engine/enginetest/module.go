// SPDX-License-Identifier: MIT

// Package enginetest provides an in-memory engine.Module for deterministic
// tests of the binding, renderer and session without a real engine.
package enginetest

import (
	"errors"
	"fmt"
	"sync"

	"sampler/internal/engine"
	"sampler/internal/params"
)

// ErrInjected is returned by calls the test asked to fail.
var ErrInjected = errors.New("injected engine failure")

type instance struct {
	waveform engine.Ptr
	length   int
	out      engine.Ptr
	pos      int
	freed    bool
}

// Module echoes the uploaded waveform back, one frame per Render call,
// starting at sample 0 of the instance and scaled by voice 1 gain. Past the
// end of the waveform it outputs the running sample position as a negative
// number so tests can see the tail being trimmed.
type Module struct {
	mu        sync.Mutex
	mem       *engine.SliceMemory
	instances map[engine.Ptr]*instance

	// FailCreate makes CreateInstance fail.
	FailCreate bool
	// FailRenderAt makes the Nth Render call (1-based, across instances) fail.
	FailRenderAt int
	// ShortWaveform makes WaveformPtr hand out a region that runs past the end
	// of memory, so uploads cannot be read back in full.
	ShortWaveform bool

	Creates int
	Renders int
	Frees   int
	Args    [][params.Count]float32
}

// New returns an empty module.
func New() *Module {
	return &Module{
		mem:       engine.NewSliceMemory(1 << 12),
		instances: make(map[engine.Ptr]*instance),
	}
}

func (m *Module) Memory() engine.Memory { return m.mem }

func (m *Module) CreateInstance() (engine.Ptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailCreate {
		return 0, ErrInjected
	}
	m.Creates++
	ctx := m.mem.Alloc(1)
	m.instances[ctx] = &instance{out: m.mem.Alloc(engine.FrameSize)}
	return ctx, nil
}

func (m *Module) WaveformPtr(ctx engine.Ptr, length int) (engine.Ptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, err := m.lookup(ctx)
	if err != nil {
		return 0, err
	}
	if m.ShortWaveform {
		// Point at the last allocated element: at most one float fits.
		return engine.Ptr((m.mem.Size() - 1) * 4), nil
	}
	inst.waveform = m.mem.Alloc(length)
	inst.length = length
	inst.pos = 0
	return inst.waveform, nil
}

func (m *Module) Render(ctx engine.Ptr, args [params.Count]float32) (engine.Ptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, err := m.lookup(ctx)
	if err != nil {
		return 0, err
	}
	m.Renders++
	m.Args = append(m.Args, args)
	if m.FailRenderAt > 0 && m.Renders == m.FailRenderAt {
		return 0, ErrInjected
	}

	gain := args[params.Voice1Gain]
	src := m.mem.Slice(inst.waveform, inst.length)
	out := m.mem.Slice(inst.out, engine.FrameSize)
	for i := range out {
		if inst.pos < len(src) {
			out[i] = src[inst.pos] * gain
		} else {
			out[i] = -float32(inst.pos)
		}
		inst.pos++
	}
	return inst.out, nil
}

func (m *Module) FreeInstance(ctx engine.Ptr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, err := m.lookup(ctx)
	if err != nil {
		return err
	}
	inst.freed = true
	m.Frees++
	return nil
}

// Live returns the number of instances that have not been freed.
func (m *Module) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, inst := range m.instances {
		if !inst.freed {
			n++
		}
	}
	return n
}

// RenderCount returns the number of Render calls so far.
func (m *Module) RenderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Renders
}

func (m *Module) lookup(ctx engine.Ptr) (*instance, error) {
	inst, ok := m.instances[ctx]
	if !ok || inst.freed {
		return nil, fmt.Errorf("enginetest: unknown instance 0x%x", uint32(ctx))
	}
	return inst, nil
}

var _ engine.Module = (*Module)(nil)
