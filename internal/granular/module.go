// SPDX-License-Identifier: MIT
/*
Package granular is the native, in-process granular synthesis engine. It
implements engine.Module over an engine.SliceMemory, so the binding drives it
through the same raw entry points and byte-offset pointers as a compiled
engine module.

Each instance runs two voices. A voice spawns a grain every
samplesBetweenGrains samples at its playhead, optionally jittered forward by
up to grainStartRandomnessSamples. The playhead drifts by
movementSamplesPerSample per output sample and wraps inside the selection.
Grains read the waveform at sampleSpeedRatio with linear interpolation and are
shaped by an envelope built from linearSlopeLength and slopeLinearity. Each
voice then passes through its own biquad filter and gain, and the two voices
are summed and limited to [-1, 1].
*/
package granular

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"sampler/internal/engine"
	applog "sampler/internal/log"
	"sampler/internal/params"
)

const (
	// DefaultSampleRate is the rate filter coefficients are computed for.
	DefaultSampleRate = 44100.0
	// DefaultSeed seeds grain start randomness.
	DefaultSeed uint64 = 1

	numVoices = 2
)

// ErrUnknownInstance is returned for a context pointer that was never created
// or has already been freed.
var ErrUnknownInstance = errors.New("granular: unknown or freed instance")

type region struct {
	ptr  engine.Ptr
	n    int // Floats in use.
	size int // Floats reserved.
}

type instance struct {
	ctx      region
	out      region
	waveform region
	voices   [numVoices]*voice
	rng      *rand.Rand
}

// Option configures a Module.
type Option func(*Module)

// WithSampleRate sets the rate used for filter design.
func WithSampleRate(rate float64) Option {
	return func(m *Module) {
		if rate > 0 {
			m.sampleRate = rate
		}
	}
}

// WithSeed sets the seed of every instance's random source. Instances created
// with the same seed render identical output for identical input.
func WithSeed(seed uint64) Option {
	return func(m *Module) { m.seed = seed }
}

// Module is the native engine. It is safe for concurrent use, although the
// binding only ever calls it from one goroutine at a time.
type Module struct {
	mu         sync.Mutex
	mem        *engine.SliceMemory
	instances  map[engine.Ptr]*instance
	free       []region // Released regions available for reuse.
	sampleRate float64
	seed       uint64
}

// New returns a module with an empty memory.
func New(opts ...Option) *Module {
	m := &Module{
		mem:        engine.NewSliceMemory(1 << 16),
		instances:  make(map[engine.Ptr]*instance),
		sampleRate: DefaultSampleRate,
		seed:       DefaultSeed,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Module) Memory() engine.Memory { return m.mem }

func (m *Module) CreateInstance() (engine.Ptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst := &instance{
		ctx: m.reserve(1),
		out: m.reserve(engine.FrameSize),
		rng: rand.New(rand.NewPCG(m.seed, m.seed^0x9e3779b97f4a7c15)),
	}
	for i := range inst.voices {
		inst.voices[i] = newVoice(m.sampleRate)
	}
	ctx := inst.ctx.ptr
	m.instances[ctx] = inst
	applog.Debugf("Granular: Created instance 0x%x", uint32(ctx))
	return ctx, nil
}

// WaveformPtr returns a region of length floats for the instance's waveform.
// A second call replaces the previous region and rewinds the voices.
func (m *Module) WaveformPtr(ctx engine.Ptr, length int) (engine.Ptr, error) {
	if length < 0 {
		return 0, fmt.Errorf("granular: negative waveform length %d", length)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	inst, err := m.lookup(ctx)
	if err != nil {
		return 0, err
	}
	if inst.waveform.size > 0 {
		m.release(inst.waveform)
	}
	inst.waveform = m.reserve(length)
	for i := range inst.voices {
		inst.voices[i] = newVoice(m.sampleRate)
	}
	return inst.waveform.ptr, nil
}

// Render computes the next frame into the instance's output region and
// returns its pointer. Without a waveform the frame is silent.
func (m *Module) Render(ctx engine.Ptr, args [params.Count]float32) (engine.Ptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, err := m.lookup(ctx)
	if err != nil {
		return 0, err
	}

	out := m.mem.Slice(inst.out.ptr, engine.FrameSize)
	wave := m.mem.Slice(inst.waveform.ptr, inst.waveform.n)
	if len(wave) == 0 {
		clear(out)
		return inst.out.ptr, nil
	}

	var set params.Set
	for i, a := range args {
		set[i] = float64(a)
	}
	set = set.Normalized(len(wave))
	start, end := set.Selection()
	sh := shape{
		start:       float64(start),
		end:         float64(end),
		grainSize:   set.GrainSize(),
		slopeLength: set[params.LinearSlopeLength],
		linearity:   set[params.SlopeLinearity],
	}
	var vp [numVoices]params.Voice
	for i := range vp {
		vp[i] = set.Voice(i)
	}

	for i := range out {
		var s float64
		for v, vc := range inst.voices {
			s += vc.next(wave, sh, vp[v], inst.rng)
		}
		out[i] = float32(clamp(-1, 1, s))
	}
	return inst.out.ptr, nil
}

// FreeInstance releases the instance and recycles its context, output and
// waveform regions, so a later CreateInstance may return the same pointer.
func (m *Module) FreeInstance(ctx engine.Ptr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, err := m.lookup(ctx)
	if err != nil {
		return err
	}
	m.release(inst.ctx)
	m.release(inst.out)
	if inst.waveform.size > 0 {
		m.release(inst.waveform)
	}
	delete(m.instances, ctx)
	applog.Debugf("Granular: Freed instance 0x%x", uint32(ctx))
	return nil
}

// Instances returns the number of live instances.
func (m *Module) Instances() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.instances)
}

func (m *Module) lookup(ctx engine.Ptr) (*instance, error) {
	inst, ok := m.instances[ctx]
	if !ok {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnknownInstance, uint32(ctx))
	}
	return inst, nil
}

// reserve takes the smallest released region that fits, or allocates.
func (m *Module) reserve(n int) region {
	best := -1
	for i, r := range m.free {
		if r.size >= n && (best < 0 || r.size < m.free[best].size) {
			best = i
		}
	}
	if best < 0 {
		return region{ptr: m.mem.Alloc(n), n: n, size: n}
	}
	r := m.free[best]
	m.free = append(m.free[:best], m.free[best+1:]...)
	clear(m.mem.Slice(r.ptr, r.size))
	r.n = n
	return r
}

func (m *Module) release(r region) {
	r.n = r.size
	m.free = append(m.free, r)
}

var _ engine.Module = (*Module)(nil)
