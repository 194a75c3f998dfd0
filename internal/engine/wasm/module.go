// SPDX-License-Identifier: MIT
/*
Package wasm hosts a compiled granular engine with wazero and exposes it as an
engine.Module.

The engine binary must export:

	create_granular_instance() -> i32
	get_granular_waveform_ptr(ctx i32, len i32) -> i32
	render_granular(ctx i32, 17 x f32) -> i32
	free_granular_instance(ctx i32)
	memory

and may import env.log_err(ptr i32, len i32), which the host forwards to the
logger. Engines call it from their panic hook.
*/
package wasm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"sampler/internal/engine"
	applog "sampler/internal/log"
	"sampler/internal/params"
)

const (
	hostModule = "env"

	exportCreate   = "create_granular_instance"
	exportWaveform = "get_granular_waveform_ptr"
	exportRender   = "render_granular"
	exportFree     = "free_granular_instance"
)

// ErrMissingExport is returned when the binary lacks one of the engine
// entry points or its memory.
var ErrMissingExport = errors.New("wasm: missing engine export")

// Module is a running engine instance of a compiled binary. Calls are not safe
// for concurrent use; the binding serializes them.
type Module struct {
	ctx     context.Context
	runtime wazero.Runtime
	module  api.Module
	memory  *Memory

	create, waveform, render, free api.Function

	args []uint64 // Reused render call arguments.
}

// Load reads and instantiates the engine binary at path.
func Load(ctx context.Context, path string) (*Module, error) {
	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wasm: read engine: %w", err)
	}
	return New(ctx, bin)
}

// New compiles and instantiates an engine binary. ctx is used for every later
// call into the module.
func New(ctx context.Context, bin []byte) (*Module, error) {
	r := wazero.NewRuntime(ctx)

	_, err := r.NewHostModuleBuilder(hostModule).
		NewFunctionBuilder().
		WithFunc(logErr).
		Export("log_err").
		Instantiate(ctx)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("wasm: host module: %w", err)
	}

	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("wasm: compile engine: %w", err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("granular"))
	if err != nil {
		r.Close(ctx)
		return nil, fmt.Errorf("wasm: instantiate engine: %w", err)
	}

	m := &Module{
		ctx:      ctx,
		runtime:  r,
		module:   mod,
		create:   mod.ExportedFunction(exportCreate),
		waveform: mod.ExportedFunction(exportWaveform),
		render:   mod.ExportedFunction(exportRender),
		free:     mod.ExportedFunction(exportFree),
		args:     make([]uint64, 1+params.Count),
	}

	for name, fn := range map[string]api.Function{
		exportCreate: m.create, exportWaveform: m.waveform,
		exportRender: m.render, exportFree: m.free,
	} {
		if fn == nil {
			r.Close(ctx)
			return nil, fmt.Errorf("%w: %s", ErrMissingExport, name)
		}
	}
	if mod.Memory() == nil {
		r.Close(ctx)
		return nil, fmt.Errorf("%w: memory", ErrMissingExport)
	}
	m.memory = &Memory{mem: mod.Memory()}

	applog.Infof("Wasm: Engine loaded (%d bytes of memory)", mod.Memory().Size())
	return m, nil
}

func (m *Module) Memory() engine.Memory { return m.memory }

func (m *Module) CreateInstance() (engine.Ptr, error) {
	res, err := m.create.Call(m.ctx)
	if err != nil {
		return 0, fmt.Errorf("wasm: %s: %w", exportCreate, err)
	}
	ptr := engine.Ptr(api.DecodeU32(res[0]))
	if ptr == 0 {
		return 0, fmt.Errorf("wasm: %s returned null", exportCreate)
	}
	return ptr, nil
}

func (m *Module) WaveformPtr(ctx engine.Ptr, length int) (engine.Ptr, error) {
	if length < 0 || length > math.MaxInt32 {
		return 0, fmt.Errorf("wasm: waveform length %d out of range", length)
	}
	res, err := m.waveform.Call(m.ctx, api.EncodeU32(uint32(ctx)), api.EncodeU32(uint32(length)))
	if err != nil {
		return 0, fmt.Errorf("wasm: %s: %w", exportWaveform, err)
	}
	return engine.Ptr(api.DecodeU32(res[0])), nil
}

func (m *Module) Render(ctx engine.Ptr, args [params.Count]float32) (engine.Ptr, error) {
	m.args[0] = api.EncodeU32(uint32(ctx))
	for i, a := range args {
		m.args[i+1] = api.EncodeF32(a)
	}
	res, err := m.render.Call(m.ctx, m.args...)
	if err != nil {
		return 0, fmt.Errorf("wasm: %s: %w", exportRender, err)
	}
	return engine.Ptr(api.DecodeU32(res[0])), nil
}

func (m *Module) FreeInstance(ctx engine.Ptr) error {
	if _, err := m.free.Call(m.ctx, api.EncodeU32(uint32(ctx))); err != nil {
		return fmt.Errorf("wasm: %s: %w", exportFree, err)
	}
	return nil
}

// Close releases the runtime and every module in it.
func (m *Module) Close() error {
	return m.runtime.Close(m.ctx)
}

// logErr is the env.log_err host function.
func logErr(_ context.Context, mod api.Module, ptr, length uint32) {
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		applog.Errorf("Wasm: Engine error message out of range (ptr=%d len=%d)", ptr, length)
		return
	}
	applog.Errorf("Wasm: Engine: %s", msg)
}

// Memory adapts wasm linear memory to engine.Memory. Floats are stored
// little-endian, four bytes each.
type Memory struct {
	mem api.Memory
}

// span returns how many whole floats from index fit in memory, up to n.
func (m *Memory) span(index uint32, n int) uint32 {
	size := uint64(m.mem.Size())
	off := uint64(index) * 4
	if off >= size {
		return 0
	}
	return uint32(min(uint64(n), (size-off)/4))
}

func (m *Memory) Read(index uint32, dst []float32) int {
	n := m.span(index, len(dst))
	if n == 0 {
		return 0
	}
	raw, ok := m.mem.Read(index*4, n*4)
	if !ok {
		return 0
	}
	decodeFloats(dst[:n], raw)
	return int(n)
}

func (m *Memory) Write(index uint32, src []float32) int {
	n := m.span(index, len(src))
	if n == 0 {
		return 0
	}
	// Read returns a view of linear memory, so encoding into it writes through.
	raw, ok := m.mem.Read(index*4, n*4)
	if !ok {
		return 0
	}
	encodeFloats(raw, src[:n])
	return int(n)
}

func decodeFloats(dst []float32, raw []byte) {
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
}

func encodeFloats(raw []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
}

var (
	_ engine.Module = (*Module)(nil)
	_ engine.Memory = (*Memory)(nil)
)
