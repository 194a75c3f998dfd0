// SPDX-License-Identifier: MIT
/*
Package render produces the Processed Buffer: one full pass of the engine over
the loaded waveform with a single parameter snapshot.

A pass is the only way the engine position returns to the start. It always
begins at frame 0 of a freshly uploaded instance, renders ceil(N/FrameSize)
frames in order and trims the result to exactly N samples.
*/
package render

import (
	"fmt"

	"sampler/internal/engine"
	applog "sampler/internal/log"
	"sampler/internal/params"
	"sampler/pkg/bitint"
)

// NumFrames returns how many render quanta cover n samples.
func NumFrames(n int) int {
	return bitint.CeilDiv(n, engine.FrameSize)
}

// Offline renders n samples from the instance's current position. The
// returned slice has length and capacity n; the unused tail of the last frame
// is never visible to callers.
func Offline(b *engine.Binding, inst *engine.Instance, snap params.Set, n int) ([]float32, error) {
	numFrames := NumFrames(n)
	out := make([]float32, numFrames*engine.FrameSize)

	for f := range numFrames {
		frame, err := b.RenderFrame(inst, snap)
		if err != nil {
			return nil, fmt.Errorf("offline render aborted at frame %d of %d: %w", f, numFrames, err)
		}
		copy(out[f*engine.FrameSize:], frame[:])
	}

	return out[:n:n], nil
}

// Renderer owns the session's single engine instance and runs full passes on
// it. It is not safe for concurrent use; the Scheduler serializes passes.
type Renderer struct {
	binding  *engine.Binding
	instance *engine.Instance
	waveform []float32 // Samples currently uploaded to the instance.
}

// NewRenderer returns a renderer with no instance. The first Pass creates it.
func NewRenderer(b *engine.Binding) *Renderer {
	return &Renderer{binding: b}
}

// Pass renders the whole waveform with snap. When the instance has already
// rendered since its last upload, or the waveform changed, it is freed and
// recreated so the pass starts from frame 0. On error the instance is
// discarded; the next Pass creates a new one.
func (r *Renderer) Pass(waveform []float32, snap params.Set) ([]float32, error) {
	if err := r.reset(waveform); err != nil {
		r.discard()
		return nil, err
	}

	out, err := Offline(r.binding, r.instance, snap, len(waveform))
	if err != nil {
		r.discard()
		return nil, err
	}
	return out, nil
}

// Close frees the engine instance, if any.
func (r *Renderer) Close() error {
	if r.instance == nil {
		return nil
	}
	err := r.binding.FreeInstance(r.instance)
	r.instance = nil
	r.waveform = nil
	return err
}

func (r *Renderer) reset(waveform []float32) error {
	fresh := r.instance != nil && r.instance.Frames() == 0 && sameBuffer(r.waveform, waveform)
	if fresh {
		return nil
	}

	if r.instance != nil {
		if err := r.binding.FreeInstance(r.instance); err != nil {
			applog.Warnf("Render: Freeing previous instance: %v", err)
		}
		r.instance = nil
	}

	inst, err := r.binding.CreateInstance()
	if err != nil {
		return err
	}
	r.instance = inst

	if err := r.binding.UploadWaveform(inst, waveform); err != nil {
		return err
	}
	r.waveform = waveform
	return nil
}

func (r *Renderer) discard() {
	if r.instance != nil {
		_ = r.binding.FreeInstance(r.instance)
	}
	r.instance = nil
	r.waveform = nil
}

// sameBuffer reports whether a and b are the same immutable waveform. Waveforms
// are replaced wholesale on load, so identity is enough.
func sameBuffer(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
