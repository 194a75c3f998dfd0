// SPDX-License-Identifier: MIT
/*
Package params holds the synthesis control values for one session.

The Set is a flat array indexed by ID, in the exact positional order the
engine's render entry point expects. Copying a Set copies every value, so a
snapshot handed to the render path can never alias the live model.
*/
package params

import "sync"

// ID identifies one synthesis parameter. The numeric value is the position of
// the parameter in the engine render call.
type ID int

const (
	SelectionStart ID = iota
	SelectionEnd
	GrainSize
	Voice1FilterCutoff
	Voice2FilterCutoff
	LinearSlopeLength
	SlopeLinearity
	Voice1MovementSamplesPerSample
	Voice2MovementSamplesPerSample
	Voice1SampleSpeedRatio
	Voice2SampleSpeedRatio
	Voice1SamplesBetweenGrains
	Voice2SamplesBetweenGrains
	Voice1Gain
	Voice2Gain
	Voice1GrainStartRandomnessSamples
	Voice2GrainStartRandomnessSamples

	// Count is the number of parameter values passed to the engine per render.
	Count
)

// Set is a complete parameter set. The zero value is not useful, use Defaults.
type Set [Count]float64

// Defaults returns a Set with every field at its default and the selection
// covering a waveform of the given length.
func Defaults(length int) Set {
	var s Set
	for id := range Count {
		s[id] = Descriptors[id].Default
	}
	s[SelectionStart] = 0
	s[SelectionEnd] = float64(length)
	return s
}

// Selection returns the selection bounds as sample indices.
func (s Set) Selection() (start, end int) {
	return int(s[SelectionStart]), int(s[SelectionEnd])
}

// GrainSize returns the grain length in samples.
func (s Set) GrainSize() int { return int(s[GrainSize]) }

// Voice returns the six per-voice controls of voice v (0 or 1).
func (s Set) Voice(v int) Voice {
	o := ID(v)
	return Voice{
		FilterCutoff:                s[Voice1FilterCutoff+o],
		MovementSamplesPerSample:    s[Voice1MovementSamplesPerSample+o],
		SampleSpeedRatio:            s[Voice1SampleSpeedRatio+o],
		SamplesBetweenGrains:        s[Voice1SamplesBetweenGrains+o],
		Gain:                        s[Voice1Gain+o],
		GrainStartRandomnessSamples: s[Voice1GrainStartRandomnessSamples+o],
	}
}

// Args converts the set into the positional float32 arguments of the engine
// render call.
func (s Set) Args() [Count]float32 {
	var a [Count]float32
	for i, v := range s {
		a[i] = float32(v)
	}
	return a
}

// Normalized returns a copy whose selection satisfies
// 0 <= start < end <= length. Bounds that are already ordered are kept; an
// inverted pair is swapped and a zero-width pair is widened by one sample.
func (s Set) Normalized(length int) Set {
	if length < 1 {
		return s
	}
	start, end := s.Selection()
	if start > end {
		start, end = end, start
	}
	start = clampInt(start, 0, length-1)
	end = clampInt(end, start+1, length)
	s[SelectionStart] = float64(start)
	s[SelectionEnd] = float64(end)
	return s
}

// Voice groups the per-voice controls for readability at call sites.
type Voice struct {
	FilterCutoff                float64 // signed: < 0 highpass, > 0 lowpass, 0 bypass
	MovementSamplesPerSample    float64
	SampleSpeedRatio            float64
	SamplesBetweenGrains        float64
	Gain                        float64
	GrainStartRandomnessSamples float64
}

// Model is the live, mutable parameter store of a session. It is a passive
// holder: Set never fails and never reorders the selection. Snapshot is where
// ordering is guaranteed.
type Model struct {
	mu     sync.RWMutex
	values Set
	length int
}

// NewModel returns a model with defaults and an empty waveform.
func NewModel() *Model {
	return &Model{values: Defaults(0)}
}

// Get returns the current value of id.
func (m *Model) Get(id ID) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[id]
}

// Set stores v for id as given. Clamping belongs to the editing boundary.
func (m *Model) Set(id ID, v float64) {
	m.mu.Lock()
	m.values[id] = v
	m.mu.Unlock()
}

// Selection returns the current selection bounds.
func (m *Model) Selection() (start, end int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values.Selection()
}

// SetSelection stores both bounds at once.
func (m *Model) SetSelection(start, end int) {
	m.mu.Lock()
	m.values[SelectionStart] = float64(start)
	m.values[SelectionEnd] = float64(end)
	m.mu.Unlock()
}

// Length returns the length of the waveform the selection refers to.
func (m *Model) Length() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.length
}

// Load records a new waveform length and resets the selection to [0, n).
func (m *Model) Load(n int) {
	m.mu.Lock()
	m.length = n
	m.values[SelectionStart] = 0
	m.values[SelectionEnd] = float64(n)
	m.mu.Unlock()
}

// Snapshot returns an immutable copy suitable for the render path.
func (m *Model) Snapshot() Set {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values.Normalized(m.length)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
