// SPDX-License-Identifier: MIT
package params

import (
	"fmt"
	"math"
)

// Descriptor describes the editable range of one parameter.
type Descriptor struct {
	Name    string  // Wire name used by the presentation bridge and TUI.
	Min     float64 // Inclusive lower bound.
	Max     float64 // Inclusive upper bound. Ignored for selection bounds.
	Default float64
	Step    float64 // Increment used by keyboard editing.
	Integer bool    // Values are rounded to whole numbers.
}

// Descriptors is indexed by ID. Selection bounds are limited by the waveform
// length rather than by Max.
var Descriptors = [Count]Descriptor{
	SelectionStart:                    {Name: "selectionStart", Min: 0, Max: math.MaxInt32, Default: 0, Step: 512, Integer: true},
	SelectionEnd:                      {Name: "selectionEnd", Min: 0, Max: math.MaxInt32, Default: 0, Step: 512, Integer: true},
	GrainSize:                         {Name: "grainSize", Min: 1, Max: 96000, Default: 4800, Step: 100, Integer: true},
	Voice1FilterCutoff:                {Name: "voice1.filterCutoff", Min: -20000, Max: 20000, Default: 0, Step: 100},
	Voice2FilterCutoff:                {Name: "voice2.filterCutoff", Min: -20000, Max: 20000, Default: 0, Step: 100},
	LinearSlopeLength:                 {Name: "linearSlopeLength", Min: 0, Max: 1, Default: 0.3, Step: 0.05},
	SlopeLinearity:                    {Name: "slopeLinearity", Min: 0, Max: 1, Default: 0.6, Step: 0.05},
	Voice1MovementSamplesPerSample:    {Name: "voice1.movementSamplesPerSample", Min: -8, Max: 8, Default: 1, Step: 0.05},
	Voice2MovementSamplesPerSample:    {Name: "voice2.movementSamplesPerSample", Min: -8, Max: 8, Default: 1, Step: 0.05},
	Voice1SampleSpeedRatio:            {Name: "voice1.sampleSpeedRatio", Min: 0.01, Max: 8, Default: 1, Step: 0.05},
	Voice2SampleSpeedRatio:            {Name: "voice2.sampleSpeedRatio", Min: 0.01, Max: 8, Default: 1.5, Step: 0.05},
	Voice1SamplesBetweenGrains:        {Name: "voice1.samplesBetweenGrains", Min: 1, Max: 96000, Default: 2400, Step: 50, Integer: true},
	Voice2SamplesBetweenGrains:        {Name: "voice2.samplesBetweenGrains", Min: 1, Max: 96000, Default: 2400, Step: 50, Integer: true},
	Voice1Gain:                        {Name: "voice1.gain", Min: 0, Max: 2, Default: 1, Step: 0.05},
	Voice2Gain:                        {Name: "voice2.gain", Min: 0, Max: 2, Default: 0, Step: 0.05},
	Voice1GrainStartRandomnessSamples: {Name: "voice1.grainStartRandomnessSamples", Min: 0, Max: 96000, Default: 0, Step: 100, Integer: true},
	Voice2GrainStartRandomnessSamples: {Name: "voice2.grainStartRandomnessSamples", Min: 0, Max: 96000, Default: 0, Step: 100, Integer: true},
}

// String returns the wire name of the parameter.
func (id ID) String() string {
	if id < 0 || id >= Count {
		return fmt.Sprintf("ID(%d)", int(id))
	}
	return Descriptors[id].Name
}

// Lookup resolves a wire name to its ID.
func Lookup(name string) (ID, bool) {
	for id := range Count {
		if Descriptors[id].Name == name {
			return id, true
		}
	}
	return 0, false
}

// Clamp brings v into the valid range of id. length is the current waveform
// length and bounds the selection fields. NaN collapses to the default.
func Clamp(id ID, v float64, length int) float64 {
	d := Descriptors[id]
	if math.IsNaN(v) {
		v = d.Default
	}
	hi := d.Max
	if id == SelectionStart || id == SelectionEnd {
		hi = float64(length)
	}
	if d.Integer {
		v = math.Floor(v)
	}
	return math.Max(d.Min, math.Min(hi, v))
}
