// SPDX-License-Identifier: MIT
package granular

import (
	"math"
	"math/rand/v2"

	"sampler/internal/params"
)

// maxGrains bounds the number of overlapping grains per voice. When every slot
// is busy a new grain replaces the oldest one.
const maxGrains = 64

type grain struct {
	active bool
	pos    float64 // Read position in the waveform, in samples.
	age    int
	dur    int
}

// shape holds the controls shared by both voices.
type shape struct {
	start, end  float64
	grainSize   int
	slopeLength float64
	linearity   float64
}

// voice is one independent grain stream with its own playhead and filter.
type voice struct {
	grains    [maxGrains]grain
	playhead  float64
	untilNext int
	started   bool
	filter    *butterworth
}

func newVoice(sampleRate float64) *voice {
	return &voice{filter: newButterworth(sampleRate)}
}

// next produces one output sample of the voice.
func (v *voice) next(wave []float32, sh shape, p params.Voice, rng *rand.Rand) float64 {
	if !v.started {
		v.playhead = sh.start
		v.started = true
	}
	v.playhead = wrap(v.playhead, sh.start, sh.end)

	if v.untilNext <= 0 {
		v.spawn(sh, p, rng)
		v.untilNext = max(1, int(p.SamplesBetweenGrains))
	}
	v.untilNext--

	speed := math.Max(p.SampleSpeedRatio, 0)
	var sum float64
	for i := range v.grains {
		g := &v.grains[i]
		if !g.active {
			continue
		}
		sum += readInterpolated(wave, g.pos) * envelope(g.age, g.dur, sh.slopeLength, sh.linearity)
		g.pos = wrap(g.pos+speed, sh.start, sh.end)
		g.age++
		if g.age >= g.dur {
			g.active = false
		}
	}

	v.playhead += p.MovementSamplesPerSample

	v.filter.setCutoff(p.FilterCutoff)
	return v.filter.process(sum) * math.Max(p.Gain, 0)
}

func (v *voice) spawn(sh shape, p params.Voice, rng *rand.Rand) {
	pos := v.playhead
	if r := p.GrainStartRandomnessSamples; r >= 1 {
		pos += rng.Float64() * r
	}

	slot, oldest := -1, -1
	for i := range v.grains {
		if !v.grains[i].active {
			slot = i
			break
		}
		if oldest < 0 || v.grains[i].age > v.grains[oldest].age {
			oldest = i
		}
	}
	if slot < 0 {
		slot = oldest
	}

	v.grains[slot] = grain{
		active: true,
		pos:    wrap(pos, sh.start, sh.end),
		dur:    max(1, sh.grainSize),
	}
}
