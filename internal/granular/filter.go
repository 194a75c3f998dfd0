// SPDX-License-Identifier: MIT
package granular

import "math"

const (
	filterQ         = 0.707
	minCutoff       = 10.0
	nyquistFraction = 0.49
)

type filterMode int

const (
	bypass filterMode = iota
	lowpass
	highpass
)

// butterworth is a second-order section with coefficients normalized by a0.
// The sign of the cutoff selects the response: positive is lowpass, negative
// is highpass, zero passes the input through.
type butterworth struct {
	sampleRate float64

	mode   filterMode
	cutoff float64 // Signed cutoff the coefficients were computed for.

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

func newButterworth(sampleRate float64) *butterworth {
	return &butterworth{sampleRate: sampleRate}
}

// setCutoff recomputes coefficients only when the cutoff changes. Switching
// between lowpass and highpass clears the delay line.
func (f *butterworth) setCutoff(cutoff float64) {
	if cutoff == f.cutoff && f.mode != bypass {
		return
	}
	f.cutoff = cutoff

	mode := bypass
	switch {
	case cutoff > 0:
		mode = lowpass
	case cutoff < 0:
		mode = highpass
	}
	if mode != f.mode {
		f.reset()
		f.mode = mode
	}
	if mode == bypass {
		return
	}

	freq := clamp(minCutoff, f.sampleRate*nyquistFraction, math.Abs(cutoff))
	omega := 2 * math.Pi * freq / f.sampleRate
	cos := math.Cos(omega)
	alpha := math.Sin(omega) / (2 * filterQ)

	a0 := 1 + alpha
	f.a1 = -2 * cos / a0
	f.a2 = (1 - alpha) / a0

	if mode == lowpass {
		f.b0 = (1 - cos) / 2 / a0
		f.b1 = (1 - cos) / a0
		f.b2 = f.b0
	} else {
		f.b0 = (1 + cos) / 2 / a0
		f.b1 = -(1 + cos) / a0
		f.b2 = f.b0
	}
}

func (f *butterworth) process(x float64) float64 {
	if f.mode == bypass {
		return x
	}
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

func (f *butterworth) reset() {
	f.x1, f.x2, f.y1, f.y2 = 0, 0, 0, 0
}
