// SPDX-License-Identifier: MIT
package granular

import "math"

func clamp(lo, hi, v float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// mix blends from a to b by m, with m limited to [0, 1].
func mix(m, a, b float64) float64 {
	return a + (b-a)*clamp(0, 1, m)
}

// readInterpolated reads buf at a fractional index with linear interpolation.
// Indices past the last sample return the last sample; negative ones the first.
func readInterpolated(buf []float32, idx float64) float64 {
	n := len(buf)
	switch {
	case n == 0:
		return 0
	case idx <= 0:
		return float64(buf[0])
	case idx >= float64(n-1):
		return float64(buf[n-1])
	}
	i := int(idx)
	frac := idx - float64(i)
	a, b := float64(buf[i]), float64(buf[i+1])
	return a + (b-a)*frac
}

// wrap folds x into [lo, hi). An empty range returns lo.
func wrap(x, lo, hi float64) float64 {
	span := hi - lo
	if span <= 0 {
		return lo
	}
	x = math.Mod(x-lo, span)
	if x < 0 {
		x += span
	}
	return lo + x
}

// envelope returns the grain amplitude at age of dur samples.
//
// slopeLength is the fraction of each half of the grain spent fading, so 1
// fades across the whole grain and 0 gives a rectangular window. linearity
// blends the fade shape from a raised cosine (0) to a straight ramp (1).
func envelope(age, dur int, slopeLength, linearity float64) float64 {
	if dur <= 1 {
		return 1
	}
	slope := clamp(0, 1, slopeLength) * float64(dur) / 2
	if slope < 1 {
		return 1
	}

	edge := math.Min(float64(age), float64(dur-1-age))
	if edge >= slope {
		return 1
	}
	t := clamp(0, 1, edge/slope)
	curved := 0.5 - 0.5*math.Cos(math.Pi*t)
	return mix(linearity, curved, t)
}
