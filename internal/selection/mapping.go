// SPDX-License-Identifier: MIT
package selection

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSelection reports a zero-width or out-of-bounds selection.
// The editor never produces one; Validate reports it at the boundary.
var ErrInvalidSelection = errors.New("invalid selection")

// SampleAt maps a pixel X coordinate to a sample index:
// floor(px / width * length), clamped to [0, length].
func SampleAt(px, width float64, length int) int {
	if width <= 0 || length <= 0 || math.IsNaN(px) {
		return 0
	}
	s := math.Floor(px / width * float64(length))
	if s <= 0 {
		return 0
	}
	if s >= float64(length) {
		return length
	}
	return int(s)
}

// PixelAt maps a sample index back to a pixel: floor(sample / length * width).
func PixelAt(sample int, width float64, length int) float64 {
	if width <= 0 || length <= 0 {
		return 0
	}
	return math.Floor(float64(sample) / float64(length) * width)
}

// Validate checks 0 <= start < end <= length.
func Validate(start, end, length int) error {
	if start < 0 || end > length || start >= end {
		return fmt.Errorf("%w: [%d, %d) on length %d", ErrInvalidSelection, start, end, length)
	}
	return nil
}

// Repair returns the nearest valid selection for a buffer of the given
// length, swapping inverted bounds first. length must be at least 1.
func Repair(start, end, length int) (int, int) {
	if start > end {
		start, end = end, start
	}
	start = max(0, min(start, length-1))
	end = max(start+1, min(end, length))
	return start, end
}
