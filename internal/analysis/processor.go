// SPDX-License-Identifier: MIT
package analysis

// AudioProcessor analyzes blocks of mono samples in [-1, 1].
type AudioProcessor interface {
	Process(samples []float32)
}

// FFTResultProvider decouples spectrum consumers, such as band energy and the
// spectrum publisher, from the FFT implementation.
type FFTResultProvider interface {
	GetMagnitudesInto(dst []float64) error
	GetFrequencyForBin(binIndex int) float64
	GetFFTSize() int
	GetSampleRate() float64
}
