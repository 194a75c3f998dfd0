// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FrequencyBand names a frequency range in Hz, [LowHz, HighHz).
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands covers the audible range in six bands. The top band extends to
// whatever Nyquist frequency the spectrum has.
var DefaultBands = []FrequencyBand{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "lowMid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000, HighHz: math.Inf(1)},
}

// BandEnergy reduces a magnitude spectrum to one RMS level per band.
type BandEnergy struct {
	provider FFTResultProvider
	bands    []FrequencyBand
	mags     []float64
	spans    [][2]int // Bin range [lo, hi) of each band.
}

// NewBandEnergy creates a reducer over the provider's spectrum.
func NewBandEnergy(provider FFTResultProvider, bands []FrequencyBand) *BandEnergy {
	b := &BandEnergy{
		provider: provider,
		bands:    bands,
		mags:     make([]float64, provider.GetFFTSize()/2+1),
		spans:    make([][2]int, len(bands)),
	}
	// Bin frequencies increase with the index.
	for j, band := range bands {
		lo, hi := len(b.mags), len(b.mags)
		for i := range b.mags {
			freq := provider.GetFrequencyForBin(i)
			if freq >= band.LowHz && lo == len(b.mags) {
				lo = i
			}
			if freq >= band.HighHz {
				hi = i
				break
			}
		}
		b.spans[j] = [2]int{lo, max(lo, hi)}
	}
	return b
}

// Bands returns the band layout.
func (b *BandEnergy) Bands() []FrequencyBand { return b.bands }

// Levels writes the RMS magnitude of each band into dst, which must hold one
// value per band. Bands without any bin report 0.
func (b *BandEnergy) Levels(dst []float64) error {
	if err := b.provider.GetMagnitudesInto(b.mags); err != nil {
		return err
	}
	for j, span := range b.spans {
		seg := b.mags[span[0]:span[1]]
		if len(seg) == 0 {
			dst[j] = 0
			continue
		}
		dst[j] = math.Sqrt(floats.Dot(seg, seg) / float64(len(seg)))
	}
	return nil
}
