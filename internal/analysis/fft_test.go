// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"sampler/pkg/utils"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

// binSine returns a full-scale sine centered on FFT bin k.
func binSine(k int) []float32 {
	out := make([]float32, testFFTSize)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * float64(k) * float64(i) / testFFTSize))
	}
	return out
}

func TestFFTPeakAtSineBin(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatal(err)
	}
	p.Process(binSine(64))

	mags := p.GetMagnitudes()
	if peak := utils.FindPeakBin(mags, 0, len(mags)-1); peak != 64 {
		t.Errorf("peak bin = %d, want 64", peak)
	}
	if math.Abs(mags[64]-1) > 0.01 {
		t.Errorf("peak magnitude = %v, want ~1", mags[64])
	}
}

func TestFFTHotPath(t *testing.T) {
	p, err := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err != nil {
		t.Fatal(err)
	}
	input := binSine(10)
	dst := make([]float64, p.Bins())

	p.Process(input)
	allocs := testing.AllocsPerRun(100, func() {
		p.Process(input)
		_ = p.GetMagnitudesInto(dst)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in FFT Process hot path, got %.1f", allocs)
	}
}

func TestFFTShortBlockZeroPads(t *testing.T) {
	p, _ := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	p.Process(make([]float32, 10))
	for i, m := range p.GetMagnitudes() {
		if m != 0 {
			t.Fatalf("bin %d = %v, want 0 for silence", i, m)
		}
	}
}

func TestNewFFTProcessorErrors(t *testing.T) {
	if _, err := NewFFTProcessor(1000, testSampleRate, Hann); err == nil {
		t.Error("expected error for non power of two size")
	}
	if _, err := NewFFTProcessor(testFFTSize, 0, Hann); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestGetFrequencyForBin(t *testing.T) {
	p, _ := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	tests := []struct {
		bin      int
		expected float64
	}{
		{0, 0},
		{1, testSampleRate / float64(testFFTSize)},
		{testFFTSize / 2, testSampleRate / 2},
		{-1, 0},
		{testFFTSize/2 + 1, 0},
	}
	for _, tt := range tests {
		if got := p.GetFrequencyForBin(tt.bin); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("GetFrequencyForBin(%d) = %v, want %v", tt.bin, got, tt.expected)
		}
	}
}

func TestGetMagnitudesIntoLength(t *testing.T) {
	p, _ := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	if err := p.GetMagnitudesInto(make([]float64, 3)); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name     string
		expected WindowFunc
		ok       bool
	}{
		{"Hann", Hann, true},
		{"hanning", Hann, true},
		{"BLACKMAN", Blackman, true},
		{"nuttall", Nuttall, true},
		{"square", Hann, false},
	}
	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.name)
		if got != tt.expected || (err == nil) != tt.ok {
			t.Errorf("ParseWindowFunc(%q) = %v, %v", tt.name, got, err)
		}
	}
}

func BenchmarkProcess(b *testing.B) {
	p, _ := NewFFTProcessor(testFFTSize, testSampleRate, Hann)
	input := utils.GenerateComplexWave(testFFTSize, testSampleRate)

	b.ReportAllocs()
	for b.Loop() {
		p.Process(input)
	}
}
