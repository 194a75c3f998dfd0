// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math/cmplx"
	"strings"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	applog "sampler/internal/log"
	"sampler/pkg/bitint"
)

// WindowFunc selects an FFT window function.
type WindowFunc int

const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = [...]string{
	BartlettHann:    "BartlettHann",
	Blackman:        "Blackman",
	BlackmanNuttall: "BlackmanNuttall",
	Hann:            "Hann",
	Hamming:         "Hamming",
	Lanczos:         "Lanczos",
	Nuttall:         "Nuttall",
}

func (w WindowFunc) String() string {
	if w < 0 || int(w) >= len(windowNames) {
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
	return windowNames[w]
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed input signal.
	fftOutput []complex128 // FFT complex results.
	magnitude []float64    // Normalized magnitudes.
	window    []float64    // Window coefficients.
	mu        sync.RWMutex // Protects magnitude.
}

// FFTProcessor computes the magnitude spectrum of the most recent block it was
// given. Process and the getters may run on different goroutines.
type FFTProcessor struct {
	fftCalculator *fourier.FFT
	fftSize       int
	sampleRate    float64
	scale         float64 // Maps a full-scale sine to magnitude 1.
	workspace     fftWorkspace
}

var (
	_ AudioProcessor    = (*FFTProcessor)(nil)
	_ FFTResultProvider = (*FFTProcessor)(nil)
)

// NewFFTProcessor allocates every buffer the processor needs. fftSize must be
// a power of two.
func NewFFTProcessor(fftSize int, sampleRate float64, windowType WindowFunc) (*FFTProcessor, error) {
	if !bitint.IsPowerOfTwo(fftSize) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	windowCoeffs := make([]float64, fftSize)
	applyWindow(windowCoeffs, windowType)

	var sum float64
	for _, w := range windowCoeffs {
		sum += w
	}
	scale := 1.0
	if sum > 0 {
		scale = 2 / sum
	}

	// FFT output size for real input is N/2 + 1 complex values.
	magnitudeSize := fftSize/2 + 1

	applog.Debugf("Analysis: Initializing FFTProcessor (Size: %d, SampleRate: %.1f Hz, Window: %v)", fftSize, sampleRate, windowType)

	return &FFTProcessor{
		fftCalculator: fourier.NewFFT(fftSize),
		fftSize:       fftSize,
		sampleRate:    sampleRate,
		scale:         scale,
		workspace: fftWorkspace{
			input:     make([]float64, fftSize),
			fftOutput: make([]complex128, magnitudeSize),
			magnitude: make([]float64, magnitudeSize),
			window:    windowCoeffs,
		},
	}, nil
}

// Process windows the first fftSize samples, zero-padding short blocks, and
// updates the magnitude spectrum. It does not allocate.
func (p *FFTProcessor) Process(samples []float32) {
	p.workspace.mu.Lock()
	defer p.workspace.mu.Unlock()

	// --- 1. Window ---
	for i := range p.fftSize {
		if i < len(samples) {
			p.workspace.input[i] = float64(samples[i]) * p.workspace.window[i]
		} else {
			p.workspace.input[i] = 0
		}
	}

	// --- 2. Transform ---
	p.fftCalculator.Coefficients(p.workspace.fftOutput, p.workspace.input)

	// --- 3. Magnitudes ---
	for i, c := range p.workspace.fftOutput {
		p.workspace.magnitude[i] = cmplx.Abs(c) * p.scale
	}
}

// GetMagnitudes returns a copy of the latest spectrum.
func (p *FFTProcessor) GetMagnitudes() []float64 {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	out := make([]float64, len(p.workspace.magnitude))
	copy(out, p.workspace.magnitude)
	return out
}

// GetMagnitudesInto copies the latest spectrum into dst, which must hold
// fftSize/2 + 1 values.
func (p *FFTProcessor) GetMagnitudesInto(dst []float64) error {
	p.workspace.mu.RLock()
	defer p.workspace.mu.RUnlock()

	if len(dst) != len(p.workspace.magnitude) {
		return fmt.Errorf("destination slice length %d does not match required length %d", len(dst), len(p.workspace.magnitude))
	}
	copy(dst, p.workspace.magnitude)
	return nil
}

// GetFrequencyForBin returns the center frequency in Hz of a bin.
func (p *FFTProcessor) GetFrequencyForBin(binIndex int) float64 {
	if binIndex < 0 || binIndex >= len(p.workspace.fftOutput) {
		return 0
	}
	return float64(binIndex) * (p.sampleRate / float64(p.fftSize))
}

func (p *FFTProcessor) GetFFTSize() int        { return p.fftSize }
func (p *FFTProcessor) GetSampleRate() float64 { return p.sampleRate }

// Bins returns the number of magnitude values, fftSize/2 + 1.
func (p *FFTProcessor) Bins() int { return p.fftSize/2 + 1 }

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types use Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// gonum windows scale the slice in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		applog.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
