// SPDX-License-Identifier: MIT
/*
Package decode turns audio files into the mono Waveform the sampler renders.

Each format decoder produces an interleaved multi-channel Buffer in [-1, 1];
Downmix averages the channels of every frame to produce the Waveform.

	wav   github.com/go-audio/wav      PCM 8/16/24/32 and 32-bit float
	aiff  github.com/go-audio/aiff     PCM
	mp3   github.com/hajimehoshi/go-mp3
	ogg   github.com/jfreymuth/oggvorbis
*/
package decode

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Buffer is decoded, interleaved audio.
type Buffer struct {
	Data       []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Waveform is an immutable mono recording. It is replaced wholesale on every
// load and never modified in place.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Len returns the number of samples.
func (w Waveform) Len() int { return len(w.Samples) }

// Duration returns the playing time at the waveform's sample rate.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Decoder decodes one container format.
type Decoder interface {
	Decode(r io.Reader) (*Buffer, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.Reader) (*Buffer, error)

func (f DecoderFunc) Decode(r io.Reader) (*Buffer, error) { return f(r) }

// Registry maps format keys to decoders.
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]Decoder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// Register adds or replaces the decoder for format.
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[strings.ToLower(format)] = d
}

// Get returns the decoder for format.
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.codecs[strings.ToLower(format)]
	return d, ok
}

// Formats returns the registered format keys.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.codecs))
	for k := range r.codecs {
		out = append(out, k)
	}
	return out
}

// Default holds the built-in decoders.
var Default = NewRegistry()

func init() {
	Default.Register("wav", DecoderFunc(decodeWAV))
	Default.Register("aiff", DecoderFunc(decodeAIFF))
	Default.Register("mp3", DecoderFunc(decodeMP3))
	Default.Register("ogg", DecoderFunc(decodeOgg))
}

var extensions = map[string]string{
	".wav":  "wav",
	".wave": "wav",
	".aif":  "aiff",
	".aiff": "aiff",
	".mp3":  "mp3",
	".ogg":  "ogg",
	".oga":  "ogg",
}

// FormatFromPath returns the format key for a file name.
func FormatFromPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
}

// File decodes the file at path using the format implied by its extension.
func File(path string) (Waveform, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Waveform{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, err
	}
	w, err := Reader(bytes.NewReader(data), format)
	if err != nil {
		return Waveform{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return w, nil
}

// Reader decodes r as format and downmixes it to mono.
func Reader(r io.Reader, format string) (Waveform, error) {
	dec, ok := Default.Get(format)
	if !ok {
		return Waveform{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	buf, err := dec.Decode(r)
	if err != nil {
		return Waveform{}, err
	}
	samples, err := Downmix(buf)
	if err != nil {
		return Waveform{}, err
	}
	if len(samples) == 0 {
		return Waveform{}, ErrEmptyAudio
	}
	return Waveform{Samples: samples, SampleRate: buf.SampleRate}, nil
}

// Downmix averages the channels of each frame into one mono sample.
func Downmix(b *Buffer) ([]float32, error) {
	if b == nil || b.Channels <= 0 {
		return nil, ErrInvalidChannels
	}
	if len(b.Data)%b.Channels != 0 {
		return nil, fmt.Errorf("%w: %d values for %d channels", ErrInvalidChannels, len(b.Data), b.Channels)
	}

	frames := b.Frames()
	out := make([]float32, frames)
	if b.Channels == 1 {
		copy(out, b.Data)
		return out, nil
	}

	inv := 1 / float32(b.Channels)
	switch b.Channels {
	case 2: // Stereo (most common)
		for f := range frames {
			out[f] = (b.Data[2*f] + b.Data[2*f+1]) * 0.5
		}
	default:
		for f := range frames {
			var sum float32
			for _, v := range b.Data[f*b.Channels : (f+1)*b.Channels] {
				sum += v
			}
			out[f] = sum * inv
		}
	}
	return out, nil
}

// readSeeker returns r as an io.ReadSeeker, buffering it in memory if needed.
// go-audio decoders require seeking.
func readSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
