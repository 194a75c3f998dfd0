// SPDX-License-Identifier: MIT
package decode

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeWAV encodes interleaved integer samples to a temp file and returns its path.
func writeWAV(t *testing.T, name string, rate, depth, channels, format int, data []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, rate, depth, channels, format)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: depth,
		Data:           data,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-4
}

func TestFileStereo16Downmix(t *testing.T) {
	// Frames: (L, R) = (16384, 0), (-16384, -16384), (32767, -32768)
	path := writeWAV(t, "stereo.wav", 22050, 16, 2, 1, []int{16384, 0, -16384, -16384, 32767, -32768})

	w, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if w.SampleRate != 22050 {
		t.Errorf("SampleRate = %d, want 22050", w.SampleRate)
	}
	want := []float32{0.25, -0.5, -0.5 / 32768}
	if w.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", w.Len(), len(want))
	}
	for i := range want {
		if !approx(w.Samples[i], want[i]) {
			t.Errorf("sample %d = %v, want %v", i, w.Samples[i], want[i])
		}
	}
}

func TestFileFloat32(t *testing.T) {
	samples := []float32{0, 0.125, -0.75, 1}
	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(math.Float32bits(v))
	}
	path := writeWAV(t, "float.wav", 44100, 32, 1, wavFormatFloat, data)

	w, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	for i := range samples {
		if w.Samples[i] != samples[i] {
			t.Errorf("sample %d = %v, want %v", i, w.Samples[i], samples[i])
		}
	}
}

func TestFileAIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.aiff")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := aiff.NewEncoder(f, 48000, 16, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 48000},
		SourceBitDepth: 16,
		Data:           []int{0, 8192, -8192, 16384},
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()

	w, err := File(path)
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	want := []float32{0, 0.25, -0.25, 0.5}
	if w.Len() != len(want) || w.SampleRate != 48000 {
		t.Fatalf("got %d samples at %d Hz", w.Len(), w.SampleRate)
	}
	for i := range want {
		if !approx(w.Samples[i], want[i]) {
			t.Errorf("sample %d = %v, want %v", i, w.Samples[i], want[i])
		}
	}
}

func TestDownmix(t *testing.T) {
	tests := []struct {
		desc     string
		buf      *Buffer
		expected []float32
		err      error
	}{
		{"mono copy", &Buffer{Data: []float32{1, 2}, Channels: 1}, []float32{1, 2}, nil},
		{"stereo", &Buffer{Data: []float32{1, 0, 0.5, 0.5}, Channels: 2}, []float32{0.5, 0.5}, nil},
		{"three channels", &Buffer{Data: []float32{3, 0, 0, 0, 0, 0.3}, Channels: 3}, []float32{1, 0.1}, nil},
		{"zero channels", &Buffer{Data: []float32{1}, Channels: 0}, nil, ErrInvalidChannels},
		{"ragged", &Buffer{Data: []float32{1, 2, 3}, Channels: 2}, nil, ErrInvalidChannels},
		{"nil", nil, nil, ErrInvalidChannels},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := Downmix(tt.buf)
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.expected))
			}
			for i := range got {
				if !approx(got[i], tt.expected[i]) {
					t.Errorf("out[%d] = %v, want %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestDownmixDoesNotAliasMonoInput(t *testing.T) {
	in := &Buffer{Data: []float32{1, 2, 3}, Channels: 1}
	out, _ := Downmix(in)
	out[0] = 99
	if in.Data[0] != 1 {
		t.Error("mono downmix aliases the decoded buffer")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]string{
		"a.wav": "wav", "B.WAV": "wav", "x.aif": "aiff", "x.aiff": "aiff",
		"song.mp3": "mp3", "loop.ogg": "ogg",
	}
	for path, want := range tests {
		if got, err := FormatFromPath(path); err != nil || got != want {
			t.Errorf("FormatFromPath(%q) = %q, %v", path, got, err)
		}
	}
	if _, err := FormatFromPath("notes.txt"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("FormatFromPath(notes.txt) = %v, want ErrUnsupportedFormat", err)
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		desc   string
		format string
		input  io.Reader
		err    error
	}{
		{"unknown format", "flac", strings.NewReader(""), ErrUnsupportedFormat},
		{"garbage wav", "wav", strings.NewReader("definitely not riff data"), ErrInvalidFile},
		{"garbage aiff", "aiff", strings.NewReader("definitely not form data"), ErrInvalidFile},
		{"garbage ogg", "ogg", strings.NewReader("definitely not an ogg stream"), ErrInvalidFile},
		{"empty mp3", "mp3", bytes.NewReader(nil), ErrInvalidFile},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			if _, err := Reader(tt.input, tt.format); !errors.Is(err, tt.err) {
				t.Errorf("Reader() = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestFileMissing(t *testing.T) {
	if _, err := File(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRegistryRegisterOverrides(t *testing.T) {
	r := NewRegistry()
	r.Register("RAW", DecoderFunc(func(io.Reader) (*Buffer, error) {
		return &Buffer{Data: []float32{1}, Channels: 1, SampleRate: 8000}, nil
	}))
	d, ok := r.Get("raw")
	if !ok {
		t.Fatal("format keys should be case-insensitive")
	}
	b, _ := d.Decode(nil)
	if b.SampleRate != 8000 {
		t.Errorf("decoder not used")
	}
	if len(Default.Formats()) != 4 {
		t.Errorf("default registry has %v", Default.Formats())
	}
}
