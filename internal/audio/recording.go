package audio

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV audio formats.
const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// ExportWAV writes mono samples to path. bitDepth 32 writes IEEE float
// samples; 16 and 24 write clipped integer PCM.
func ExportWAV(path string, samples []float32, sampleRate, bitDepth int) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return WriteWAV(file, samples, sampleRate, bitDepth)
}

// WriteWAV encodes mono samples as a WAV stream.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate, bitDepth int) error {
	format := wavFormatPCM
	switch bitDepth {
	case 16, 24:
	case 32:
		format = wavFormatFloat
	default:
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, format)

	// Encode in frame-sized chunks through a reusable buffer.
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
		Data:           make([]int, 0, 4096),
	}
	for off := 0; off < len(samples); off += cap(buf.Data) {
		chunk := samples[off:min(off+cap(buf.Data), len(samples))]
		buf.Data = buf.Data[:len(chunk)]
		for i, v := range chunk {
			buf.Data[i] = encodeSample(v, bitDepth)
		}
		if err := enc.Write(buf); err != nil {
			return fmt.Errorf("failed to write WAV data: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return nil
}

// encodeSample converts a float sample to the integer the encoder writes.
// Float output carries the raw IEEE bits.
func encodeSample(v float32, bitDepth int) int {
	if bitDepth == 32 {
		return int(math.Float32bits(v))
	}
	scale := float64(int(1)<<(bitDepth-1)) - 1
	c := max(-1, min(1, float64(v)))
	return int(math.Round(c * scale))
}
