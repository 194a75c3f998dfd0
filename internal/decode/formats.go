// SPDX-License-Identifier: MIT
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

const wavFormatFloat = 3

func decodeWAV(r io.Reader) (*Buffer, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return nil, err
	}
	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrInvalidFile)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	depth := int(d.BitDepth)
	isFloat := d.WavAudioFormat == wavFormatFloat
	if isFloat && depth != 32 {
		return nil, fmt.Errorf("%w: %d-bit float", ErrUnsupportedDepth, depth)
	}

	out := &Buffer{
		Data:       make([]float32, len(pcm.Data)),
		Channels:   int(d.NumChans),
		SampleRate: int(d.SampleRate),
	}
	if isFloat {
		for i, v := range pcm.Data {
			out.Data[i] = math.Float32frombits(uint32(v))
		}
		return out, nil
	}

	// 8-bit WAV is unsigned, wider depths are signed.
	if depth == 8 {
		for i, v := range pcm.Data {
			out.Data[i] = float32(v-128) / 128
		}
		return out, nil
	}
	if err := normalizeInts(out.Data, pcm.Data, depth); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeAIFF(r io.Reader) (*Buffer, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return nil, err
	}
	d := aiff.NewDecoder(rs)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not an AIFF file", ErrInvalidFile)
	}
	d.ReadInfo()

	format := d.Format()
	if format == nil || format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: missing format", ErrInvalidFile)
	}

	out := &Buffer{Channels: format.NumChannels, SampleRate: format.SampleRate}
	chunk := &goaudio.IntBuffer{Format: format, Data: make([]int, 4096*format.NumChannels)}
	scratch := make([]float32, len(chunk.Data))
	for {
		chunk.Data = chunk.Data[:cap(chunk.Data)]
		n, err := d.PCMBuffer(chunk)
		if n > 0 {
			if nerr := normalizeInts(scratch[:n], chunk.Data[:n], int(d.BitDepth)); nerr != nil {
				return nil, nerr
			}
			out.Data = append(out.Data, scratch[:n]...)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
		}
		if n == 0 || err != nil {
			break
		}
	}
	return out, nil
}

// decodeMP3 reads go-mp3's output, which is always 16-bit little-endian stereo.
func decodeMP3(r io.Reader) (*Buffer, error) {
	d, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	out := &Buffer{
		Data:       make([]float32, len(raw)/2),
		Channels:   2,
		SampleRate: d.SampleRate(),
	}
	for i := range out.Data {
		out.Data[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768
	}
	// Drop a trailing half frame.
	out.Data = out.Data[:len(out.Data)/2*2]
	return out, nil
}

func decodeOgg(r io.Reader) (*Buffer, error) {
	data, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if format.Channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrInvalidChannels, format.Channels)
	}
	return &Buffer{Data: data, Channels: format.Channels, SampleRate: format.SampleRate}, nil
}

// normalizeInts scales signed PCM integers of the given depth to [-1, 1).
func normalizeInts(dst []float32, src []int, depth int) error {
	var scale float32
	switch depth {
	case 8:
		scale = 1.0 / 128
	case 16:
		scale = 1.0 / 32768
	case 24:
		scale = 1.0 / 8388608
	case 32:
		scale = 1.0 / 2147483648
	default:
		return fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedDepth, depth)
	}
	for i, v := range src {
		dst[i] = float32(v) * scale
	}
	return nil
}
