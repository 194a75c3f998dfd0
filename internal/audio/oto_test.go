// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"sampler/internal/engine"
)

func decodeF32LE(p []byte) []float32 {
	out := make([]float32, len(p)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	return out
}

func TestOtoSinkSilentWithoutSource(t *testing.T) {
	s := newOtoSink(nil)
	p := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := s.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read = %d, %v", n, err)
	}
	for i, b := range p {
		if b != 0 {
			t.Fatalf("byte %d = %d, want silence", i, b)
		}
	}
}

func TestOtoSinkSplitsFramesAcrossReads(t *testing.T) {
	q := NewFrameQueue(4)
	for i := range 2 {
		var f engine.Frame
		for j := range f {
			f[j] = float32(i*engine.FrameSize + j)
		}
		q.Push(&f)
	}

	s := newOtoSink(nil)
	s.Attach(NewFrameSource(q, ModeQueue))

	// Reads that do not line up with frame boundaries.
	var got []float32
	for _, size := range []int{100, 60, 96} {
		p := make([]byte, size*4)
		if n, err := s.Read(p); err != nil || n != len(p) {
			t.Fatalf("Read = %d, %v", n, err)
		}
		got = append(got, decodeF32LE(p)...)
	}

	for i, v := range got {
		if v != float32(i) {
			t.Fatalf("sample %d = %v, want %v", i, v, float32(i))
		}
	}
}
