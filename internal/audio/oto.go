// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"

	"sampler/internal/engine"
	applog "sampler/internal/log"
)

// OtoSink plays a FrameSource through oto. oto pulls bytes through Read on
// its own goroutine; Read takes frames from the source one at a time and
// keeps the unread tail of the current frame for the next call.
type OtoSink struct {
	ctx    *oto.Context
	player *oto.Player
	source atomic.Pointer[FrameSource] // Atomic for lock-free Read()

	// Read-side state, touched only by oto's reader goroutine.
	frame  engine.Frame
	cursor int // Next unread sample in frame; FrameSize means exhausted.

	started bool
	mutex   sync.Mutex // Only for setup/control operations
}

// NewOtoSink opens an oto context for mono float32 output.
func NewOtoSink(sampleRate int) (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	return newOtoSink(ctx), nil
}

func newOtoSink(ctx *oto.Context) *OtoSink {
	return &OtoSink{ctx: ctx, cursor: engine.FrameSize}
}

// Attach sets the frame source Read pulls from.
func (s *OtoSink) Attach(source *FrameSource) {
	s.source.Store(source)
}

// Read implements io.Reader for oto. It always fills p completely.
func (s *OtoSink) Read(p []byte) (int, error) {
	source := s.source.Load()
	if source == nil {
		clear(p)
		return len(p), nil
	}

	n := len(p) / 4
	for i := range n {
		if s.cursor >= engine.FrameSize {
			source.Next(nil, &s.frame)
			s.cursor = 0
		}
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s.frame[s.cursor]))
		s.cursor++
	}
	clear(p[n*4:])
	return len(p), nil
}

// Start begins playback.
func (s *OtoSink) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.started {
		return nil
	}
	if s.player == nil {
		s.player = s.ctx.NewPlayer(s)
	}
	s.player.Play()
	s.started = true
	applog.Infof("Audio: oto playback started")
	return nil
}

// Stop pauses playback.
func (s *OtoSink) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.started && s.player != nil {
		s.player.Pause()
		s.started = false
	}
	return nil
}

// Close stops playback and releases the player.
func (s *OtoSink) Close() error {
	s.Stop()

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.player != nil {
		err := s.player.Close()
		s.player = nil
		return err
	}
	return nil
}

// IsStarted reports whether playback is running.
func (s *OtoSink) IsStarted() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.started
}
