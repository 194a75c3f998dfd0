// SPDX-License-Identifier: MIT
/*
Package audio implements the real-time side of the sampler:
- Lock-free single-producer/single-consumer frame queue
- Frame source emitting exactly one frame per callback (queue or pass-through)
- Feeder streaming the committed Processed Buffer into the queue
- PortAudio and oto output sinks
- WAV export of rendered buffers

Thread Safety:
- The callback only touches the frame source and pre-allocated buffers
- Uses atomic operations for counters and state
- Pre-allocates buffers to avoid GC in hot path
*/
package audio

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"sampler/internal/config"
	"sampler/internal/engine"
	applog "sampler/internal/log"
)

// OutputChannels is the number of interleaved output channels. The mono frame
// is copied to each.
const OutputChannels = 2

// Engine drives a PortAudio stream whose callback pulls one frame per
// invocation from a FrameSource.
type Engine struct {
	config *config.AudioConfig
	source *FrameSource

	// Audio device handling.
	outputDevice  *portaudio.DeviceInfo
	inputDevice   *portaudio.DeviceInfo
	outputLatency time.Duration
	inputLatency  time.Duration
	stream        *portaudio.Stream

	// Pre-allocated callback buffers.
	monoIn []float32
	frame  engine.Frame

	callbacks atomic.Uint64
	running   atomic.Bool
}

// NewEngine resolves the configured devices. PortAudio must be initialized.
func NewEngine(cfg *config.AudioConfig, source *FrameSource) (*Engine, error) {
	if cfg.FramesPerBuffer != engine.FrameSize {
		return nil, fmt.Errorf("frames per buffer must be %d, got %d", engine.FrameSize, cfg.FramesPerBuffer)
	}

	outputDevice, err := OutputDevice(cfg.OutputDevice)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		config:       cfg,
		source:       source,
		outputDevice: outputDevice,
		monoIn:       make([]float32, engine.FrameSize),
	}

	if cfg.InputChannels > 0 {
		if e.inputDevice, err = InputDevice(cfg.InputDevice); err != nil {
			return nil, err
		}
	}

	if cfg.LowLatency {
		e.outputLatency = outputDevice.DefaultLowOutputLatency
		if e.inputDevice != nil {
			e.inputLatency = e.inputDevice.DefaultLowInputLatency
		}
	} else {
		e.outputLatency = outputDevice.DefaultHighOutputLatency
		if e.inputDevice != nil {
			e.inputLatency = e.inputDevice.DefaultHighInputLatency
		}
	}

	return e, nil
}

// Start opens and starts the stream. With no input channels the stream is
// output-only and the pass-through mode outputs silence.
func (e *Engine) Start() error {
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Channels: OutputChannels,
			Device:   e.outputDevice,
			Latency:  e.outputLatency,
		},
		FramesPerBuffer: e.config.FramesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	var callback any = e.processOutputStream
	if e.inputDevice != nil {
		params.Input = portaudio.StreamDeviceParameters{
			Channels: e.config.InputChannels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		}
		callback = e.processStream
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	e.stream = stream

	if err := e.stream.Start(); err != nil {
		e.stream.Close()
		e.stream = nil
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	e.running.Store(true)

	applog.Infof("Audio: Stream started on %q (%d Hz, %d frames, latency %s)",
		e.outputDevice.Name, int(e.config.SampleRate), e.config.FramesPerBuffer, e.outputLatency)
	return nil
}

// Stop stops and closes the stream.
func (e *Engine) Stop() error {
	if e.stream == nil {
		return nil
	}
	e.running.Store(false)

	if err := e.stream.Stop(); err != nil {
		return err
	}
	if err := e.stream.Close(); err != nil {
		return err
	}
	e.stream = nil
	return nil
}

// Close implements io.Closer.
func (e *Engine) Close() error {
	return e.Stop()
}

// Callbacks returns the number of callbacks served.
func (e *Engine) Callbacks() uint64 {
	return e.callbacks.Load()
}

// processStream is the duplex audio callback.
// Performance Critical:
// - Uses pre-allocated buffers only
// - No dynamic allocations, locks or logging in the hot path
func (e *Engine) processStream(in, out []float32) {
	channels := e.config.InputChannels
	n := min(len(in)/max(channels, 1), len(e.monoIn))
	for i := range n {
		e.monoIn[i] = in[i*channels]
	}
	clear(e.monoIn[n:])

	e.source.Next(e.monoIn, &e.frame)
	e.writeOutput(out)
}

// processOutputStream is the output-only audio callback.
func (e *Engine) processOutputStream(out []float32) {
	e.source.Next(nil, &e.frame)
	e.writeOutput(out)
}

func (e *Engine) writeOutput(out []float32) {
	e.callbacks.Add(1)
	frames := min(len(out)/OutputChannels, engine.FrameSize)
	for i := range frames {
		v := e.frame[i]
		for c := range OutputChannels {
			out[i*OutputChannels+c] = v
		}
	}
	clear(out[frames*OutputChannels:])
}

var _ interface{ Close() error } = (*Engine)(nil)
