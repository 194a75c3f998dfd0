package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the sampler.
const (
	// Default values for the audio output
	DefaultBackend         = BackendPortAudio
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultFramesPerBuffer = 128         // Fixed render quantum
	DefaultInputChannels   = 1           // Mono live input for pass-through
	DefaultLowLatency      = false       // Standard latency mode
	DefaultQueueFrames     = 64          // ~186ms of frames at 44.1kHz
	DefaultSampleRate      = 44100       // Engine filter coefficients assume this rate

	// Default values for rendering
	DefaultDebounce = 150 * time.Millisecond
	DefaultEngine   = EngineNative

	// Default values for the selection editor
	DefaultDisplayWidth = 800
	DefaultHitRadius    = 6.0
	DefaultMargin       = 4.0

	// Hardware and processing limits
	MinDeviceID    = -1     // -1 represents system default device
	MinSampleRate  = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate  = 192000 // Maximum supported sample rate (Hz)
	MaxQueueFrames = 4096
)

// Audio backends.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
	BackendNone      = "none"
)

// Frame supply modes.
const (
	ModeQueue       = "queue"
	ModePassThrough = "passthrough"
)

// Engine modules.
const (
	EngineNative = "native"
	EngineWasm   = "wasm"
)
