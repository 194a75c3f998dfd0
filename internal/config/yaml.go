// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"sampler/internal/log"
	"sampler/pkg/bitint"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (verbose logging).
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Audio output settings.
	Render    RenderConfig    `yaml:"render"`    // Offline render settings.
	Selection SelectionConfig `yaml:"selection"` // Selection editor geometry.
	Transport TransportConfig `yaml:"transport"` // Presentation and telemetry transports.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Visualization analysis settings.
}

// AudioConfig holds settings related to audio output and the real-time frame supply.
type AudioConfig struct {
	Backend         string  `yaml:"backend"`           // Output sink: "portaudio", "oto" or "none".
	Mode            string  `yaml:"mode"`              // Frame supply: "queue" or "passthrough".
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index for output (-1 for default).
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for live input (-1 for default).
	InputChannels   int     `yaml:"input_channels"`    // Live input channels for pass-through (0 disables input).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback. Must equal the render quantum.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	QueueFrames     int     `yaml:"queue_frames"`      // Frame queue capacity, rounded up to a power of two.
}

// RenderConfig holds settings for the offline renderer and engine module.
type RenderConfig struct {
	Debounce time.Duration `yaml:"debounce"`  // Quiescence window before a recompute runs.
	Engine   string        `yaml:"engine"`    // Engine module: "native" or "wasm".
	WasmPath string        `yaml:"wasm_path"` // Compiled engine module, required for "wasm".
	Seed     uint64        `yaml:"seed"`      // Grain randomness seed for the native engine.
}

// SelectionConfig holds the selection editor geometry.
type SelectionConfig struct {
	DisplayWidth float64 `yaml:"display_width"` // Waveform width in pixels for overview and TUI.
	HitRadius    float64 `yaml:"hit_radius"`    // Marker grab distance in pixels.
	Margin       float64 `yaml:"margin"`        // Range grab margin in pixels.
}

// TransportConfig holds settings related to sending state over the network.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Serve the presentation bridge.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address for the bridge (e.g., ":8080").
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending status packets over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
}

// AnalysisConfig holds settings for the spectrum shown to the presentation layer.
type AnalysisConfig struct {
	FFTSize   int    `yaml:"fft_size"`   // Spectrum window length, power of two.
	FFTWindow string `yaml:"fft_window"` // Window function (e.g., "Hann", "Hamming").
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Debug:    false,
		LogLevel: "info",
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			Mode:            ModeQueue,
			OutputDevice:    DefaultDeviceID,
			InputDevice:     DefaultDeviceID,
			InputChannels:   DefaultInputChannels,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			QueueFrames:     DefaultQueueFrames,
		},
		Render: RenderConfig{
			Debounce: DefaultDebounce,
			Engine:   DefaultEngine,
			Seed:     1,
		},
		Selection: SelectionConfig{
			DisplayWidth: DefaultDisplayWidth,
			HitRadius:    DefaultHitRadius,
			Margin:       DefaultMargin,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddress: ":8080",
			UDPEnabled:       false, // Default UDP to false.
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  33 * time.Millisecond, // Default ~30Hz.
		},
		Analysis: AnalysisConfig{
			FFTSize:   1024,
			FFTWindow: "Hann",
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"sampler.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			cfg.applyEnvOverrides()
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("invalid default configuration: %w", err)
			}
			return &cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	// Audio Validation
	switch c.Audio.Backend {
	case BackendPortAudio, BackendOto, BackendNone:
	default:
		return fmt.Errorf("audio.backend %q must be one of portaudio, oto, none", c.Audio.Backend)
	}
	switch c.Audio.Mode {
	case ModeQueue, ModePassThrough:
	default:
		return fmt.Errorf("audio.mode %q must be queue or passthrough", c.Audio.Mode)
	}
	if c.Audio.FramesPerBuffer != DefaultFramesPerBuffer {
		return fmt.Errorf("audio.frames_per_buffer must be %d, got %d", DefaultFramesPerBuffer, c.Audio.FramesPerBuffer)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.OutputDevice < MinDeviceID || c.Audio.InputDevice < MinDeviceID {
		return fmt.Errorf("audio device ids must be >= %d", MinDeviceID)
	}
	if c.Audio.InputChannels < 0 {
		return fmt.Errorf("audio.input_channels must not be negative")
	}
	if c.Audio.QueueFrames < 2 || c.Audio.QueueFrames > MaxQueueFrames {
		return fmt.Errorf("audio.queue_frames %d outside [2, %d]", c.Audio.QueueFrames, MaxQueueFrames)
	}

	// Render Validation
	if c.Render.Debounce < 0 {
		return fmt.Errorf("render.debounce must not be negative")
	}
	switch c.Render.Engine {
	case EngineNative:
	case EngineWasm:
		if c.Render.WasmPath == "" {
			return fmt.Errorf("render.wasm_path must be set when render.engine is wasm")
		}
	default:
		return fmt.Errorf("render.engine %q must be native or wasm", c.Render.Engine)
	}

	// Selection Validation
	if c.Selection.DisplayWidth <= 0 {
		return fmt.Errorf("selection.display_width must be positive")
	}
	if c.Selection.HitRadius < 0 || c.Selection.Margin < 0 {
		return fmt.Errorf("selection.hit_radius and selection.margin must not be negative")
	}

	// Transport Validation
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return fmt.Errorf("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}
	if c.Transport.WebSocketEnabled && c.Transport.WebSocketAddress == "" {
		return fmt.Errorf("transport.websocket_address must be set when the bridge is enabled")
	}

	// Analysis Validation
	if !bitint.IsPowerOfTwo(c.Analysis.FFTSize) {
		return fmt.Errorf("analysis.fft_size %d must be a power of two", c.Analysis.FFTSize)
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("log_level %q is not a known level", c.LogLevel)
	}

	return nil
}

// applyEnvOverrides lets ENV_* variables replace values from the file.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			log.Debugf("Config: Overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		log.Debugf("Config: Overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}
	// ENV_AUDIO_BACKEND
	if val, ok := os.LookupEnv("ENV_AUDIO_BACKEND"); ok {
		cfg.Audio.Backend = val
		log.Debugf("Config: Overriding audio.backend from env: %s", val)
	}
	// ENV_AUDIO_OUTPUT_DEVICE
	if val, ok := os.LookupEnv("ENV_AUDIO_OUTPUT_DEVICE"); ok {
		if iVal, err := strconv.Atoi(val); err == nil {
			cfg.Audio.OutputDevice = iVal
			log.Debugf("Config: Overriding audio.output_device from env: %d", iVal)
		}
	}

	// ENV_RENDER_{...}
	// ENV_RENDER_ENGINE
	if val, ok := os.LookupEnv("ENV_RENDER_ENGINE"); ok {
		cfg.Render.Engine = val
		log.Debugf("Config: Overriding render.engine from env: %s", val)
	}
	// ENV_RENDER_WASM_PATH
	if val, ok := os.LookupEnv("ENV_RENDER_WASM_PATH"); ok {
		cfg.Render.WasmPath = val
		log.Debugf("Config: Overriding render.wasm_path from env: %s", val)
	}
	// ENV_RENDER_DEBOUNCE
	if val, ok := os.LookupEnv("ENV_RENDER_DEBOUNCE"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Render.Debounce = dur
			log.Debugf("Config: Overriding render.debounce from env: %s", dur)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			log.Debugf("Config: Overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		log.Debugf("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			log.Debugf("Config: Overriding transport.udp_send_interval from env: %s", dur)
		}
	}
	// ENV_WS_ADDRESS
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
		cfg.Transport.WebSocketEnabled = val != ""
		log.Debugf("Config: Overriding transport.websocket_address from env: %s", val)
	}
}
