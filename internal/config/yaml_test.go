// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Audio.FramesPerBuffer != 128 {
		t.Errorf("default frames_per_buffer = %d, want 128", cfg.Audio.FramesPerBuffer)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  backend: oto
  queue_frames: 32
render:
  debounce: 50ms
  engine: native
selection:
  hit_radius: 10
transport:
  websocket_enabled: true
  websocket_address: ":9000"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Audio.Backend != BackendOto {
		t.Errorf("backend = %q, want oto", cfg.Audio.Backend)
	}
	if cfg.Audio.QueueFrames != 32 {
		t.Errorf("queue_frames = %d, want 32", cfg.Audio.QueueFrames)
	}
	if cfg.Render.Debounce != 50*time.Millisecond {
		t.Errorf("debounce = %v, want 50ms", cfg.Render.Debounce)
	}
	if cfg.Selection.HitRadius != 10 || cfg.Selection.Margin != DefaultMargin {
		t.Errorf("selection = %+v, want hit radius 10 and default margin", cfg.Selection)
	}
	if !cfg.Transport.WebSocketEnabled || cfg.Transport.WebSocketAddress != ":9000" {
		t.Errorf("transport = %+v", cfg.Transport)
	}
	// Untouched sections keep their defaults.
	if cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("sample_rate = %v, want default", cfg.Audio.SampleRate)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		desc   string
		mutate func(*Config)
		substr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"frames per buffer", func(c *Config) { c.Audio.FramesPerBuffer = 512 }, "frames_per_buffer"},
		{"backend", func(c *Config) { c.Audio.Backend = "alsa" }, "audio.backend"},
		{"mode", func(c *Config) { c.Audio.Mode = "stream" }, "audio.mode"},
		{"sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "sample_rate"},
		{"queue frames", func(c *Config) { c.Audio.QueueFrames = 1 }, "queue_frames"},
		{"wasm without path", func(c *Config) { c.Render.Engine = EngineWasm }, "wasm_path"},
		{"wasm with path", func(c *Config) { c.Render.Engine = EngineWasm; c.Render.WasmPath = "engine.wasm" }, ""},
		{"unknown engine", func(c *Config) { c.Render.Engine = "gpu" }, "render.engine"},
		{"display width", func(c *Config) { c.Selection.DisplayWidth = 0 }, "display_width"},
		{"udp without target", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = ""
		}, "udp_target_address"},
		{"fft size", func(c *Config) { c.Analysis.FFTSize = 1000 }, "fft_size"},
		{"log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.substr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.substr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "10ms")
	t.Setenv("ENV_RENDER_DEBOUNCE", "75ms")
	t.Setenv("ENV_AUDIO_BACKEND", "none")
	t.Setenv("ENV_WS_ADDRESS", ":7000")

	path := writeTempConfig(t, "log_level: info\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 10*time.Millisecond {
		t.Errorf("udp overrides not applied: %+v", cfg.Transport)
	}
	if cfg.Render.Debounce != 75*time.Millisecond {
		t.Errorf("debounce = %v, want 75ms", cfg.Render.Debounce)
	}
	if cfg.Audio.Backend != BackendNone {
		t.Errorf("backend = %q, want none", cfg.Audio.Backend)
	}
	if !cfg.Transport.WebSocketEnabled || cfg.Transport.WebSocketAddress != ":7000" {
		t.Errorf("websocket override not applied: %+v", cfg.Transport)
	}
}
