package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"

	"sampler/internal/config"
)

// withFakeDevices replaces the PortAudio device enumeration for one test.
func withFakeDevices(t *testing.T, devices []*portaudio.DeviceInfo) {
	t.Helper()
	origDevices := paLibDevicesFunc
	origIn := paLibDefaultInputDeviceFunc
	origOut := paLibDefaultOutputDeviceFunc
	t.Cleanup(func() {
		paLibDevicesFunc = origDevices
		paLibDefaultInputDeviceFunc = origIn
		paLibDefaultOutputDeviceFunc = origOut
	})

	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return devices, nil }
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return devices[0], nil }
	paLibDefaultOutputDeviceFunc = func() (*portaudio.DeviceInfo, error) { return devices[1], nil }
}

func fakeDevices() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "Mic", MaxInputChannels: 2, DefaultSampleRate: 48000},
		{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100,
			DefaultLowOutputLatency: 5 * time.Millisecond, DefaultHighOutputLatency: 20 * time.Millisecond},
		{Name: "Interface", MaxInputChannels: 8, MaxOutputChannels: 8, DefaultSampleRate: 96000},
	}
}

func TestHostDevices(t *testing.T) {
	withFakeDevices(t, fakeDevices())

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
		if d.Name == "" {
			t.Errorf("Device %d has empty name", i)
		}
	}
	wantKinds := []string{"Input", "Output", "Input/Output"}
	for i, want := range wantKinds {
		if got := devices[i].Kind(); got != want {
			t.Errorf("device %d kind = %q, want %q", i, got, want)
		}
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestOutputDevice(t *testing.T) {
	withFakeDevices(t, fakeDevices())

	tests := []struct {
		name     string
		id       int
		wantName string
		substr   string
	}{
		{"Default", -1, "Speakers", ""},
		{"Output device", 1, "Speakers", ""},
		{"Duplex device", 2, "Interface", ""},
		{"Non-output device", 0, "", "does not support output"},
		{"Negative ID", -2, "", "invalid device ID"},
		{"Too high ID", 10, "", "invalid device ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, err := OutputDevice(tt.id)
			if tt.substr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.substr) {
					t.Errorf("Error = %v, want substring %q", err, tt.substr)
				}
				return
			}
			if err != nil {
				t.Fatalf("OutputDevice(%d) error: %v", tt.id, err)
			}
			if dev.Name != tt.wantName {
				t.Errorf("OutputDevice(%d) = %q, want %q", tt.id, dev.Name, tt.wantName)
			}
		})
	}
}

func TestInputDevice(t *testing.T) {
	withFakeDevices(t, fakeDevices())

	if dev, err := InputDevice(-1); err != nil || dev.Name != "Mic" {
		t.Errorf("InputDevice(-1) = %v, %v", dev, err)
	}
	if _, err := InputDevice(1); err == nil || !strings.Contains(err.Error(), "does not support input") {
		t.Errorf("InputDevice(1) error = %v", err)
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	withFakeDevices(t, fakeDevices())
	paLibDefaultInputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default input error")
	}

	_, err := InputDevice(-1)
	if err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, nil
	}

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil {
		t.Errorf("expected empty slice, got nil")
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	orig := paLibDevicesFunc
	defer func() { paLibDevicesFunc = orig }()
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("PortAudio not initialized")
	}

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}

func TestListDevices(t *testing.T) {
	withFakeDevices(t, fakeDevices())

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[0] Mic (Input)", "[1] Speakers (Output)", "Low=5.00ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestEngineCallbackWritesEveryChannel(t *testing.T) {
	q := NewFrameQueue(4)
	f := frameOf(0.25)
	q.Push(&f)

	e := &Engine{source: NewFrameSource(q, ModeQueue)}
	out := make([]float32, 128*OutputChannels)
	e.processOutputStream(out)
	for i, v := range out {
		if v != 0.25 {
			t.Fatalf("out[%d] = %v, want 0.25", i, v)
		}
	}

	// Next callback underruns to silence.
	e.processOutputStream(out)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v after underrun, want 0", i, v)
		}
	}
	if e.Callbacks() != 2 {
		t.Errorf("Callbacks = %d, want 2", e.Callbacks())
	}
}

func TestEngineCallbackZeroAllocations(t *testing.T) {
	q := NewFrameQueue(4)
	cfg := &config.AudioConfig{InputChannels: 2, FramesPerBuffer: 128, SampleRate: 44100}
	e := &Engine{
		config: cfg,
		source: NewFrameSource(q, ModePassThrough),
		monoIn: make([]float32, 128),
	}
	in := make([]float32, 128*cfg.InputChannels)
	out := make([]float32, 128*OutputChannels)
	f := frameOf(1)

	allocs := testing.AllocsPerRun(100, func() {
		q.Push(&f)
		e.processStream(in, out)
		e.processStream(in, out)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in the stream callback, got %.1f", allocs)
	}
}
