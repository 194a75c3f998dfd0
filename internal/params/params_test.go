// SPDX-License-Identifier: MIT
package params

import (
	"math"
	"testing"
)

func TestDefaultsPopulateEveryField(t *testing.T) {
	s := Defaults(1000)
	for id := range Count {
		if id == SelectionStart || id == SelectionEnd {
			continue
		}
		if s[id] != Descriptors[id].Default {
			t.Errorf("%s: got %v, want default %v", id, s[id], Descriptors[id].Default)
		}
	}
	if start, end := s.Selection(); start != 0 || end != 1000 {
		t.Errorf("selection = [%d, %d), want [0, 1000)", start, end)
	}
}

func TestSnapshotDoesNotAlias(t *testing.T) {
	m := NewModel()
	m.Load(1000)
	snap := m.Snapshot()

	m.Set(Voice1Gain, 0.25)
	m.SetSelection(10, 20)

	if snap[Voice1Gain] == 0.25 {
		t.Error("snapshot observed a later Set")
	}
	if start, end := snap.Selection(); start != 0 || end != 1000 {
		t.Errorf("snapshot selection changed to [%d, %d)", start, end)
	}
}

func TestSnapshotRepairsOrdering(t *testing.T) {
	tests := []struct {
		name               string
		start, end, length int
		wantStart, wantEnd int
	}{
		{"ordered", 100, 900, 1000, 100, 900},
		{"inverted", 900, 100, 1000, 100, 900},
		{"zero width", 500, 500, 1000, 500, 501},
		{"zero width at end", 1000, 1000, 1000, 999, 1000},
		{"end past length", 10, 5000, 1000, 10, 1000},
		{"negative start", -20, 50, 1000, 0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewModel()
			m.Load(tt.length)
			m.Set(SelectionStart, float64(tt.start))
			m.Set(SelectionEnd, float64(tt.end))

			// The live model keeps what was set.
			if start, end := m.Selection(); start != tt.start || end != tt.end {
				t.Errorf("model selection = [%d, %d), want [%d, %d)", start, end, tt.start, tt.end)
			}

			start, end := m.Snapshot().Selection()
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("snapshot selection = [%d, %d), want [%d, %d)", start, end, tt.wantStart, tt.wantEnd)
			}
			if !(0 <= start && start < end && end <= tt.length) {
				t.Errorf("snapshot violates ordering: [%d, %d) of %d", start, end, tt.length)
			}
		})
	}
}

func TestLoadResetsSelection(t *testing.T) {
	m := NewModel()
	m.Load(1000)
	m.SetSelection(100, 200)
	m.Load(44100)

	if start, end := m.Selection(); start != 0 || end != 44100 {
		t.Errorf("selection after load = [%d, %d), want [0, 44100)", start, end)
	}
	if m.Length() != 44100 {
		t.Errorf("Length() = %d, want 44100", m.Length())
	}
}

func TestArgsPositionalOrder(t *testing.T) {
	s := Defaults(2048)
	s[Voice2Gain] = 0.5
	s[GrainSize] = 800

	args := s.Args()
	if len(args) != 17 {
		t.Fatalf("len(args) = %d, want 17", len(args))
	}
	if args[1] != 2048 || args[2] != 800 || args[14] != 0.5 {
		t.Errorf("unexpected positional args: %v", args)
	}
}

func TestVoiceAccessor(t *testing.T) {
	s := Defaults(100)
	s[Voice2FilterCutoff] = -440
	s[Voice2SampleSpeedRatio] = 2

	v := s.Voice(1)
	if v.FilterCutoff != -440 || v.SampleSpeedRatio != 2 {
		t.Errorf("Voice(1) = %+v", v)
	}
	if s.Voice(0).FilterCutoff != 0 {
		t.Errorf("Voice(0) picked up voice 2 value")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		id     ID
		in     float64
		length int
		want   float64
	}{
		{GrainSize, 0, 1000, 1},
		{GrainSize, 800.7, 1000, 800},
		{LinearSlopeLength, 1.5, 1000, 1},
		{SlopeLinearity, -1, 1000, 0},
		{Voice1SampleSpeedRatio, 0, 1000, 0.01},
		{Voice1Gain, math.NaN(), 1000, 1},
		{SelectionEnd, 5000, 1000, 1000},
		{SelectionStart, -3, 1000, 0},
		{Voice2FilterCutoff, -30000, 1000, -20000},
	}

	for _, tt := range tests {
		t.Run(tt.id.String(), func(t *testing.T) {
			if got := Clamp(tt.id, tt.in, tt.length); got != tt.want {
				t.Errorf("Clamp(%s, %v) = %v, want %v", tt.id, tt.in, got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	for id := range Count {
		got, ok := Lookup(id.String())
		if !ok || got != id {
			t.Errorf("Lookup(%q) = %v, %v", id.String(), got, ok)
		}
	}
	if _, ok := Lookup("voice3.gain"); ok {
		t.Error("Lookup accepted an unknown name")
	}
}
