// SPDX-License-Identifier: MIT
package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"sampler/internal/audio"
	"sampler/internal/params"
	"sampler/internal/render"
)

type fakeSession struct {
	model  *params.Model
	result *render.Result
}

func newFakeSession(length int) *fakeSession {
	m := params.NewModel()
	m.Load(length)
	return &fakeSession{model: m}
}

func (f *fakeSession) Get(id params.ID) float64 { return f.model.Get(id) }

func (f *fakeSession) Set(id params.ID, v float64) float64 {
	v = params.Clamp(id, v, f.model.Length())
	f.model.Set(id, v)
	return v
}

func (f *fakeSession) Selection() (int, int, int) {
	s := f.model.Snapshot()
	start, end := s.Selection()
	return start, end, f.model.Length()
}

func (f *fakeSession) Processed() *render.Result { return f.result }

func sized(t *testing.T, m tea.Model) tea.Model {
	t.Helper()
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func press(m tea.Model, k tea.KeyMsg) (tea.Model, tea.Cmd) {
	return m.Update(k)
}

var (
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyRight = tea.KeyMsg{Type: tea.KeyRight}
	keyLeft  = tea.KeyMsg{Type: tea.KeyLeft}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
)

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestEditorAdjustsParameterUnderCursor(t *testing.T) {
	sess := newFakeSession(10000)
	var m tea.Model = sized(t, NewEditorModel(sess, "loop.wav"))

	// Cursor starts on grainSize.
	m, _ = press(m, keyRight)
	if got, want := sess.Get(params.GrainSize), 4800+params.Descriptors[params.GrainSize].Step; got != want {
		t.Errorf("grainSize = %v, want %v", got, want)
	}
	m, _ = press(m, runes("H"))
	if got, want := sess.Get(params.GrainSize), 4800-9*params.Descriptors[params.GrainSize].Step; got != want {
		t.Errorf("grainSize after fast decrement = %v, want %v", got, want)
	}
	m, _ = press(m, runes("r"))
	if got := sess.Get(params.GrainSize); got != 4800 {
		t.Errorf("grainSize after reset = %v, want 4800", got)
	}

	// Clamped at the lower bound.
	m, _ = press(m, keyUp)
	m, _ = press(m, keyUp)
	for range 3 {
		m, _ = press(m, keyLeft)
	}
	if got := sess.Get(params.SelectionStart); got != 0 {
		t.Errorf("selectionStart = %v, want 0", got)
	}
	_ = m
}

func TestEditorResetSelectionEndUsesLength(t *testing.T) {
	sess := newFakeSession(5000)
	sess.Set(params.SelectionEnd, 1000)

	var m tea.Model = sized(t, NewEditorModel(sess, "x"))
	m, _ = press(m, keyUp)
	m, _ = press(m, runes("r"))
	if got := sess.Get(params.SelectionEnd); got != 5000 {
		t.Errorf("selectionEnd after reset = %v, want 5000", got)
	}
	_ = m
}

func TestEditorCursorBounds(t *testing.T) {
	sess := newFakeSession(100)
	var m tea.Model = sized(t, NewEditorModel(sess, "x"))
	for range params.Count + 3 {
		m, _ = press(m, keyDown)
	}
	if c := m.(EditorModel).cursor; c != params.Count-1 {
		t.Errorf("cursor = %d, want %d", c, params.Count-1)
	}
	for range params.Count + 3 {
		m, _ = press(m, keyUp)
	}
	if c := m.(EditorModel).cursor; c != 0 {
		t.Errorf("cursor = %d, want 0", c)
	}
}

func TestEditorView(t *testing.T) {
	sess := newFakeSession(4000)
	m := NewEditorModel(sess, "loop.wav")
	if v := m.View(); v != "Initializing..." {
		t.Errorf("View before size = %q", v)
	}

	ready := sized(t, m)
	v := ready.View()
	for _, want := range []string{"loop.wav", "grainSize", "voice2.gain", "rendering", "selection [0, 4000) of 4000"} {
		if !strings.Contains(v, want) {
			t.Errorf("View missing %q", want)
		}
	}

	samples := make([]float32, 4000)
	for i := range samples {
		samples[i] = 0.5
		if i%2 == 1 {
			samples[i] = -0.5
		}
	}
	sess.result = &render.Result{Samples: samples, Generation: 3, Elapsed: 12 * time.Millisecond}
	v = ready.View()
	if !strings.Contains(v, "pass 3 in 12ms") {
		t.Errorf("View missing pass status:\n%s", v)
	}
	if !strings.Contains(v, "▄") {
		t.Errorf("View missing overview blocks:\n%s", v)
	}
}

func TestEditorQuitAndTick(t *testing.T) {
	m := NewEditorModel(newFakeSession(10), "x")
	if m.Init() == nil {
		t.Fatal("Init should schedule a refresh")
	}
	if _, cmd := m.Update(tickMsg(time.Now())); cmd == nil {
		t.Error("tick should reschedule")
	}
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("q returned %T, want tea.QuitMsg", cmd())
	}
}

func testDevices() []audio.Device {
	return []audio.Device{
		{ID: 0, Name: "Mic", MaxInputChannels: 1},
		{ID: 1, Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{ID: 2, Name: "Interface", MaxInputChannels: 2, MaxOutputChannels: 2, DefaultSampleRate: 44100},
	}
}

func loadedPicker(t *testing.T) tea.Model {
	t.Helper()
	m := DeviceListModel{fetch: func() ([]audio.Device, error) { return testDevices(), nil }, chosen: -1}
	var model tea.Model = sized(t, m)
	model, _ = model.Update(m.Init()())
	return model
}

func TestDevicePickerStartsOnOutputDevice(t *testing.T) {
	m := loadedPicker(t)
	if idx := m.(DeviceListModel).selectedIndex; idx != 1 {
		t.Errorf("selectedIndex = %d, want 1", idx)
	}
	v := m.View()
	for _, want := range []string{"Output Devices", "[0] Mic (Input)", "[2] Interface (Input/Output)"} {
		if !strings.Contains(v, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestDevicePickerChoose(t *testing.T) {
	m := loadedPicker(t)
	m, _ = press(m, keyDown)
	m, cmd := press(m, keyEnter)
	if cmd == nil {
		t.Fatal("Enter on an output device should quit")
	}
	if id := m.(DeviceListModel).Chosen(); id != 2 {
		t.Errorf("Chosen = %d, want 2", id)
	}
}

func TestDevicePickerRejectsInputOnly(t *testing.T) {
	m := loadedPicker(t)
	m, _ = press(m, keyUp)
	m, _ = press(m, keyEnter)
	if id := m.(DeviceListModel).Chosen(); id != -1 {
		t.Errorf("Chosen = %d, want -1 for an input-only device", id)
	}
}

func TestDevicePickerError(t *testing.T) {
	boom := errors.New("no host")
	m := DeviceListModel{fetch: func() ([]audio.Device, error) { return nil, boom }, chosen: -1}
	var model tea.Model = m
	model, _ = model.Update(m.Init()())
	if v := model.View(); !strings.Contains(v, "no host") {
		t.Errorf("View = %q", v)
	}
}
