// SPDX-License-Identifier: MIT
package selection_test

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"sampler/internal/params"
	"sampler/internal/selection"
)

var _ selection.Target = (*params.Model)(nil)

// newModel returns a model over a waveform of length n with the given
// selection. The display is one pixel per sample when width == n.
func newModel(n, start, end int) *params.Model {
	m := params.NewModel()
	m.Load(n)
	m.SetSelection(start, end)
	return m
}

func assertSelection(t *testing.T, m *params.Model, wantStart, wantEnd int) {
	t.Helper()
	start, end := m.Selection()
	if start != wantStart || end != wantEnd {
		t.Errorf("selection = [%d, %d], want [%d, %d]", start, end, wantStart, wantEnd)
	}
}

func TestDragStartMarkerPastEndClamps(t *testing.T) {
	m := newModel(1000, 100, 900)
	e := selection.NewEditor(m)

	e.Down(100, 1000)
	if e.State() != selection.DraggingStartMarker {
		t.Fatalf("state = %v, want dragging-start", e.State())
	}
	e.Move(950, 1000)
	assertSelection(t, m, 899, 900)
}

func TestDragEndMarkerBeforeStartClamps(t *testing.T) {
	m := newModel(1000, 100, 900)
	e := selection.NewEditor(m)

	e.Down(903, 1000)
	if e.State() != selection.DraggingEndMarker {
		t.Fatalf("state = %v, want dragging-end", e.State())
	}
	e.Move(20, 1000)
	assertSelection(t, m, 100, 101)

	e.Move(5000, 1000)
	assertSelection(t, m, 100, 1000)
}

func TestDragRangePastStartKeepsWidth(t *testing.T) {
	m := newModel(1000, 0, 200)
	e := selection.NewEditor(m)

	e.Down(100, 1000)
	if e.State() != selection.DraggingRange || e.Offset() != 100 {
		t.Fatalf("state = %v offset %d, want dragging-range offset 100", e.State(), e.Offset())
	}
	// Pointer at 50 proposes start = -50.
	e.Move(50, 1000)
	assertSelection(t, m, 0, 200)
}

func TestDragRangePreservesWidth(t *testing.T) {
	m := newModel(1000, 100, 300)
	e := selection.NewEditor(m)

	e.Down(200, 1000)
	for _, x := range []float64{210, 330, 450, 260} {
		e.Move(x, 1000)
		start, end := m.Selection()
		if end-start != 200 {
			t.Fatalf("after move to %v width = %d, want 200", x, end-start)
		}
	}
	assertSelection(t, m, 160, 360)
}

func TestDragRangePastEndClamps(t *testing.T) {
	m := newModel(1000, 700, 900)
	e := selection.NewEditor(m)

	e.Down(800, 1000)
	e.Move(1000, 1000)
	assertSelection(t, m, 800, 1000)
}

func TestPressOutsideMovesNearerBound(t *testing.T) {
	tests := []struct {
		name       string
		x          float64
		start, end int
	}{
		{"left of region moves start", 100, 100, 600},
		{"right of region moves end", 900, 400, 900},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newModel(1000, 400, 600)
			e := selection.NewEditor(m)
			if !e.Down(tt.x, 1000) {
				t.Error("press outside the region did not change the selection")
			}
			if e.State() != selection.Idle {
				t.Errorf("state = %v, want idle", e.State())
			}
			assertSelection(t, m, tt.start, tt.end)
		})
	}
}

func TestUpAndLeaveAlwaysReturnToIdle(t *testing.T) {
	for _, release := range []selection.EventKind{selection.PointerUp, selection.PointerLeave} {
		m := newModel(1000, 100, 900)
		e := selection.NewEditor(m)
		e.Down(500, 1000)
		e.Handle(selection.Event{Kind: release})
		if e.State() != selection.Idle {
			t.Errorf("kind %d left state %v", release, e.State())
		}
		if e.Move(10, 1000) {
			t.Errorf("kind %d: move after release changed the selection", release)
		}
	}
}

func TestEventsIgnoredWithoutGeometry(t *testing.T) {
	m := params.NewModel()
	e := selection.NewEditor(m)
	if e.Down(10, 100) {
		t.Error("press on empty waveform changed the selection")
	}

	m.Load(1000)
	if e.Down(10, 0) || e.Down(10, -5) {
		t.Error("press with non-positive width changed the selection")
	}
	if e.State() != selection.Idle {
		t.Errorf("state = %v, want idle", e.State())
	}
}

func TestHitRadiusOption(t *testing.T) {
	m := newModel(1000, 100, 900)
	e := selection.NewEditor(m, selection.WithHitRadius(20))
	e.Down(115, 1000)
	if e.State() != selection.DraggingStartMarker {
		t.Errorf("state = %v with radius 20, want dragging-start", e.State())
	}

	e = selection.NewEditor(m, selection.WithHitRadius(2), selection.WithMargin(0))
	e.Down(115, 1000)
	if e.State() != selection.DraggingRange {
		t.Errorf("state = %v with radius 2, want dragging-range", e.State())
	}
}

func TestInvariantHoldsForRandomEvents(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	kinds := []selection.EventKind{
		selection.PointerDown, selection.PointerMove, selection.PointerMove,
		selection.PointerMove, selection.PointerUp, selection.PointerLeave,
	}

	for _, length := range []int{1, 2, 3, 17, 1000, 44100} {
		t.Run(fmt.Sprintf("len=%d", length), func(t *testing.T) {
			m := params.NewModel()
			m.Load(length)
			e := selection.NewEditor(m)

			for i := range 5000 {
				width := []float64{800, 1, 37, 0, 1920}[rng.IntN(5)]
				ev := selection.Event{
					Kind:  kinds[rng.IntN(len(kinds))],
					X:     rng.Float64()*(width+400) - 200,
					Width: width,
				}
				e.Handle(ev)

				start, end := m.Selection()
				if err := selection.Validate(start, end, length); err != nil {
					t.Fatalf("event %d %+v in state %v: %v", i, ev, e.State(), err)
				}
			}
		})
	}
}

func TestHandleRepairsInvalidTarget(t *testing.T) {
	m := newModel(1000, 800, 200)
	e := selection.NewEditor(m)
	e.Down(500, 1000)
	start, end := m.Selection()
	if err := selection.Validate(start, end, 1000); err != nil {
		t.Errorf("selection after press: %v", err)
	}
}

func TestSampleAt(t *testing.T) {
	tests := []struct {
		px, width float64
		length    int
		expected  int
	}{
		{0, 800, 1000, 0},
		{400, 800, 1000, 500},
		{799.9, 800, 1000, 999},
		{800, 800, 1000, 1000},
		{900, 800, 1000, 1000},
		{-3, 800, 1000, 0},
		{1, 3, 10, 3},
		{5, 0, 1000, 0},
		{5, 800, 0, 0},
	}
	for _, tt := range tests {
		if got := selection.SampleAt(tt.px, tt.width, tt.length); got != tt.expected {
			t.Errorf("SampleAt(%v, %v, %d) = %d, expected %d", tt.px, tt.width, tt.length, got, tt.expected)
		}
	}
}

func TestPixelAt(t *testing.T) {
	if got := selection.PixelAt(500, 800, 1000); got != 400 {
		t.Errorf("PixelAt(500) = %v, expected 400", got)
	}
	if got := selection.PixelAt(1, 800, 3); got != 266 {
		t.Errorf("PixelAt(1) = %v, expected 266", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		start, end, length int
		valid              bool
	}{
		{0, 1000, 1000, true},
		{999, 1000, 1000, true},
		{5, 5, 1000, false},
		{-1, 10, 1000, false},
		{0, 1001, 1000, false},
		{10, 5, 1000, false},
	}
	for _, tt := range tests {
		err := selection.Validate(tt.start, tt.end, tt.length)
		if tt.valid && err != nil {
			t.Errorf("Validate(%d, %d, %d) = %v", tt.start, tt.end, tt.length, err)
		}
		if !tt.valid && !errors.Is(err, selection.ErrInvalidSelection) {
			t.Errorf("Validate(%d, %d, %d) = %v, want ErrInvalidSelection", tt.start, tt.end, tt.length, err)
		}
	}
}

func TestParseEventKind(t *testing.T) {
	for name, want := range map[string]selection.EventKind{
		"down": selection.PointerDown, "MOVE": selection.PointerMove,
		"up": selection.PointerUp, "leave": selection.PointerLeave,
	} {
		if got, ok := selection.ParseEventKind(name); !ok || got != want {
			t.Errorf("ParseEventKind(%q) = %v, %v", name, got, ok)
		}
	}
	if _, ok := selection.ParseEventKind("click"); ok {
		t.Error("unknown kind accepted")
	}
}
