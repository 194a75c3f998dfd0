// SPDX-License-Identifier: MIT
/*
Package selection implements the pointer-driven selection editor.

The editor turns pointer events in pixel space into selection bounds in sample
space. It is driven from a single input stream and holds no locks of its own;
the Target it edits is responsible for its own synchronization.

	Idle ──down on start marker──▶ DraggingStartMarker ──up/leave──▶ Idle
	     ──down on end marker────▶ DraggingEndMarker   ──up/leave──▶ Idle
	     ──down inside region────▶ DraggingRange       ──up/leave──▶ Idle
	     ──down elsewhere────────▶ (move nearer bound)  stays Idle

After every event the target satisfies 0 <= start < end <= length.
*/
package selection

import (
	"fmt"
	"math"
	"strings"
)

// State is the drag state of the editor.
type State int

const (
	Idle State = iota
	DraggingStartMarker
	DraggingEndMarker
	DraggingRange
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DraggingStartMarker:
		return "dragging-start"
	case DraggingEndMarker:
		return "dragging-end"
	case DraggingRange:
		return "dragging-range"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind is the kind of pointer event.
type EventKind int

const (
	PointerDown EventKind = iota
	PointerMove
	PointerUp
	PointerLeave
)

// ParseEventKind maps the wire names down, move, up and leave to a kind.
func ParseEventKind(s string) (EventKind, bool) {
	switch strings.ToLower(s) {
	case "down":
		return PointerDown, true
	case "move":
		return PointerMove, true
	case "up":
		return PointerUp, true
	case "leave":
		return PointerLeave, true
	}
	return 0, false
}

// Event is one pointer event. Width is the display width in pixels at the
// time of the event.
type Event struct {
	Kind  EventKind
	X     float64
	Width float64
}

// Target is the selection being edited. params.Model satisfies it.
type Target interface {
	Length() int
	Selection() (start, end int)
	SetSelection(start, end int)
}

const (
	DefaultHitRadius = 6.0
	DefaultMargin    = 4.0
)

// Option configures an Editor.
type Option func(*Editor)

// WithHitRadius sets the marker grab distance in pixels.
func WithHitRadius(px float64) Option {
	return func(e *Editor) {
		if px >= 0 {
			e.hitRadius = px
		}
	}
}

// WithMargin sets how far outside the region a press still grabs the range.
func WithMargin(px float64) Option {
	return func(e *Editor) {
		if px >= 0 {
			e.margin = px
		}
	}
}

// Editor is the selection state machine.
type Editor struct {
	target    Target
	hitRadius float64
	margin    float64

	state  State
	offset int // Samples between the press and the start bound, DraggingRange only.
}

// NewEditor creates an idle editor over target.
func NewEditor(target Target, opts ...Option) *Editor {
	e := &Editor{
		target:    target,
		hitRadius: DefaultHitRadius,
		margin:    DefaultMargin,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// State returns the current drag state.
func (e *Editor) State() State { return e.state }

// Offset returns the range-drag offset captured at press time.
func (e *Editor) Offset() int { return e.offset }

// Reset drops any drag in progress. Called when a new waveform is loaded.
func (e *Editor) Reset() {
	e.state = Idle
	e.offset = 0
}

// Handle applies one event and reports whether the selection changed.
// Events are ignored while no waveform is loaded or the width is not positive,
// except that up and leave always end a drag.
func (e *Editor) Handle(ev Event) bool {
	if ev.Kind == PointerUp || ev.Kind == PointerLeave {
		e.Reset()
		return false
	}

	length := e.target.Length()
	if length <= 0 || ev.Width <= 0 || math.IsNaN(ev.X) {
		return false
	}

	cur0, cur1 := e.target.Selection()
	start, end := Repair(cur0, cur1, length)
	p := SampleAt(ev.X, ev.Width, length)

	switch ev.Kind {
	case PointerDown:
		start, end = e.press(ev, p, start, end, length)
	case PointerMove:
		start, end = e.drag(p, start, end, length)
	}

	if start == cur0 && end == cur1 {
		return false
	}
	e.target.SetSelection(start, end)
	return true
}

// Down, Move, Up and Leave are shorthands for Handle.
func (e *Editor) Down(x, width float64) bool { return e.Handle(Event{PointerDown, x, width}) }
func (e *Editor) Move(x, width float64) bool { return e.Handle(Event{PointerMove, x, width}) }
func (e *Editor) Up() bool                   { return e.Handle(Event{Kind: PointerUp}) }
func (e *Editor) Leave() bool                { return e.Handle(Event{Kind: PointerLeave}) }

func (e *Editor) press(ev Event, p, start, end, length int) (int, int) {
	startPx := PixelAt(start, ev.Width, length)
	endPx := PixelAt(end, ev.Width, length)
	dStart := math.Abs(ev.X - startPx)
	dEnd := math.Abs(ev.X - endPx)

	// --- Marker hit ---
	if dStart <= e.hitRadius || dEnd <= e.hitRadius {
		// Overlapping markers resolve by which side of the end marker the press is on.
		if dEnd < dStart || (dEnd == dStart && ev.X >= endPx) {
			e.state = DraggingEndMarker
		} else {
			e.state = DraggingStartMarker
		}
		return start, end
	}

	// --- Region hit ---
	if ev.X >= startPx-e.margin && ev.X <= endPx+e.margin {
		e.state = DraggingRange
		e.offset = p - start
		return start, end
	}

	// --- New selection point ---
	// The nearer bound moves to the press. The drag clamps keep the order,
	// so a bound never crosses the other one.
	e.state = Idle
	if dStart <= dEnd {
		return moveStart(p, end), end
	}
	return start, moveEnd(p, start, length)
}

func (e *Editor) drag(p, start, end, length int) (int, int) {
	switch e.state {
	case DraggingStartMarker:
		return moveStart(p, end), end
	case DraggingEndMarker:
		return start, moveEnd(p, start, length)
	case DraggingRange:
		return shiftRange(p-e.offset, end-start, length)
	}
	return start, end
}

func moveStart(p, end int) int {
	return max(0, min(p, end-1))
}

func moveEnd(p, start, length int) int {
	return min(length, max(p, start+1))
}

// shiftRange places a range of the given width at proposedStart, clamping at
// both buffer edges by shifting the other bound by the same deficit.
func shiftRange(proposedStart, width, length int) (int, int) {
	width = max(1, min(width, length))
	start := proposedStart
	end := start + width
	if start < 0 {
		end -= start
		start = 0
	}
	if end > length {
		start -= end - length
		end = length
	}
	return max(0, start), end
}
