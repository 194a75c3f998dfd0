// SPDX-License-Identifier: MIT
/*
Package transport carries session state to presentation clients and pointer
and parameter edits back.

Outbound messages are JSON objects tagged by "type":

	selection  current bounds, waveform length and editor state
	overview   peak pairs per display column of a committed Processed Buffer
	spectrum   magnitude spectrum and band levels at the playback position
	param      one parameter value after clamping
	error      a failed recompute

Inbound commands:

	{"type":"pointer","event":"down|move|up|leave","x":..,"width":..}
	{"type":"param","name":..,"value":..}
*/
package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"sampler/internal/analysis"
	"sampler/internal/selection"
)

// Transport sends outbound messages. Implementations must be safe for
// concurrent use and must not block the caller.
type Transport interface {
	Send(data any) error
	Close() error
}

// Controller applies inbound commands to a session.
type Controller interface {
	Pointer(ev selection.Event) bool
	SetParam(name string, value float64) error
	// Greeting returns the messages a newly connected client needs to draw
	// the current state.
	Greeting() []any
}

// ErrUnknownCommand is returned for an inbound message with an unknown type
// or pointer event.
var ErrUnknownCommand = errors.New("unknown command")

const (
	TypeSelection = "selection"
	TypeOverview  = "overview"
	TypeSpectrum  = "spectrum"
	TypeParam     = "param"
	TypeError     = "error"
	TypePointer   = "pointer"
)

type SelectionMessage struct {
	Type   string `json:"type"`
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Length int    `json:"length"`
	State  string `json:"state"`
}

func NewSelectionMessage(start, end, length int, state selection.State) SelectionMessage {
	return SelectionMessage{Type: TypeSelection, Start: start, End: end, Length: length, State: state.String()}
}

type OverviewMessage struct {
	Type       string          `json:"type"`
	Generation uint64          `json:"generation"`
	Length     int             `json:"length"`
	Peaks      []analysis.Peak `json:"peaks"`
}

func NewOverviewMessage(generation uint64, length int, peaks []analysis.Peak) OverviewMessage {
	return OverviewMessage{Type: TypeOverview, Generation: generation, Length: length, Peaks: peaks}
}

type SpectrumMessage struct {
	Type       string    `json:"type"`
	Position   int       `json:"position"`
	Magnitudes []float32 `json:"magnitudes"`
	Bands      []float64 `json:"bands"`
}

type ParamMessage struct {
	Type  string  `json:"type"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func NewParamMessage(name string, value float64) ParamMessage {
	return ParamMessage{Type: TypeParam, Name: name, Value: value}
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorMessage(err error) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: err.Error()}
}

// Command is one inbound message.
type Command struct {
	Type  string  `json:"type"`
	Event string  `json:"event,omitempty"`
	X     float64 `json:"x,omitempty"`
	Width float64 `json:"width,omitempty"`
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// Dispatch decodes one inbound message and applies it to c.
func Dispatch(c Controller, data []byte) error {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}

	switch cmd.Type {
	case TypePointer:
		kind, ok := selection.ParseEventKind(cmd.Event)
		if !ok {
			return fmt.Errorf("%w: pointer event %q", ErrUnknownCommand, cmd.Event)
		}
		c.Pointer(selection.Event{Kind: kind, X: cmd.X, Width: cmd.Width})
		return nil
	case TypeParam:
		return c.SetParam(cmd.Name, cmd.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}
