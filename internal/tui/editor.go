// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sampler/internal/analysis"
	"sampler/internal/params"
	"sampler/internal/render"
)

// refreshInterval paces redraws of the overview and status line.
const refreshInterval = 100 * time.Millisecond

// Session is the part of a sampler session the editor drives.
type Session interface {
	Get(id params.ID) float64
	Set(id params.ID, v float64) float64
	Selection() (start, end, length int)
	Processed() *render.Result
}

type editorKeys struct {
	Up, Down, Dec, Inc, DecFast, IncFast, Reset, Quit key.Binding
}

var keys = editorKeys{
	Up:      key.NewBinding(key.WithKeys("up", "k")),
	Down:    key.NewBinding(key.WithKeys("down", "j")),
	Dec:     key.NewBinding(key.WithKeys("left", "h")),
	Inc:     key.NewBinding(key.WithKeys("right", "l")),
	DecFast: key.NewBinding(key.WithKeys("shift+left", "H")),
	IncFast: key.NewBinding(key.WithKeys("shift+right", "L")),
	Reset:   key.NewBinding(key.WithKeys("r")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// EditorModel is a keyboard parameter editor with a waveform overview of the
// latest Processed Buffer.
type EditorModel struct {
	session  Session
	title    string
	cursor   params.ID
	viewport viewport.Model
	width    int
	ready    bool
}

// NewEditorModel creates an editor for session. title is shown in the header.
func NewEditorModel(session Session, title string) EditorModel {
	return EditorModel{session: session, title: title, cursor: params.GrainSize}
}

func (m EditorModel) Init() tea.Cmd {
	return tick()
}

func (m EditorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if !m.ready {
			m.viewport = viewport.New(msg.Width, max(1, msg.Height-8))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = max(1, msg.Height-8)
		}
		m.viewport.SetContent(m.renderParams())

	case tickMsg:
		// Parameters may also change over the bridge.
		if m.ready {
			m.viewport.SetContent(m.renderParams())
		}
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < params.Count-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Dec):
			m.step(-1)
		case key.Matches(msg, keys.Inc):
			m.step(1)
		case key.Matches(msg, keys.DecFast):
			m.step(-10)
		case key.Matches(msg, keys.IncFast):
			m.step(10)
		case key.Matches(msg, keys.Reset):
			m.resetCurrent()
		}
		if m.ready {
			m.viewport.SetContent(m.renderParams())
		}
	}
	return m, nil
}

// step moves the parameter under the cursor by n increments.
func (m EditorModel) step(n float64) {
	d := params.Descriptors[m.cursor]
	m.session.Set(m.cursor, m.session.Get(m.cursor)+n*d.Step)
}

func (m EditorModel) resetCurrent() {
	v := params.Descriptors[m.cursor].Default
	if m.cursor == params.SelectionEnd {
		_, _, length := m.session.Selection()
		v = float64(length)
	}
	m.session.Set(m.cursor, v)
}

func (m EditorModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")
	sb.WriteString(m.renderOverview())
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(infoStyle.Render("↑/↓: Select • ←/→: Adjust • H/L: Adjust ×10 • r: Reset • q: Quit"))
	return sb.String()
}

func (m EditorModel) renderParams() string {
	var sb strings.Builder
	for id := range params.Count {
		d := params.Descriptors[id]
		v := m.session.Get(id)
		value := fmt.Sprintf("%.3f", v)
		if d.Integer {
			value = fmt.Sprintf("%d", int(v))
		}
		line := fmt.Sprintf("  %-36s %12s", d.Name, value)
		if id == m.cursor {
			line = highlightStyle.Render("▶" + line[1:])
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// overviewGlyphs maps a peak-to-peak height in eighths to a block character.
var overviewGlyphs = []rune(" ▁▂▃▄▅▆▇█")

// renderOverview draws one block per column of the processed waveform, with
// the selected range highlighted.
func (m EditorModel) renderOverview() string {
	res := m.session.Processed()
	if res == nil || m.width <= 0 {
		return infoStyle.Render("(rendering...)")
	}

	start, end, length := m.session.Selection()
	peaks := analysis.Overview(res.Samples, m.width)
	var sb strings.Builder
	for c, p := range peaks {
		h := int(float64(p.Max-p.Min) / 2 * float64(len(overviewGlyphs)-1))
		g := string(overviewGlyphs[max(0, min(h, len(overviewGlyphs)-1))])
		s := c * length / m.width
		if s >= start && s < end {
			g = selectedStyle.Render(g)
		}
		sb.WriteString(g)
	}
	return sb.String()
}

func (m EditorModel) renderStatus() string {
	start, end, length := m.session.Selection()
	status := fmt.Sprintf("selection [%d, %d) of %d", start, end, length)
	if res := m.session.Processed(); res != nil {
		status += fmt.Sprintf(" • pass %d in %s", res.Generation, res.Elapsed.Round(time.Millisecond))
	}
	return infoStyle.Render(status)
}

// RunEditor runs the editor until the user quits or ctx is done.
func RunEditor(ctx context.Context, session Session, title string) error {
	p := tea.NewProgram(NewEditorModel(session, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

var selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#25A065"))
