// SPDX-License-Identifier: MIT
/*
Package session wires one sampler session together: the parameter model and
selection editor on the control side, the engine renderer and its debounced
scheduler, and the frame queue the real-time callback drains.

	edits ──► Model ──► Scheduler ──► Renderer ──► Result
	                                              │
	                      callback ◄── Queue ◄── Feeder

Only the FrameSource returned by Source is touched by the audio callback.
Every other method belongs to the control domain.
*/
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"sampler/internal/analysis"
	"sampler/internal/audio"
	"sampler/internal/config"
	"sampler/internal/decode"
	"sampler/internal/engine"
	applog "sampler/internal/log"
	"sampler/internal/params"
	"sampler/internal/render"
	"sampler/internal/selection"
	"sampler/internal/transport"
	"sampler/internal/transport/udp"
)

var (
	// ErrUnknownParam is returned by SetParam for an unknown wire name.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrNoWaveform is returned when an operation needs a loaded waveform.
	ErrNoWaveform = errors.New("no waveform loaded")
)

// Session is a single loaded recording with its parameters and render state.
type Session struct {
	mu       sync.Mutex // Serializes control-domain access to waveform and editor.
	waveform decode.Waveform
	model    *params.Model
	editor   *selection.Editor
	width    float64 // Display width used for overview messages.

	renderer  *render.Renderer
	scheduler *render.Scheduler

	queue  *audio.FrameQueue
	source *audio.FrameSource
	feeder *audio.Feeder

	fft     *analysis.FFTProcessor
	bands   *analysis.BandEnergy
	levels  []float64
	monitor *monitor

	tmu        sync.RWMutex
	transports []transport.Transport
}

// New creates a session over an engine module. cfg is validated by the caller.
func New(module engine.Module, cfg *config.Config) (*Session, error) {
	mode, ok := audio.ParseMode(cfg.Audio.Mode)
	if !ok {
		return nil, fmt.Errorf("session: unknown audio mode %q", cfg.Audio.Mode)
	}
	win, err := analysis.ParseWindowFunc(cfg.Analysis.FFTWindow)
	if err != nil {
		applog.Warnf("Session: %v, using %s", err, win)
	}
	fft, err := analysis.NewFFTProcessor(cfg.Analysis.FFTSize, cfg.Audio.SampleRate, win)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		model:    params.NewModel(),
		width:    cfg.Selection.DisplayWidth,
		renderer: render.NewRenderer(engine.NewBinding(module)),
		queue:    audio.NewFrameQueue(cfg.Audio.QueueFrames),
		fft:      fft,
	}
	s.editor = selection.NewEditor(s.model,
		selection.WithHitRadius(cfg.Selection.HitRadius),
		selection.WithMargin(cfg.Selection.Margin))
	s.bands = analysis.NewBandEnergy(fft, analysis.DefaultBands)
	s.levels = make([]float64, len(analysis.DefaultBands))

	s.scheduler = render.NewScheduler(s.renderer, render.SourceFunc(s.renderInput), cfg.Render.Debounce)
	s.scheduler.OnCommit = s.onCommit
	s.scheduler.OnError = s.onError

	s.source = audio.NewFrameSource(s.queue, mode)
	s.feeder = audio.NewFeeder(s.queue, s.scheduler, cfg.Audio.SampleRate, 0)
	s.monitor = newMonitor(s, cfg.Transport.UDPSendInterval)
	return s, nil
}

// Start launches the scheduler worker, the feeder and the monitor.
func (s *Session) Start() {
	s.scheduler.Start()
	s.feeder.Start()
	s.monitor.Start()
}

// Source returns the frame source for the audio callback.
func (s *Session) Source() *audio.FrameSource { return s.source }

// Queue returns the frame queue between the feeder and the callback.
func (s *Session) Queue() *audio.FrameQueue { return s.queue }

// Spectrum returns the analyzer the monitor feeds.
func (s *Session) Spectrum() analysis.FFTResultProvider { return s.fft }

// SetLoop controls whether playback repeats the Processed Buffer.
func (s *Session) SetLoop(loop bool) { s.feeder.SetLoop(loop) }

// AddTransport registers an outbound message sink.
func (s *Session) AddTransport(t transport.Transport) {
	s.tmu.Lock()
	s.transports = append(s.transports, t)
	s.tmu.Unlock()
}

// Load replaces the waveform, resets the selection to the whole buffer and
// schedules a recompute.
func (s *Session) Load(w decode.Waveform) error {
	if w.Len() == 0 {
		return ErrNoWaveform
	}

	s.mu.Lock()
	s.waveform = w
	s.model.Load(w.Len())
	s.editor.Reset()
	msg := s.selectionMessage()
	s.mu.Unlock()

	applog.Infof("Session: Loaded %d samples (%s at %d Hz)", w.Len(), w.Duration(), w.SampleRate)
	s.scheduler.Trigger()
	s.publish(msg)
	return nil
}

// Waveform returns the loaded waveform.
func (s *Session) Waveform() decode.Waveform {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waveform
}

// Set clamps v into the range of id, stores it and schedules a recompute. It
// returns the stored value.
func (s *Session) Set(id params.ID, v float64) float64 {
	s.mu.Lock()
	v = params.Clamp(id, v, s.model.Length())
	s.model.Set(id, v)
	var sel *transport.SelectionMessage
	if id == params.SelectionStart || id == params.SelectionEnd {
		m := s.selectionMessage()
		sel = &m
	}
	s.mu.Unlock()

	s.scheduler.Trigger()
	s.publish(transport.NewParamMessage(id.String(), v))
	if sel != nil {
		s.publish(*sel)
	}
	return v
}

// SetParam is Set by wire name.
func (s *Session) SetParam(name string, v float64) error {
	id, ok := params.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	s.Set(id, v)
	return nil
}

// Get returns the current value of id.
func (s *Session) Get(id params.ID) float64 { return s.model.Get(id) }

// Params returns an ordered snapshot of the current parameters.
func (s *Session) Params() params.Set { return s.model.Snapshot() }

// Pointer feeds one pointer event to the selection editor and schedules a
// recompute when the selection changed.
func (s *Session) Pointer(ev selection.Event) bool {
	s.mu.Lock()
	changed := s.editor.Handle(ev)
	msg := s.selectionMessage()
	s.mu.Unlock()

	if changed {
		s.scheduler.Trigger()
	}
	s.publish(msg)
	return changed
}

// EditorState returns the editor's drag state.
func (s *Session) EditorState() selection.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.State()
}

// Selection returns the ordered selection and the waveform length.
func (s *Session) Selection() (start, end, length int) {
	snap := s.model.Snapshot()
	start, end = snap.Selection()
	return start, end, s.model.Length()
}

// Processed returns the latest committed Processed Buffer, or nil.
func (s *Session) Processed() *render.Result { return s.scheduler.Latest() }

// RenderNow runs a pass immediately and commits it.
func (s *Session) RenderNow() (*render.Result, error) {
	if s.model.Length() == 0 {
		return nil, ErrNoWaveform
	}
	return s.scheduler.RenderNow()
}

// Greeting returns the messages a new presentation client needs.
func (s *Session) Greeting() []any {
	s.mu.Lock()
	msgs := []any{s.selectionMessage()}
	s.mu.Unlock()

	snap := s.model.Snapshot()
	for id := range params.Count {
		msgs = append(msgs, transport.NewParamMessage(id.String(), snap[id]))
	}
	if res := s.Processed(); res != nil {
		msgs = append(msgs, s.overviewMessage(res))
	}
	return msgs
}

// Status reports the state carried in telemetry packets.
func (s *Session) Status() udp.Status {
	start, end, length := s.Selection()
	st := udp.Status{
		SelectionStart: uint32(start),
		SelectionEnd:   uint32(end),
		Length:         uint32(length),
		Position:       uint32(s.playbackPosition()),
		QueuedFrames:   uint16(min(s.queue.Len(), 0xffff)),
		Underruns:      s.source.UnderrunCount(),
	}
	if res := s.Processed(); res != nil {
		st.Generation = res.Generation
	}
	return st
}

// Close stops every goroutine, frees the engine instance and closes the
// transports. The audio callback must be stopped first.
func (s *Session) Close() error {
	var errs []error
	errs = append(errs, s.monitor.Stop(), s.feeder.Stop(), s.scheduler.Stop())

	s.tmu.Lock()
	for _, t := range s.transports {
		errs = append(errs, t.Close())
	}
	s.transports = nil
	s.tmu.Unlock()
	return errors.Join(errs...)
}

// renderInput runs on the scheduler worker at the start of each pass.
func (s *Session) renderInput() ([]float32, params.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waveform.Samples, s.model.Snapshot()
}

func (s *Session) onCommit(res *render.Result) {
	applog.Debugf("Session: Pass %d committed in %s", res.Generation, res.Elapsed.Round(time.Microsecond))
	s.publish(s.overviewMessage(res))
}

func (s *Session) onError(err error) {
	applog.Warnf("Session: Recompute failed: %v", err)
	s.publish(transport.NewErrorMessage(err))
}

// selectionMessage must be called with s.mu held.
func (s *Session) selectionMessage() transport.SelectionMessage {
	start, end := s.model.Snapshot().Selection()
	return transport.NewSelectionMessage(start, end, s.model.Length(), s.editor.State())
}

func (s *Session) overviewMessage(res *render.Result) transport.OverviewMessage {
	return transport.NewOverviewMessage(res.Generation, len(res.Samples), analysis.Overview(res.Samples, int(s.width)))
}

// playbackPosition estimates the sample the callback is playing: the feeder's
// position minus what is still queued.
func (s *Session) playbackPosition() int {
	res := s.Processed()
	if res == nil || len(res.Samples) == 0 {
		return 0
	}
	n := len(res.Samples)
	pos := (s.feeder.Position() - s.queue.Len()*engine.FrameSize) % n
	if pos < 0 {
		pos += n
	}
	return pos
}

func (s *Session) publish(msg any) {
	s.tmu.RLock()
	defer s.tmu.RUnlock()
	for _, t := range s.transports {
		if err := t.Send(msg); err != nil {
			applog.Debugf("Session: Send %T: %v", msg, err)
		}
	}
}

var (
	_ transport.Controller = (*Session)(nil)
	_ udp.StatusSource     = (*Session)(nil)
)
