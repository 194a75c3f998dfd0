// SPDX-License-Identifier: MIT
package render

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	applog "sampler/internal/log"
	"sampler/internal/params"
)

// DefaultDebounce is the quiescence window used when none is configured.
const DefaultDebounce = 150 * time.Millisecond

var (
	// ErrSchedulerStopped is returned by RenderNow after Stop.
	ErrSchedulerStopped = errors.New("render scheduler stopped")
	// ErrSuperseded is returned by RenderNow when a newer generation was
	// requested while its pass ran. The result is returned but not committed.
	ErrSuperseded = errors.New("render pass superseded")
)

// Source supplies the inputs of a pass at the moment the pass starts, so a
// pass always sees the final state after a burst of edits.
type Source interface {
	RenderInput() (waveform []float32, snap params.Set)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]float32, params.Set)

func (f SourceFunc) RenderInput() ([]float32, params.Set) { return f() }

// Result is one committed Processed Buffer. It is never mutated after commit.
type Result struct {
	Samples    []float32
	Params     params.Set
	Generation uint64
	Elapsed    time.Duration
}

// Scheduler debounces recompute requests and runs passes one at a time on a
// single worker goroutine.
//
// Every Trigger bumps a generation counter and restarts the quiescence timer.
// When the timer fires the worker runs a pass for the generation current at
// that moment. A pass whose generation is no longer the latest when it
// finishes is discarded, so the last write always wins.
type Scheduler struct {
	renderer *Renderer
	source   Source
	delay    time.Duration

	// OnCommit and OnError are called from the worker goroutine. They must not
	// call back into the scheduler synchronously with RenderNow.
	OnCommit func(*Result)
	OnError  func(error)

	generation atomic.Uint64
	latest     atomic.Pointer[Result]
	passMu     sync.Mutex // Serializes passes between the worker and RenderNow.

	wake     chan struct{}
	mu       sync.Mutex // Protects timer, doneChan and running.
	timer    *time.Timer
	doneChan chan struct{}
	running  bool
	stopped  bool
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. A non-positive delay uses DefaultDebounce.
func NewScheduler(renderer *Renderer, source Source, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Scheduler{
		renderer: renderer,
		source:   source,
		delay:    delay,
		wake:     make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.stopped {
		return
	}
	s.running = true
	s.doneChan = make(chan struct{})
	done := s.doneChan

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		applog.Debugf("Render: Scheduler worker started (debounce %s)", s.delay)
		for {
			select {
			case <-s.wake:
				s.runPass()
			case <-done:
				applog.Debugf("Render: Scheduler worker received stop signal.")
				return
			}
		}
	}()
}

// Trigger schedules a recompute after the quiescence window. A pending,
// not yet started recompute is cancelled and rescheduled.
func (s *Scheduler) Trigger() uint64 {
	gen := s.generation.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return gen
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		if s.generation.Load() != gen {
			return // A newer Trigger owns the window.
		}
		select {
		case s.wake <- struct{}{}:
		default: // A wake is already pending.
		}
	})
	return gen
}

// RenderNow runs a pass synchronously, bypassing the debounce window, and
// commits it like a scheduled pass. It is used for one-shot offline renders.
//
// If a Trigger lands while the pass runs, RenderNow returns the uncommitted
// result together with ErrSuperseded; Latest is left unchanged.
func (s *Scheduler) RenderNow() (*Result, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, ErrSchedulerStopped
	}

	s.generation.Add(1)
	return s.pass()
}

// Latest returns the most recently committed result, or nil.
func (s *Scheduler) Latest() *Result {
	return s.latest.Load()
}

// Generation returns the newest requested generation.
func (s *Scheduler) Generation() uint64 {
	return s.generation.Load()
}

// Stop cancels any pending recompute, waits for an in-flight pass to finish
// and frees the engine instance. It is safe to call more than once.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.running {
		close(s.doneChan)
		s.running = false
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.passMu.Lock()
	defer s.passMu.Unlock()
	return s.renderer.Close()
}

func (s *Scheduler) runPass() {
	_, err := s.pass()
	if err == nil || errors.Is(err, ErrSuperseded) {
		return
	}
	if s.OnError != nil {
		s.OnError(err)
	}
}

// pass renders the generation current at its start and commits it only if no
// newer generation was requested meanwhile.
func (s *Scheduler) pass() (*Result, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	gen := s.generation.Load()
	waveform, snap := s.source.RenderInput()

	started := time.Now()
	samples, err := s.renderer.Pass(waveform, snap)
	if err != nil {
		applog.Errorf("Render: Pass %d failed, keeping previous buffer: %v", gen, err)
		return nil, fmt.Errorf("render pass %d: %w", gen, err)
	}

	res := &Result{
		Samples:    samples,
		Params:     snap,
		Generation: gen,
		Elapsed:    time.Since(started),
	}

	if latest := s.generation.Load(); latest != gen {
		applog.Debugf("Render: Pass %d superseded by %d, discarding", gen, latest)
		return res, fmt.Errorf("pass %d behind %d: %w", gen, latest, ErrSuperseded)
	}

	s.latest.Store(res)
	applog.Debugf("Render: Committed pass %d (%d samples in %s)", gen, len(samples), res.Elapsed)
	if s.OnCommit != nil {
		s.OnCommit(res)
	}
	return res, nil
}
