// SPDX-License-Identifier: MIT
package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"sampler/internal/engine"
	applog "sampler/internal/log"
	"sampler/internal/render"
)

// ResultSource yields the most recently committed Processed Buffer.
// render.Scheduler satisfies it.
type ResultSource interface {
	Latest() *render.Result
}

// Feeder streams the latest Processed Buffer into a FrameQueue, one frame at
// a time, from the control domain.
//
// When a newer buffer commits, frames still queued from the old one are
// dropped and streaming restarts at frame 0 of the new buffer. When Loop is
// set, the buffer repeats; otherwise the feeder idles at the end.
//
// The feeder keeps at most half the queue occupied. The other half stays free
// so the first frames of a new buffer are queued in the same Fill that drops
// the old ones, and the consumer never sees a gap between passes.
type Feeder struct {
	queue     *FrameQueue
	source    ResultSource
	interval  time.Duration
	highWater int
	loop      atomic.Bool

	// Producer state, owned by the feeding goroutine (or the caller of Fill).
	generation uint64
	pos        int
	frame      engine.Frame
	position   atomic.Int64 // Sample offset of the next frame to queue.

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.
}

// NewFeeder creates a feeder. A non-positive interval defaults to a quarter of
// the queue's duration at sampleRate.
func NewFeeder(queue *FrameQueue, source ResultSource, sampleRate float64, interval time.Duration) *Feeder {
	if interval <= 0 {
		period := time.Duration(float64(engine.FrameSize) / sampleRate * float64(time.Second))
		interval = max(time.Millisecond, period*time.Duration(queue.Cap())/4)
	}
	f := &Feeder{
		queue:     queue,
		source:    source,
		interval:  interval,
		highWater: max(1, queue.Cap()/2),
	}
	f.loop.Store(true)
	return f
}

// SetLoop controls whether playback repeats at the end of the buffer.
func (f *Feeder) SetLoop(loop bool) {
	f.loop.Store(loop)
}

// Position returns the sample offset of the next frame to be queued.
func (f *Feeder) Position() int {
	return int(f.position.Load())
}

// Start launches the feeding goroutine. Subsequent calls are no-ops while running.
func (f *Feeder) Start() {
	f.mu.Lock()
	if f.ticker != nil {
		f.mu.Unlock()
		applog.Warnf("Feeder: Start called but already running.")
		return
	}
	f.ticker = time.NewTicker(f.interval)
	f.doneChan = make(chan struct{})
	f.stopOnce = sync.Once{}
	ticker := f.ticker
	doneChan := f.doneChan
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		applog.Debugf("Feeder: Goroutine started (Interval: %s, Queue: %d frames)", f.interval, f.queue.Cap())
		f.Fill()
		for {
			select {
			case <-ticker.C:
				f.Fill()
			case <-doneChan:
				applog.Debugf("Feeder: Goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the feeding goroutine to exit and waits for it.
func (f *Feeder) Stop() error {
	f.mu.Lock()
	if f.ticker == nil {
		f.mu.Unlock()
		return nil
	}
	f.stopOnce.Do(func() {
		close(f.doneChan)
		f.ticker.Stop()
		f.ticker = nil
	})
	f.mu.Unlock()

	f.wg.Wait()
	return nil
}

// Fill pushes frames until the queue holds HighWater frames or the buffer is
// exhausted and returns the number of frames pushed. It must not run concurrently with
// itself; Start calls it from the feeding goroutine.
func (f *Feeder) Fill() int {
	res := f.source.Latest()
	if res == nil || len(res.Samples) == 0 {
		return 0
	}

	if res.Generation != f.generation {
		f.generation = res.Generation
		f.pos = 0
		f.queue.DropQueued()
		applog.Debugf("Feeder: Switching to pass %d (%d samples)", res.Generation, len(res.Samples))
	}

	pushed := 0
	for f.queue.Len() < f.highWater {
		if f.pos >= len(res.Samples) {
			if !f.loop.Load() {
				break
			}
			f.pos = 0
		}

		n := copy(f.frame[:], res.Samples[f.pos:])
		clear(f.frame[n:])
		if !f.queue.Push(&f.frame) {
			break
		}
		f.pos += engine.FrameSize
		pushed++
	}
	f.position.Store(int64(f.pos))
	return pushed
}

// HighWater returns the queue level Fill tops up to.
func (f *Feeder) HighWater() int {
	return f.highWater
}

// Close stops the feeder.
func (f *Feeder) Close() error {
	return f.Stop()
}

var _ interface{ Close() error } = (*Feeder)(nil)
