// SPDX-License-Identifier: MIT
package session

import (
	"sync"
	"time"

	applog "sampler/internal/log"
	"sampler/internal/transport"
	"sampler/internal/transport/udp"
)

// monitor runs in the control domain on a ticker. It reports callback
// underruns, which the callback itself only counts, and publishes the
// spectrum at the playback position.
type monitor struct {
	session  *Session
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex

	mags []float64
}

func newMonitor(s *Session, interval time.Duration) *monitor {
	if interval <= 0 {
		interval = udp.DefaultInterval
	}
	return &monitor{
		session:  s,
		interval: interval,
		mags:     make([]float64, s.fft.Bins()),
	}
}

func (m *monitor) Start() {
	m.mu.Lock()
	if m.ticker != nil {
		m.mu.Unlock()
		return
	}
	m.ticker = time.NewTicker(m.interval)
	m.doneChan = make(chan struct{})
	m.stopOnce = sync.Once{}
	ticker := m.ticker
	doneChan := m.doneChan
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ticker.C:
				m.tick()
			case <-doneChan:
				return
			}
		}
	}()
}

func (m *monitor) Stop() error {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return nil
	}
	m.stopOnce.Do(func() {
		close(m.doneChan)
		m.ticker.Stop()
		m.ticker = nil
	})
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *monitor) tick() {
	s := m.session

	// --- 1. Underruns ---
	if err := s.source.Underruns(); err != nil {
		applog.Warnf("Session: %v", err)
	}

	// --- 2. Spectrum ---
	msg, ok := m.spectrum()
	if ok {
		s.publish(msg)
	}
}

// spectrum analyzes the Processed Buffer at the playback position.
func (m *monitor) spectrum() (transport.SpectrumMessage, bool) {
	s := m.session
	res := s.Processed()
	if res == nil || len(res.Samples) == 0 {
		return transport.SpectrumMessage{}, false
	}

	pos := s.playbackPosition()
	s.fft.Process(res.Samples[pos:min(pos+s.fft.GetFFTSize(), len(res.Samples))])

	if err := s.fft.GetMagnitudesInto(m.mags); err != nil {
		applog.Errorf("Session: %v", err)
		return transport.SpectrumMessage{}, false
	}
	mags := make([]float32, len(m.mags))
	for i, v := range m.mags {
		mags[i] = float32(v)
	}
	if err := s.bands.Levels(s.levels); err != nil {
		applog.Errorf("Session: %v", err)
		return transport.SpectrumMessage{}, false
	}
	bands := append([]float64(nil), s.levels...)

	return transport.SpectrumMessage{
		Type:       transport.TypeSpectrum,
		Position:   pos,
		Magnitudes: mags,
		Bands:      bands,
	}, true
}
