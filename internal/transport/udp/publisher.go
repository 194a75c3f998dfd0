// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"sampler/internal/analysis"
	applog "sampler/internal/log"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 33 * time.Millisecond

// Status is the session state carried in every packet header.
type Status struct {
	Generation     uint64 // Generation of the Processed Buffer being played.
	SelectionStart uint32
	SelectionEnd   uint32
	Length         uint32 // Waveform length in samples.
	Position       uint32 // Sample offset of the playback position.
	QueuedFrames   uint16
	Underruns      uint64
}

// StatusSource supplies the packet header on every tick.
type StatusSource interface {
	Status() Status
}

// Packet is a decoded status packet.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	Status     Status
	Magnitudes []float32
}

/*
UDP Packet Structure (BigEndian)

+-------------------+-----------+------+-----------------------------------+
| Field             | Type      | Size | Description                       |
|-------------------|-----------|------|-----------------------------------|
| Sequence Number   | uint32    | 4    | Monotonically increasing          |
| Timestamp         | int64     | 8    | Nanoseconds since epoch           |
| Generation        | uint64    | 8    | Processed Buffer generation       |
| Selection Start   | uint32    | 4    | Sample index                      |
| Selection End     | uint32    | 4    | Sample index, exclusive           |
| Length            | uint32    | 4    | Waveform length                   |
| Position          | uint32    | 4    | Playback position                 |
| Queued Frames     | uint16    | 2    | Frames waiting for the callback   |
| Underruns         | uint64    | 8    | Callback underruns so far         |
| Magnitude Count   | uint16    | 2    | Number of floats (N)              |
| Magnitudes        | []float32 | N*4  | Spectrum at the playback position |
+-------------------+-----------+------+-----------------------------------+
*/

// HeaderSize is the packet size without magnitudes.
const HeaderSize = 4 + 8 + 8 + 4*4 + 2 + 8 + 2

// ErrShortPacket is returned by Decode for truncated packets.
var ErrShortPacket = errors.New("short status packet")

// Sender is the datagram sink of a publisher. UDPSender satisfies it.
type Sender interface {
	Send(data []byte) error
}

// UDPPublisher periodically packs session status and the latest spectrum
// into a packet and sends it. It runs in a goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   Sender
	source   StatusSource
	fftProc  analysis.FFTResultProvider // Optional; nil sends no magnitudes.
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	// Reused on every tick.
	udpMagBuffer []float64
	udpF32Buffer []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher. fftProc may be nil.
func NewUDPPublisher(interval time.Duration, sender Sender, source StatusSource, fftProc analysis.FFTResultProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: status source cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultInterval
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	bins := 0
	if fftProc != nil {
		bins = fftProc.GetFFTSize()/2 + 1
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s, FFT Bins: %d)", interval, bins)

	return &UDPPublisher{
		sender:       sender,
		source:       source,
		fftProc:      fftProc,
		interval:     interval,
		udpMagBuffer: make([]float64, bins),
		udpF32Buffer: make([]float32, bins),
		packetBuffer: bytes.NewBuffer(make([]byte, 0, HeaderSize+4*bins)),
	}, nil
}

// Start launches the publishing goroutine. Calling Start while running is a
// no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Debugf("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the goroutine to exit and waits for it. It is safe to call
// more than once.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Debugf("UDPPublisher: Publisher goroutine finished.")
	return nil
}

// buildAndSendPacket runs on every tick.
func (p *UDPPublisher) buildAndSendPacket() {
	// --- 1. Fetch Data ---
	st := p.source.Status()
	if p.fftProc != nil {
		if err := p.fftProc.GetMagnitudesInto(p.udpMagBuffer); err != nil {
			applog.Errorf("UDPPublisher: Error getting magnitudes: %v", err)
			return
		}
		for i, v := range p.udpMagBuffer {
			p.udpF32Buffer[i] = float32(v)
		}
	}

	// --- 2. Pack Data ---
	p.sequenceNum++
	p.packetBuffer.Reset()
	if err := Encode(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), st, p.udpF32Buffer); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	// --- 3. Send Data ---
	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Encode writes one packet to buf.
func Encode(buf *bytes.Buffer, seq uint32, timestamp int64, st Status, mags []float32) error {
	if len(mags) > 0xffff {
		return fmt.Errorf("too many magnitudes: %d", len(mags))
	}
	fields := []any{
		seq, timestamp,
		st.Generation, st.SelectionStart, st.SelectionEnd, st.Length, st.Position,
		st.QueuedFrames, st.Underruns,
		uint16(len(mags)), mags,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.BigEndian, f); err != nil {
			return err
		}
	}
	return nil
}

// Decode parses a packet produced by Encode.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	be := binary.BigEndian
	var pk Packet
	pk.Sequence = be.Uint32(data[0:])
	pk.Timestamp = int64(be.Uint64(data[4:]))
	pk.Status = Status{
		Generation:     be.Uint64(data[12:]),
		SelectionStart: be.Uint32(data[20:]),
		SelectionEnd:   be.Uint32(data[24:]),
		Length:         be.Uint32(data[28:]),
		Position:       be.Uint32(data[32:]),
		QueuedFrames:   be.Uint16(data[36:]),
		Underruns:      be.Uint64(data[38:]),
	}
	n := int(be.Uint16(data[46:]))
	if len(data) < HeaderSize+4*n {
		return Packet{}, fmt.Errorf("%w: %d magnitudes in %d bytes", ErrShortPacket, n, len(data))
	}
	pk.Magnitudes = make([]float32, n)
	if err := binary.Read(bytes.NewReader(data[HeaderSize:HeaderSize+4*n]), be, pk.Magnitudes); err != nil {
		return Packet{}, err
	}
	return pk, nil
}

// Close stops the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
