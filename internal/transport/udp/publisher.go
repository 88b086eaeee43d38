// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"tuner/internal/analysis"
	applog "tuner/internal/log"
	"tuner/internal/notes"
)

// PacketSender transmits one datagram.
type PacketSender interface {
	Send(data []byte) error
}

// Publisher periodically reads the latest detection, packs it into a fixed
// binary packet and sends it over UDP. Windows without a note are sent with
// note index -1 so receivers can tell silence from packet loss.
type Publisher struct {
	sender   PacketSender            // The underlying UDP sender instance.
	provider analysis.ResultProvider // Source of the latest detection.
	interval time.Duration           // The interval at which packets are sent.
	now      func() time.Time

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects access to ticker and doneChan during Start/Stop.

	sequenceNum  uint32        // Monotonically increasing sequence number for packets.
	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
}

// NewPublisher creates and initializes a new Publisher.
// If the provided interval is invalid (<= 0), it defaults to 33ms (~30Hz).
func NewPublisher(interval time.Duration, sender PacketSender, provider analysis.ResultProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if provider == nil {
		return nil, fmt.Errorf("UDPPublisher: result provider cannot be nil")
	}

	if interval <= 0 {
		interval = 33 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Packet: %d bytes)", interval, PacketSize)

	return &Publisher{
		sender:       sender,
		provider:     provider,
		interval:     interval,
		now:          time.Now,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
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
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *Publisher) Stop() error {
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
	applog.Debugf("UDPPublisher: Stopped after %d packets", p.sequenceNum)
	return nil
}

// Run publishes until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	p.Start()
	<-ctx.Done()
	return p.Stop()
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Note Index        | int16          | 2            | Table index, -1 if none |
| Frequency         | float32        | 4            | Note fundamental in Hz  |
| Magnitude         | float32        | 4            | Spectral magnitude      |
+-----------------------------------------------------------------------------+
*/

// Packet is the wire form of one detection.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	NoteIndex int16
	Frequency float32
	Magnitude float32
}

// PacketSize is the encoded length of a Packet.
const PacketSize = 4 + 8 + 2 + 4 + 4

// Note returns the table entry the packet refers to.
func (pk Packet) Note() (notes.Note, bool) {
	all := notes.All()
	if pk.NoteIndex < 0 || int(pk.NoteIndex) >= len(all) {
		return notes.Note{}, false
	}
	return all[pk.NoteIndex], true
}

// MarshalBinary encodes the packet in network byte order.
func (pk Packet) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(PacketSize)
	if err := binary.Write(&buf, binary.BigEndian, pk); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a packet produced by MarshalBinary.
func (pk *Packet) UnmarshalBinary(data []byte) error {
	if len(data) != PacketSize {
		return fmt.Errorf("invalid packet length %d, want %d", len(data), PacketSize)
	}
	return binary.Read(bytes.NewReader(data), binary.BigEndian, pk)
}

// buildAndSendPacket is executed on each ticker interval. Nothing is sent
// before the first window has been analysed.
func (p *Publisher) buildAndSendPacket() {
	result, ok := p.provider.Latest()
	if !ok {
		return
	}

	p.sequenceNum++
	packet := Packet{
		Sequence:  p.sequenceNum,
		Timestamp: p.now().UnixNano(),
		NoteIndex: -1,
	}
	if result.Matched {
		packet.NoteIndex = int16(notes.Index(result.Note.Name()))
		packet.Frequency = result.Note.Frequency()
		packet.Magnitude = result.Magnitude
	}

	p.packetBuffer.Reset()
	if err := binary.Write(p.packetBuffer, binary.BigEndian, packet); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

// Close implements the io.Closer interface. It gracefully stops the publisher goroutine.
func (p *Publisher) Close() error {
	return p.Stop()
}

// Ensure Publisher satisfies the io.Closer interface at compile time.
var _ interface{ Close() error } = (*Publisher)(nil)
