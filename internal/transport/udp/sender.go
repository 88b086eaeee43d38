package udp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	applog "tuner/internal/log"
)

// ErrSenderClosed is returned by Send after Close.
var ErrSenderClosed = errors.New("udp sender closed")

// UDPSender writes detection packets to a single connected peer.
type UDPSender struct {
	target *net.UDPAddr

	mu   sync.Mutex // guards conn
	conn *net.UDPConn

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewUDPSender dials targetAddress ("host:port"). No local port is bound.
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	addr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve udp target %q: %w", targetAddress, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp target %q: %w", targetAddress, err)
	}
	applog.Infof("UDPSender: Sending detections to %s", conn.RemoteAddr())
	return &UDPSender{target: addr, conn: conn}, nil
}

// Target returns the resolved destination address.
func (s *UDPSender) Target() *net.UDPAddr { return s.target }

// Send writes one datagram. A refused datagram (no listener yet) is counted
// and returned but the sender stays usable.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ErrSenderClosed
	}
	if _, err := s.conn.Write(data); err != nil {
		if s.failed.Add(1) == 1 {
			applog.Debugf("UDPSender: Write to %s failed: %v", s.target, err)
		}
		return fmt.Errorf("send udp packet: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// Sent returns the number of datagrams written successfully.
func (s *UDPSender) Sent() uint64 { return s.sent.Load() }

// Failed returns the number of datagrams the kernel refused.
func (s *UDPSender) Failed() uint64 { return s.failed.Load() }

// Close releases the socket. It is idempotent.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	conn := s.conn
	s.conn = nil
	applog.Debugf("UDPSender: Closing %s (%d sent, %d failed)", s.target, s.sent.Load(), s.failed.Load())
	if err := conn.Close(); err != nil {
		return fmt.Errorf("close udp connection: %w", err)
	}
	return nil
}
