package transport

import (
	"time"

	"tuner/internal/analysis"
	"tuner/internal/pitch"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Detection is the event published for every matched window.
type Detection struct {
	Session   string    `json:"session"`
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Note      string    `json:"note"`
	Frequency float32   `json:"frequency"`
	Magnitude float32   `json:"magnitude"`
	Bin       int       `json:"bin"`
}

// NewDetection describes result as an event.
func NewDetection(session string, seq uint64, ts time.Time, result pitch.Result) Detection {
	return Detection{
		Session:   session,
		Sequence:  seq,
		Timestamp: ts,
		Note:      result.Note.Name(),
		Frequency: result.Note.Frequency(),
		Magnitude: result.Magnitude,
		Bin:       result.Bin,
	}
}

// Sink forwards matched results to a set of transports as Detection events.
// Windows without a note are not forwarded.
type Sink struct {
	session    string
	transports []Transport
	seq        uint64
	now        func() time.Time
}

// NewSink returns a sink that tags every event with session.
func NewSink(session string, transports ...Transport) *Sink {
	return &Sink{session: session, transports: transports, now: time.Now}
}

// Publish implements analysis.Sink. It is called from the audio callback only,
// so the sequence counter needs no lock.
func (s *Sink) Publish(result pitch.Result) error {
	if !result.Matched {
		return nil
	}
	s.seq++
	event := NewDetection(s.session, s.seq, s.now(), result)

	var firstErr error
	for _, t := range s.transports {
		if err := t.Send(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every transport.
func (s *Sink) Close() error {
	var firstErr error
	for _, t := range s.transports {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ analysis.Sink = (*Sink)(nil)
