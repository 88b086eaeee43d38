// SPDX-License-Identifier: MIT
package analysis

import "tuner/internal/pitch"

// Sink is a consumer of detections. Publish is called from the audio callback
// once per analysed window, in window order, so implementations must return
// quickly and hand slow work to another goroutine.
type Sink interface {
	Publish(result pitch.Result) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(result pitch.Result) error

// Publish calls f(result).
func (f SinkFunc) Publish(result pitch.Result) error { return f(result) }

// ResultProvider exposes the most recent detection to goroutines other than
// the audio callback, such as display refreshers and network publishers.
type ResultProvider interface {
	// Latest returns a copy of the most recent result and false when no window
	// has been analysed yet.
	Latest() (pitch.Result, bool)
	// Resolution returns the bin width in Hz.
	Resolution() float32
}

// ChunkProcessor is the entry point invoked once per incoming audio chunk.
type ChunkProcessor interface {
	OnChunk(chunk []float32) ([]pitch.Result, error)
}
