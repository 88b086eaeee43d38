// SPDX-License-Identifier: MIT
/*
Package analysis implements the streaming note detection pipeline:

	chunk -> frame.Accumulator -> fft.Processor -> pitch.Estimator -> Sinks

Thread Safety:
  - OnChunk is driven by the serialized audio callback and owns the
    accumulator, transform workspace and estimator without locking.
  - The latest result is shared outward under a mutex held only long enough
    to copy a value.
  - Counters are atomic so they can be read while a session is running.
*/
package analysis

import (
	"fmt"
	"sync"
	"sync/atomic"

	"tuner/internal/fft"
	"tuner/internal/frame"
	applog "tuner/internal/log"
	"tuner/internal/notes"
	"tuner/internal/pitch"
)

// Options configures a Controller.
type Options struct {
	SampleRate float64        // Sample rate of incoming chunks in Hz.
	FFTSize    int            // Window length in samples, a power of two.
	Backend    fft.Backend    // FFT implementation.
	Window     fft.WindowFunc // Taper applied before the transform.
	Notes      []notes.Note   // Note table, notes.All() when nil.
}

// Stats summarises the work done by a Controller.
type Stats struct {
	Chunks  uint64 // Chunks received.
	Samples uint64 // Samples received.
	Windows uint64 // Windows analysed.
	Matched uint64 // Windows that produced a note.
}

// Controller runs the per-chunk analysis and publishes every result.
type Controller struct {
	accumulator *frame.Accumulator
	processor   *fft.Processor
	estimator   *pitch.Estimator
	sinks       []Sink

	mu        sync.Mutex
	latest    pitch.Result
	hasLatest bool

	chunks  atomic.Uint64
	samples atomic.Uint64
	windows atomic.Uint64
	matched atomic.Uint64
}

// Compile-time checks for interface implementations.
var _ ChunkProcessor = (*Controller)(nil)
var _ ResultProvider = (*Controller)(nil)

// NewController builds the pipeline for one capture session. The transform
// plan and the bin width are derived here, once.
func NewController(opts Options, sinks ...Sink) (*Controller, error) {
	table := opts.Notes
	if table == nil {
		table = notes.All()
	}

	processor, err := fft.NewProcessor(opts.FFTSize, fft.WithBackend(opts.Backend), fft.WithWindow(opts.Window))
	if err != nil {
		return nil, fmt.Errorf("failed to create FFT processor: %w", err)
	}
	estimator, err := pitch.NewEstimator(opts.SampleRate, opts.FFTSize, table)
	if err != nil {
		return nil, fmt.Errorf("failed to create pitch estimator: %w", err)
	}

	applog.Infof("Analysis: Initializing controller (FFT: %d, SampleRate: %.1f Hz, Resolution: %.2f Hz, Notes: %d)",
		opts.FFTSize, opts.SampleRate, estimator.Resolution(), len(table))

	return &Controller{
		accumulator: frame.NewAccumulator(opts.FFTSize),
		processor:   processor,
		estimator:   estimator,
		sinks:       sinks,
		latest:      pitch.NoMatch,
	}, nil
}

// AddSink registers another consumer. It must be called before the first
// OnChunk.
func (c *Controller) AddSink(s Sink) {
	c.sinks = append(c.sinks, s)
}

// OnChunk feeds chunk to the accumulator and analyses every window it
// completes, in order. Each result is published to the sinks as soon as it is
// produced. A transform failure is returned immediately together with the
// results produced before it; the caller must treat it as fatal.
func (c *Controller) OnChunk(chunk []float32) ([]pitch.Result, error) {
	c.chunks.Add(1)
	c.samples.Add(uint64(len(chunk)))

	windows := c.accumulator.Push(chunk)
	if len(windows) == 0 {
		return nil, nil
	}

	results := make([]pitch.Result, 0, len(windows))
	for _, window := range windows {
		spectrum, err := c.processor.Transform(window)
		if err != nil {
			return results, fmt.Errorf("analysis: window %d: %w", c.windows.Load(), err)
		}

		result := c.estimator.Estimate(spectrum)
		c.windows.Add(1)
		if result.Matched {
			c.matched.Add(1)
		}

		c.mu.Lock()
		c.latest = result
		c.hasLatest = true
		c.mu.Unlock()

		c.publish(result)
		results = append(results, result)
	}
	return results, nil
}

// publish hands result to every sink. Sink failures are reported but never
// stop the pipeline.
func (c *Controller) publish(result pitch.Result) {
	for _, s := range c.sinks {
		if err := s.Publish(result); err != nil {
			applog.Warnf("Analysis: Sink %T failed: %v", s, err)
		}
	}
}

// Latest returns a copy of the most recent result.
func (c *Controller) Latest() (pitch.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.hasLatest
}

// Resolution returns the bin width in Hz.
func (c *Controller) Resolution() float32 { return c.estimator.Resolution() }

// FFTSize returns the analysis window length.
func (c *Controller) FFTSize() int { return c.processor.Size() }

// Pending returns the number of buffered samples waiting for a full window.
// It must only be called from the goroutine driving OnChunk.
func (c *Controller) Pending() int { return c.accumulator.Pending() }

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Chunks:  c.chunks.Load(),
		Samples: c.samples.Load(),
		Windows: c.windows.Load(),
		Matched: c.matched.Load(),
	}
}
