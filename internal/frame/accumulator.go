// SPDX-License-Identifier: MIT
//
// Package frame turns variable-sized audio callback chunks into fixed-size,
// non-overlapping analysis windows.
package frame

import "fmt"

// Accumulator buffers incoming samples and hands out complete windows. Windows
// do not overlap (hop size equals window size), so every sample belongs to
// exactly one window.
//
// An Accumulator is owned by a single writer, the audio callback, and is not
// safe for concurrent use.
type Accumulator struct {
	size    int
	pending []float32
}

// NewAccumulator returns an Accumulator producing windows of size samples.
// A non-positive size is a programming error and panics.
func NewAccumulator(size int) *Accumulator {
	if size <= 0 {
		panic(fmt.Sprintf("frame: window size must be positive, got %d", size))
	}
	return &Accumulator{
		size: size,
		// Room for a residual plus one typical callback chunk.
		pending: make([]float32, 0, 2*size),
	}
}

// Size returns the window length.
func (a *Accumulator) Size() int { return a.size }

// Pending returns the number of buffered samples not yet part of a window.
// It is always less than Size between calls to Push.
func (a *Accumulator) Pending() int { return len(a.pending) }

// Push appends chunk and returns every complete window now available, oldest
// first. Samples that do not fill a window stay buffered for the next call.
// Returned windows are freshly allocated and owned by the caller. An empty
// chunk returns no windows.
func (a *Accumulator) Push(chunk []float32) [][]float32 {
	var windows [][]float32
	a.Drain(chunk, func(w []float32) {
		windows = append(windows, append([]float32(nil), w...))
	})
	return windows
}

// Drain is the allocation-free form of Push: fn is called once per complete
// window, in order, with a slice that is only valid for the duration of the
// call.
func (a *Accumulator) Drain(chunk []float32, fn func(window []float32)) {
	a.pending = append(a.pending, chunk...)

	consumed := 0
	for len(a.pending)-consumed >= a.size {
		fn(a.pending[consumed : consumed+a.size])
		consumed += a.size
	}
	if consumed == 0 {
		return
	}

	// Shift the residual to the front so the buffer does not grow without bound.
	n := copy(a.pending, a.pending[consumed:])
	a.pending = a.pending[:n]
}

// Reset drops any buffered samples.
func (a *Accumulator) Reset() {
	a.pending = a.pending[:0]
}
