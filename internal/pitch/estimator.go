// SPDX-License-Identifier: MIT
//
// Package pitch classifies a magnitude spectrum as the single most pronounced
// note of a note table. It is a coarse per-window classifier: each note is
// looked up at its nearest bin, with no interpolation or harmonic weighting,
// so its accuracy is bounded by the bin width (sampleRate / fftSize).
package pitch

import (
	"fmt"
	"math"

	"tuner/internal/fft"
	"tuner/internal/notes"
)

// Result is the outcome of one analysis cycle.
type Result struct {
	Note      notes.Note // Best match, zero when Matched is false.
	Matched   bool       // False when no note's bin rose above the zero floor.
	Magnitude float32    // Magnitude of the matched bin, 0 when unmatched.
	Bin       int        // Spectrum index of the matched bin, -1 when unmatched.
}

// NoMatch is the Result for a spectrum with no energy at any note's bin.
var NoMatch = Result{Bin: -1}

// String renders the console form of a detection.
func (r Result) String() string {
	if !r.Matched {
		return "No pronounced note"
	}
	return fmt.Sprintf("Most pronounced note: %s with magnitude: %v", r.Note.Name(), r.Magnitude)
}

// TargetBin returns the spectrum index nearest to note for the given bin width.
func TargetBin(note notes.Note, resolution float32) int {
	return int(math.Round(float64(note.Frequency() / resolution)))
}

// Estimate returns the note of table whose nearest bin holds the largest
// magnitude in spectrum.
//
// Notes are visited in table order and a note replaces the current best only
// when its magnitude is strictly greater, so of two different bins with equal
// magnitude the earlier note wins. Notes whose bin falls outside the spectrum
// are skipped. When several notes share one bin, the note closest to that
// bin's centre frequency claims it. With nothing above 0 the result is NoMatch.
func Estimate(spectrum fft.Spectrum, resolution float32, table []notes.Note) Result {
	best := NoMatch
	var bestDistance float32

	for _, note := range table {
		bin := TargetBin(note, resolution)
		if bin < 0 || bin >= len(spectrum) {
			continue
		}
		magnitude := spectrum[bin]
		distance := centreDistance(note, bin, resolution)

		better := magnitude > best.Magnitude ||
			(best.Matched && bin == best.Bin && distance < bestDistance)
		if !better {
			continue
		}
		best = Result{Note: note, Matched: true, Magnitude: magnitude, Bin: bin}
		bestDistance = distance
	}
	return best
}

func centreDistance(note notes.Note, bin int, resolution float32) float32 {
	d := note.Frequency() - float32(bin)*resolution
	if d < 0 {
		return -d
	}
	return d
}

// Estimator binds the bin width and note table of one capture session.
type Estimator struct {
	resolution float32
	table      []notes.Note
}

// NewEstimator derives the bin width once from sampleRate and fftSize.
func NewEstimator(sampleRate float64, fftSize int, table []notes.Note) (*Estimator, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}
	if fftSize <= 0 {
		return nil, fmt.Errorf("fft size must be positive, got %d", fftSize)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("note table is empty")
	}
	return &Estimator{
		resolution: float32(sampleRate / float64(fftSize)),
		table:      table,
	}, nil
}

// Resolution returns the bin width in Hz.
func (e *Estimator) Resolution() float32 { return e.resolution }

// Notes returns the note table the estimator matches against.
func (e *Estimator) Notes() []notes.Note { return e.table }

// Estimate classifies spectrum against the bound table.
func (e *Estimator) Estimate(spectrum fft.Spectrum) Result {
	return Estimate(spectrum, e.resolution, e.table)
}
