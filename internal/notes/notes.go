// SPDX-License-Identifier: MIT
//
// Package notes holds the fixed chromatic note table used for pitch
// classification. Frequencies are equal-tempered (A4 = 440 Hz) rounded to
// two decimals, from G3 up to E7 in semitone steps.
package notes

import "strings"

// Note is an immutable musical pitch with a fixed fundamental frequency.
type Note struct {
	name string
	hz   float32
}

// New returns a Note outside the built-in table. It is meant for custom
// tables such as test fixtures.
func New(name string, hz float32) Note {
	return Note{name: name, hz: hz}
}

// Name returns the display label, e.g. "A4" or "C#5".
func (n Note) Name() string { return n.name }

// Frequency returns the note's fundamental in Hz.
func (n Note) Frequency() float32 { return n.hz }

// String implements fmt.Stringer.
func (n Note) String() string { return n.name }

// IsZero reports whether n is the zero Note, which is not part of the table.
func (n Note) IsZero() bool { return n.name == "" && n.hz == 0 }

// table is ordered by strictly increasing frequency.
var table = [...]Note{
	{"G3", 196.00},
	{"G#3", 207.65},
	{"A3", 220.00},
	{"A#3", 233.08},
	{"B3", 246.94},
	{"C4", 261.63},
	{"C#4", 277.18},
	{"D4", 293.66},
	{"D#4", 311.13},
	{"E4", 329.63},
	{"F4", 349.23},
	{"F#4", 369.99},
	{"G4", 392.00},
	{"G#4", 415.30},
	{"A4", 440.00},
	{"A#4", 466.16},
	{"B4", 493.88},
	{"C5", 523.25},
	{"C#5", 554.37},
	{"D5", 587.33},
	{"D#5", 622.25},
	{"E5", 659.26},
	{"F5", 698.46},
	{"F#5", 739.99},
	{"G5", 783.99},
	{"G#5", 830.61},
	{"A5", 880.00},
	{"A#5", 932.33},
	{"B5", 987.77},
	{"C6", 1046.50},
	{"C#6", 1108.73},
	{"D6", 1174.66},
	{"D#6", 1244.51},
	{"E6", 1318.51},
	{"F6", 1396.91},
	{"F#6", 1479.98},
	{"G6", 1567.98},
	{"G#6", 1661.22},
	{"A6", 1760.00},
	{"A#6", 1864.66},
	{"B6", 1975.53},
	{"C7", 2093.00},
	{"C#7", 2217.46},
	{"D7", 2349.32},
	{"D#7", 2489.02},
	{"E7", 2637.02},
}

// All returns the full ordered note table. Each call returns a fresh copy so
// callers may iterate or modify it without affecting the table.
func All() []Note {
	out := make([]Note, len(table))
	copy(out, table[:])
	return out
}

// Len returns the number of notes in the table.
func Len() int { return len(table) }

// Index returns the table position of the note with the given name, or -1.
func Index(name string) int {
	for i, n := range table {
		if strings.EqualFold(n.name, name) {
			return i
		}
	}
	return -1
}

// Lookup finds a note by name, case-insensitively.
func Lookup(name string) (Note, bool) {
	i := Index(name)
	if i < 0 {
		return Note{}, false
	}
	return table[i], true
}
