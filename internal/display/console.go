// Package display renders detections for the operator.
package display

import (
	"fmt"
	"io"

	"tuner/internal/analysis"
	"tuner/internal/pitch"
)

// ClearScreen moves the cursor home after erasing the terminal.
const ClearScreen = "\x1b[2J\x1b[H"

// Console prints one line per matched window. Windows without a note print
// nothing.
type Console struct {
	w     io.Writer
	clear bool
	lines uint64
}

// NewConsole writes to w, clearing the terminal before every line when clear
// is set.
func NewConsole(w io.Writer, clear bool) *Console {
	return &Console{w: w, clear: clear}
}

// Publish implements analysis.Sink.
func (c *Console) Publish(result pitch.Result) error {
	if !result.Matched {
		return nil
	}
	if c.clear {
		if _, err := io.WriteString(c.w, ClearScreen); err != nil {
			return err
		}
	}
	c.lines++
	_, err := fmt.Fprintln(c.w, result.String())
	return err
}

// Lines returns the number of detections printed.
func (c *Console) Lines() uint64 { return c.lines }

var _ analysis.Sink = (*Console)(nil)
