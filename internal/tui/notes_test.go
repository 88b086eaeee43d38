package tui

import (
	"strings"
	"testing"
	"time"

	"tuner/internal/analysis"
	"tuner/internal/notes"
	"tuner/internal/pitch"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeSource struct {
	result pitch.Result
	ok     bool
	stats  analysis.Stats
}

func (f *fakeSource) Latest() (pitch.Result, bool) { return f.result, f.ok }
func (f *fakeSource) Resolution() float32          { return 44100.0 / 1024 }
func (f *fakeSource) Stats() analysis.Stats        { return f.stats }

func (f *fakeSource) set(name string, magnitude float32) {
	n, _ := notes.Lookup(name)
	f.result = pitch.Result{Note: n, Matched: true, Magnitude: magnitude, Bin: 10}
	f.ok = true
}

func tickNote(m NoteModel) NoteModel {
	next, _ := m.Update(tickMsg(time.Now()))
	return next.(NoteModel)
}

func TestNoteModelHistory(t *testing.T) {
	src := &fakeSource{}
	m := NewNoteModel(src, SessionInfo{ID: "abc", Input: "Mic", SampleRate: 44100, FFTSize: 1024})

	m = tickNote(m)
	if m.matched || len(m.history) != 0 {
		t.Fatal("nothing should be recorded before the first window")
	}

	for _, name := range []string{"A4", "A4", "E5", "A4"} {
		src.set(name, 100)
		m = tickNote(m)
	}
	if got := strings.Join(m.history, " "); got != "A4 E5 A4" {
		t.Errorf("history = %q, want %q", got, "A4 E5 A4")
	}

	src.result, src.ok = pitch.NoMatch, true
	m = tickNote(m)
	if m.matched {
		t.Error("no-match window should clear the current note")
	}
	if len(m.history) != 3 {
		t.Error("no-match window must not change history")
	}

	next, _ := m.Update(keyMsg("r"))
	if m = next.(NoteModel); len(m.history) != 0 {
		t.Error("r should reset history")
	}
}

func TestNoteModelHistoryIsBounded(t *testing.T) {
	src := &fakeSource{}
	m := NewNoteModel(src, SessionInfo{})
	all := notes.All()
	for i := range historyLen + 5 {
		src.set(all[i].Name(), 1)
		m = tickNote(m)
	}
	if len(m.history) != historyLen {
		t.Fatalf("len(history) = %d, want %d", len(m.history), historyLen)
	}
	if m.history[historyLen-1] != all[historyLen+4].Name() {
		t.Errorf("last entry = %s", m.history[historyLen-1])
	}
}

func TestNoteModelView(t *testing.T) {
	src := &fakeSource{stats: analysis.Stats{Windows: 12, Matched: 7, Samples: 12288}}
	src.set("A4", 250)
	m := tickNote(NewNoteModel(src, SessionInfo{ID: "session-42", Input: "Mic", SampleRate: 44100, FFTSize: 1024}))

	view := m.View()
	for _, want := range []string{"A4", "440.00 Hz", "session-42", "FFT 1024", "windows 12", "matched 7"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestNoteModelQuit(t *testing.T) {
	m := NewNoteModel(&fakeSource{}, SessionInfo{})
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestMagnitudeBar(t *testing.T) {
	tests := []struct {
		value, peak float32
		filled      int
	}{
		{0, 10, 0},
		{5, 0, 0},
		{5, 10, 5},
		{10, 10, 10},
		{20, 10, 10},
	}
	for _, tt := range tests {
		bar := magnitudeBar(tt.value, tt.peak, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("magnitudeBar(%v, %v) filled %d, want %d", tt.value, tt.peak, got, tt.filled)
		}
		if n := len([]rune(bar)); n != 10 {
			t.Errorf("bar width = %d, want 10", n)
		}
	}
}
