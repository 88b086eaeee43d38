package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tuner/internal/analysis"
	"tuner/internal/pitch"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	refreshInterval = 50 * time.Millisecond
	historyLen      = 16
	barWidth        = 40
)

var (
	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#25A065")).
			Padding(1, 4).
			Bold(true)

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065"))
)

// Source is what the live view polls: the latest detection and the counters.
type Source interface {
	analysis.ResultProvider
	Stats() analysis.Stats
}

// SessionInfo describes the running session in the header.
type SessionInfo struct {
	ID         string
	Input      string
	SampleRate float64
	FFTSize    int
}

type tickMsg time.Time

type noteKeyMap struct {
	Quit  key.Binding
	Reset key.Binding
}

func (k noteKeyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Reset, k.Quit} }
func (k noteKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// NoteModel is the live view of the detected note.
type NoteModel struct {
	source Source
	info   SessionInfo
	keys   noteKeyMap
	help   help.Model

	current pitch.Result
	matched bool
	peak    float32
	history []string
	stats   analysis.Stats
	width   int
}

// NewNoteModel builds a live view polling source.
func NewNoteModel(source Source, info SessionInfo) NoteModel {
	return NoteModel{
		source: source,
		info:   info,
		keys: noteKeyMap{
			Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
			Reset: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset history")),
		},
		help:    help.New(),
		current: pitch.NoMatch,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m NoteModel) Init() tea.Cmd {
	return tick()
}

func (m NoteModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reset):
			m.history = nil
			m.peak = 0
		}

	case tickMsg:
		m = m.observe()
		return m, tick()
	}
	return m, nil
}

// observe pulls the latest result. History records note changes only.
func (m NoteModel) observe() NoteModel {
	m.stats = m.source.Stats()
	result, ok := m.source.Latest()
	if !ok {
		return m
	}
	m.current = result
	m.matched = result.Matched
	if !result.Matched {
		return m
	}

	m.peak = max(m.peak, result.Magnitude)
	name := result.Note.Name()
	if n := len(m.history); n == 0 || m.history[n-1] != name {
		m.history = append(m.history, name)
		if len(m.history) > historyLen {
			m.history = m.history[len(m.history)-historyLen:]
		}
	}
	return m
}

func (m NoteModel) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Note Detector"))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "%s\n", infoStyle.Render(fmt.Sprintf("Input: %s • %.0f Hz • FFT %d (%.2f Hz/bin)",
		m.info.Input, m.info.SampleRate, m.info.FFTSize, m.source.Resolution())))
	fmt.Fprintf(&sb, "%s\n\n", dimStyle.Render("Session "+m.info.ID))

	if m.matched {
		sb.WriteString(noteStyle.Render(m.current.Note.Name()))
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, "%.2f Hz  (bin %d)\n", m.current.Note.Frequency(), m.current.Bin)
		fmt.Fprintf(&sb, "%s %.1f\n", barStyle.Render(magnitudeBar(m.current.Magnitude, m.peak, barWidth)), m.current.Magnitude)
	} else {
		sb.WriteString(noteStyle.Render("--"))
		sb.WriteString("\n\n")
		sb.WriteString(dimStyle.Render("No pronounced note"))
		sb.WriteString("\n\n")
	}

	sb.WriteString("\n")
	sb.WriteString(highlightStyle.Render("History: "))
	sb.WriteString(strings.Join(m.history, " "))
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("windows %d • matched %d • samples %d",
		m.stats.Windows, m.stats.Matched, m.stats.Samples)))
	sb.WriteString("\n\n")
	sb.WriteString(m.help.View(m.keys))
	return sb.String()
}

// magnitudeBar draws value relative to peak using width cells.
func magnitudeBar(value, peak float32, width int) string {
	if peak <= 0 || value <= 0 {
		return strings.Repeat("░", width)
	}
	filled := min(int(value/peak*float32(width)+0.5), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// RunNoteView runs the live view until the user quits or ctx is cancelled.
func RunNoteView(ctx context.Context, source Source, info SessionInfo) error {
	p := tea.NewProgram(
		NewNoteModel(source, info),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
