package tui

import (
	"fmt"
	"slices"
	"strings"

	"tuner/internal/audio"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// ScreenType defines which screen is currently active
type ScreenType int

const (
	ListScreen ScreenType = iota
	ConfigScreen
)

var commonSampleRates = []float64{44100, 48000, 88200, 96000}

// Selection is the device and sample rate confirmed in the browser.
type Selection struct {
	DeviceID   int
	DeviceName string
	SampleRate float64
}

// DeviceListModel represents the Bubble Tea model for browsing input devices
type DeviceListModel struct {
	fetch         func() ([]audio.Device, error)
	devices       []audio.Device
	selectedIndex int
	viewport      viewport.Model
	ready         bool
	err           error
	activeScreen  ScreenType

	// Configuration options
	availableSampleRates []float64
	sampleRateIndex      int

	selection *Selection
}

type devicesMsg struct {
	devices []audio.Device
}

type errMsg struct {
	err error
}

var (
	quitKey    = key.NewBinding(key.WithKeys("q", "ctrl+c"))
	upKey      = key.NewBinding(key.WithKeys("up", "k"))
	downKey    = key.NewBinding(key.WithKeys("down", "j"))
	enterKey   = key.NewBinding(key.WithKeys("enter"))
	backKey    = key.NewBinding(key.WithKeys("esc"))
	headerRows = 4
)

// NewDeviceListModel creates a device browser that lists devices with fetch.
func NewDeviceListModel(fetch func() ([]audio.Device, error)) DeviceListModel {
	if fetch == nil {
		fetch = audio.GetDevices
	}
	return DeviceListModel{
		fetch:        fetch,
		activeScreen: ListScreen,
	}
}

// Init initializes the Bubble Tea model
func (m DeviceListModel) Init() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		devices, err := fetch()
		if err != nil {
			return errMsg{err}
		}
		return devicesMsg{devices}
	}
}

func (m DeviceListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerRows)
			m.viewport.Style = lipgloss.NewStyle()
			m.ready = true
			m.refresh()
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerRows
		}

	case devicesMsg:
		m.devices = msg.devices
		// Start on the default input when there is one.
		if i := slices.IndexFunc(m.devices, func(d audio.Device) bool { return d.IsDefaultInput }); i >= 0 {
			m.selectedIndex = i
		}
		m.refresh()

	case errMsg:
		m.err = msg.err

	case tea.KeyMsg:
		if m.err != nil || key.Matches(msg, quitKey) {
			return m, tea.Quit
		}

		switch m.activeScreen {
		case ListScreen:
			switch {
			case key.Matches(msg, upKey):
				if m.selectedIndex > 0 {
					m.selectedIndex--
				}
			case key.Matches(msg, downKey):
				if m.selectedIndex < len(m.devices)-1 {
					m.selectedIndex++
				}
			case key.Matches(msg, enterKey):
				if len(m.devices) > 0 && m.devices[m.selectedIndex].IsInput() {
					m.openConfig()
				}
			}

		case ConfigScreen:
			switch {
			case key.Matches(msg, backKey):
				m.activeScreen = ListScreen
			case key.Matches(msg, upKey):
				if m.sampleRateIndex > 0 {
					m.sampleRateIndex--
				}
			case key.Matches(msg, downKey):
				if m.sampleRateIndex < len(m.availableSampleRates)-1 {
					m.sampleRateIndex++
				}
			case key.Matches(msg, enterKey):
				device := m.devices[m.selectedIndex]
				m.selection = &Selection{
					DeviceID:   device.ID,
					DeviceName: device.Name,
					SampleRate: m.availableSampleRates[m.sampleRateIndex],
				}
				return m, tea.Quit
			}
		}
		m.refresh()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// openConfig switches to the sample rate screen for the highlighted device.
// The device's default rate is offered even when it is not a common one.
func (m *DeviceListModel) openConfig() {
	m.activeScreen = ConfigScreen

	def := m.devices[m.selectedIndex].DefaultSampleRate
	m.availableSampleRates = slices.Clone(commonSampleRates)
	if def > 0 && !slices.Contains(m.availableSampleRates, def) {
		m.availableSampleRates = append(m.availableSampleRates, def)
		slices.Sort(m.availableSampleRates)
	}
	m.sampleRateIndex = max(slices.Index(m.availableSampleRates, def), 0)
}

func (m *DeviceListModel) refresh() {
	if !m.ready {
		return
	}
	if m.activeScreen == ConfigScreen {
		m.viewport.SetContent(m.renderDeviceConfig())
	} else {
		m.viewport.SetContent(m.renderDevices())
	}
}

// Selection returns the confirmed device, or nil when the browser was left
// without choosing one.
func (m DeviceListModel) Selection() *Selection { return m.selection }

// View renders the UI
func (m DeviceListModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress any key to exit.", m.err)
	}
	if !m.ready {
		return "Initializing..."
	}

	var title, help string
	if m.activeScreen == ListScreen {
		title = titleStyle.Render("Input Devices")
		help = infoStyle.Render("↑/↓: Navigate • Enter: Configure • q: Quit")
	} else {
		title = titleStyle.Render("Device Configuration")
		help = infoStyle.Render("↑/↓: Change Value • Enter: Start • Esc: Back • q: Quit")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, m.viewport.View(), help)
}

// renderDevices formats the device list. Output-only devices are shown dimmed
// since they cannot be selected.
func (m DeviceListModel) renderDevices() string {
	if len(m.devices) == 0 {
		return "No audio devices found."
	}

	var sb strings.Builder
	for i, device := range m.devices {
		marker := ""
		if device.IsDefaultInput {
			marker = " *"
		}
		deviceInfo := fmt.Sprintf("[%d] %s (%s)%s\n", device.ID, device.Name, device.Kind(), marker)
		deviceInfo += fmt.Sprintf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		deviceInfo += fmt.Sprintf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)

		switch {
		case i == m.selectedIndex:
			deviceInfo = highlightStyle.Render(deviceInfo)
		case !device.IsInput():
			deviceInfo = dimStyle.Render(deviceInfo)
		}

		sb.WriteString(deviceInfo)
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDeviceConfig formats the device configuration screen
func (m DeviceListModel) renderDeviceConfig() string {
	var sb strings.Builder
	device := m.devices[m.selectedIndex]

	fmt.Fprintf(&sb, "Configure Device: %s\n\n", device.Name)
	sb.WriteString("Sample Rate:\n")

	for i, rate := range m.availableSampleRates {
		cursor := " "
		if i == m.sampleRateIndex {
			cursor = "▶"
		}
		line := fmt.Sprintf("  %s %.0f Hz\n", cursor, rate)
		if i == m.sampleRateIndex {
			line = highlightStyle.Render(line)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// RunDeviceBrowser launches the Bubble Tea device browser and returns the
// confirmed selection, or nil when the user quit.
func RunDeviceBrowser() (*Selection, error) {
	p := tea.NewProgram(
		NewDeviceListModel(audio.GetDevices),
		tea.WithAltScreen(),
	)
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	return final.(DeviceListModel).Selection(), nil
}
