package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the note detector.
const (
	// Audio capture defaults
	DefaultInputDevice     = MinDeviceID // System default input device
	DefaultChannels        = 1           // Mono audio
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultFramesPerBuffer = 512         // Balanced latency/performance
	DefaultLowLatency      = false       // Standard latency mode
	DefaultGateThreshold   = 0.0         // Gate open

	// Analysis defaults
	DefaultFFTSize = 1024          // ≈43 Hz bins at 44.1 kHz
	DefaultBackend = "gonum"       // gonum dsp/fourier
	DefaultWindow  = "rectangular" // No taper

	// Recording defaults
	DefaultRecordingEnabled = false
	DefaultOutputDir        = "./recordings"
	DefaultFormat           = "wav"
	DefaultBitDepth         = 16

	// Transport defaults
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz
	DefaultWebSocketAddress = ":8080"
	DefaultWebSocketPath    = "/notes"

	// Display and logging defaults
	DefaultDisplayMode = DisplayConsole
	DefaultLogLevel    = "info"

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames = 8192   // Maximum frames per buffer
	MinFFTSize      = 64     // Below this no note of the table is resolvable
	MaxFFTSize      = 65536
)

// Display modes.
const (
	DisplayConsole = "console" // Clear the terminal and print one line per note
	DisplayTUI     = "tui"     // Full-screen live view
	DisplayNone    = "none"    // Only network/log transports
)
