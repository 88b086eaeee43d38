package cmd

import (
	"context"
	"fmt"
	"time"

	"tuner/internal/config"
	applog "tuner/internal/log"
	"tuner/pkg/build"

	"github.com/spf13/cobra"
)

// flags holds the command line values. They only override the loaded
// configuration when set explicitly.
type flags struct {
	configPath string

	device          int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	gate            float64

	fftSize int
	backend string
	window  string

	record bool
	output string

	tui      bool
	quiet    bool
	duration time.Duration
	realtime bool

	verbose  bool
	logLevel string

	wsEnabled  bool
	wsAddress  string
	udpEnabled bool
	udpAddress string
	logEvents  bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	rootCmd, _ := newRootCommand()
	return rootCmd
}

// newRootCommand also returns the bound flag values. The loaded
// configuration is shared by every subcommand through cfg.
func newRootCommand() (*cobra.Command, *flags) {
	buildInfo := build.GetBuildInfo()
	f := &flags{}
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			cfg = loaded
			applog.SetLevel(cfg.Level())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd.Context(), cfg)
		},
	}

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.OutOrStdout())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "Browse input devices interactively and start detecting on the chosen one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevices(cmd.Context(), cfg)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "notes",
		Short: "Print the note table with the spectrum bin of every note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotes(cmd.OutOrStdout(), cfg)
		},
	})

	analyzeCmd := &cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Detect notes in a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], f.realtime)
		},
	}
	analyzeCmd.Flags().BoolVar(&f.realtime, "realtime", false,
		"Replay the file at its own sample rate instead of as fast as possible")
	rootCmd.AddCommand(analyzeCmd)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "",
		"Configuration file (default: ./config.yaml or ./tuner.yaml when present)")

	// Audio Device Configuration
	pf.IntVarP(&f.device, "device", "d", config.DefaultInputDevice,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&f.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture; only the first is analysed")
	pf.Float64VarP(&f.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&f.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	pf.BoolVarP(&f.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	pf.Float64Var(&f.gate, "gate", config.DefaultGateThreshold,
		"Noise gate threshold in 0.0-1.0; quieter chunks are silenced (0 disables)")

	// Analysis Configuration
	pf.IntVarP(&f.fftSize, "fft-size", "n", config.DefaultFFTSize,
		"Samples per analysis window, a power of two")
	pf.StringVar(&f.backend, "backend", config.DefaultBackend,
		"FFT implementation: gonum or godsp")
	pf.StringVar(&f.window, "window", config.DefaultWindow,
		"Window function: rectangular, hann, hamming, blackman, ...")

	// Recording Configuration
	pf.BoolVarP(&f.record, "record", "r", config.DefaultRecordingEnabled,
		"Record audio from the specified input device")
	pf.StringVarP(&f.output, "output", "o", "",
		"Output file name. Default is tuner-YYYYMMDD-HHMMSS.wav in the recording directory")

	// Display Configuration
	pf.BoolVarP(&f.tui, "tui", "t", false, "Show the live note view")
	pf.BoolVarP(&f.quiet, "quiet", "q", false, "Do not print detections")
	pf.DurationVar(&f.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")

	// Transport Configuration
	pf.BoolVar(&f.wsEnabled, "ws", false, "Broadcast detections to WebSocket clients")
	pf.StringVar(&f.wsAddress, "ws-address", config.DefaultWebSocketAddress, "WebSocket listen address")
	pf.BoolVar(&f.udpEnabled, "udp", false, "Send the latest detection over UDP")
	pf.StringVar(&f.udpAddress, "udp-address", config.DefaultUDPTargetAddress, "UDP target address")
	pf.BoolVar(&f.logEvents, "log-detections", false, "Log every detection at debug level")

	// Debug Configuration
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "Show verbose output")
	pf.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")

	return rootCmd, f
}

// loadConfig reads the configuration file and applies explicitly set flags
// on top of it.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("device") {
		cfg.Audio.InputDevice = f.device
	}
	if changed("channels") {
		cfg.Audio.InputChannels = f.channels
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = f.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = f.framesPerBuffer
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = f.lowLatency
	}
	if changed("gate") {
		cfg.Audio.GateThreshold = f.gate
	}
	if changed("fft-size") {
		cfg.Analysis.FFTSize = f.fftSize
	}
	if changed("backend") {
		cfg.Analysis.Backend = f.backend
	}
	if changed("window") {
		cfg.Analysis.Window = f.window
	}
	if changed("record") {
		cfg.Recording.Enabled = f.record
	}
	if changed("output") {
		cfg.Recording.OutputFile = f.output
	}
	if changed("tui") && f.tui {
		cfg.Display.Mode = config.DisplayTUI
	}
	if changed("quiet") && f.quiet {
		cfg.Display.Mode = config.DisplayNone
	}
	if changed("duration") {
		cfg.Duration = f.duration
	}
	if changed("ws") {
		cfg.Transport.WebSocketEnabled = f.wsEnabled
	}
	if changed("ws-address") {
		cfg.Transport.WebSocketAddress = f.wsAddress
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = f.udpEnabled
	}
	if changed("udp-address") {
		cfg.Transport.UDPTargetAddress = f.udpAddress
	}
	if changed("log-detections") {
		cfg.Transport.LogDetections = f.logEvents
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("verbose") {
		cfg.Debug = f.verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs the command line with args.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}
