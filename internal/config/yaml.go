// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tuner/internal/fft"
	applog "tuner/internal/log"
	"tuner/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // Logging level (e.g., "debug", "info", "warn", "error").
	Duration  time.Duration   `yaml:"duration"`  // Stop the session after this long, 0 runs until interrupted.
	Audio     AudioConfig     `yaml:"audio"`     // Audio capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectral analysis settings.
	Recording RecordingConfig `yaml:"recording"` // Raw input recording settings.
	Transport TransportConfig `yaml:"transport"` // Detection publishing settings.
	Display   DisplayConfig   `yaml:"display"`   // Terminal output settings.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Requested sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback, independent of the FFT size.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // Channels to capture; only the first is analysed.
	GateThreshold   float64 `yaml:"gate_threshold"`    // Noise gate level in 0.0-1.0, 0 disables the gate.
}

// AnalysisConfig holds settings for the transform and estimator.
type AnalysisConfig struct {
	FFTSize int    `yaml:"fft_size"` // Samples per analysis window, a power of two.
	Backend string `yaml:"backend"`  // FFT implementation ("gonum" or "godsp").
	Window  string `yaml:"window"`   // Window function ("rectangular", "hann", ...).
}

// RecordingConfig holds settings related to audio recording functionality.
type RecordingConfig struct {
	Enabled    bool   `yaml:"enabled"`     // Record input to file while detecting.
	OutputDir  string `yaml:"output_dir"`  // Directory for generated file names.
	OutputFile string `yaml:"output_file"` // Explicit file path, generated when empty.
	Format     string `yaml:"format"`      // File format for recordings (only "wav").
	BitDepth   int    `yaml:"bit_depth"`   // Bit depth for recorded audio (16, 24 or 32).
}

// TransportConfig holds settings related to publishing detections.
type TransportConfig struct {
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Send the latest detection over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between UDP packets.
	WebSocketEnabled bool          `yaml:"websocket_enabled"`  // Broadcast detections to WebSocket clients.
	WebSocketAddress string        `yaml:"websocket_address"`  // Listen address (e.g., ":8080").
	WebSocketPath    string        `yaml:"websocket_path"`     // HTTP path for the upgrade endpoint.
	LogDetections    bool          `yaml:"log_detections"`     // Log every detection at debug level.
}

// DisplayConfig holds settings for the operator-facing output.
type DisplayConfig struct {
	Mode        string `yaml:"mode"`         // "console", "tui" or "none".
	ClearScreen bool   `yaml:"clear_screen"` // Clear the terminal before each console line.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Debug:    false,
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			InputDevice:     DefaultInputDevice,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
			GateThreshold:   DefaultGateThreshold,
		},
		Analysis: AnalysisConfig{
			FFTSize: DefaultFFTSize,
			Backend: DefaultBackend,
			Window:  DefaultWindow,
		},
		Recording: RecordingConfig{
			Enabled:   DefaultRecordingEnabled,
			OutputDir: DefaultOutputDir,
			Format:    DefaultFormat,
			BitDepth:  DefaultBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
			WebSocketAddress: DefaultWebSocketAddress,
			WebSocketPath:    DefaultWebSocketPath,
		},
		Display: DisplayConfig{
			Mode:        DefaultDisplayMode,
			ClearScreen: true,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{"config.yaml", "tuner.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("Config: Loaded %s", path)
	}

	// Environment overrides apply on top of the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error

	if _, ok := applog.ParseLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("log_level '%s' is not recognised", c.LogLevel))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", c.Duration))
	}

	// Audio
	if c.Audio.InputDevice < MinDeviceID {
		errs = append(errs, fmt.Errorf("audio.input_device must be >= %d, got %d", MinDeviceID, c.Audio.InputDevice))
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be within %d-%d Hz, got %.0f",
			MinSampleRate, MaxSampleRate, c.Audio.SampleRate))
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		errs = append(errs, fmt.Errorf("audio.frames_per_buffer must be within 1-%d, got %d",
			MaxBufferFrames, c.Audio.FramesPerBuffer))
	}
	if c.Audio.InputChannels < 1 {
		errs = append(errs, fmt.Errorf("audio.input_channels must be at least 1, got %d", c.Audio.InputChannels))
	}
	if c.Audio.GateThreshold < 0 || c.Audio.GateThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.gate_threshold must be within 0.0-1.0, got %f", c.Audio.GateThreshold))
	}

	// Analysis
	if n := c.Analysis.FFTSize; !bitint.IsPowerOfTwo(n) {
		errs = append(errs, fmt.Errorf("analysis.fft_size must be a power of 2, got %d (nearest above is %d)",
			n, bitint.NextPowerOfTwo(n)))
	} else if n < MinFFTSize || n > MaxFFTSize {
		errs = append(errs, fmt.Errorf("analysis.fft_size must be within %d-%d, got %d", MinFFTSize, MaxFFTSize, n))
	}
	if _, err := fft.ParseBackend(c.Analysis.Backend); err != nil {
		errs = append(errs, fmt.Errorf("analysis.backend: %w", err))
	}
	if _, err := fft.ParseWindowFunc(c.Analysis.Window); err != nil {
		errs = append(errs, fmt.Errorf("analysis.window: %w", err))
	}

	// Recording
	if c.Recording.Enabled {
		if !strings.EqualFold(c.Recording.Format, "wav") {
			errs = append(errs, fmt.Errorf("recording.format '%s' is not supported (wav only)", c.Recording.Format))
		}
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			errs = append(errs, fmt.Errorf("recording.bit_depth must be 16, 24 or 32, got %d", c.Recording.BitDepth))
		}
	}

	// Transport
	if c.Transport.UDPEnabled {
		if !strings.Contains(c.Transport.UDPTargetAddress, ":") {
			errs = append(errs, fmt.Errorf("transport.udp_target_address '%s' appears invalid (missing port?)",
				c.Transport.UDPTargetAddress))
		}
		if c.Transport.UDPSendInterval <= 0 {
			errs = append(errs, errors.New("transport.udp_send_interval must be positive when UDP is enabled"))
		}
	}
	if c.Transport.WebSocketEnabled {
		if c.Transport.WebSocketAddress == "" {
			errs = append(errs, errors.New("transport.websocket_address must be set when WebSocket is enabled"))
		}
		if !strings.HasPrefix(c.Transport.WebSocketPath, "/") {
			errs = append(errs, fmt.Errorf("transport.websocket_path '%s' must start with '/'", c.Transport.WebSocketPath))
		}
	}

	// Display
	switch c.Display.Mode {
	case DisplayConsole, DisplayTUI, DisplayNone:
	default:
		errs = append(errs, fmt.Errorf("display.mode '%s' must be one of console, tui, none", c.Display.Mode))
	}

	return errors.Join(errs...)
}

// Level returns the effective log level; Debug forces LevelDebug.
func (c *Config) Level() applog.LogLevel {
	if c.Debug {
		return applog.LevelDebug
	}
	level, _ := applog.ParseLevel(c.LogLevel)
	return level
}

// applyEnvOverrides replaces fields from ENV_* variables. Values that fail to
// parse are ignored with a warning.
func (c *Config) applyEnvOverrides() {
	// ENV_{...}
	// General overrides.

	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			applog.Infof("Config: Overriding debug from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_DEBUG=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Infof("Config: Overriding log_level from env: %s", val)
	}

	// ENV_FFT_{...}
	// Analysis overrides.

	if val, ok := os.LookupEnv("ENV_FFT_SIZE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Analysis.FFTSize = n
			applog.Infof("Config: Overriding analysis.fft_size from env: %d", n)
		} else {
			applog.Warnf("Config: Ignoring ENV_FFT_SIZE=%q: %v", val, err)
		}
	}

	// ENV_UDP_{...} and ENV_WS_{...}
	// Transport overrides.

	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.UDPEnabled = bVal
			applog.Infof("Config: Overriding transport.udp_enabled from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_ENABLED=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("Config: Overriding transport.udp_target_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Transport.UDPSendInterval = dur
			applog.Infof("Config: Overriding transport.udp_send_interval from env: %s", dur)
		} else {
			applog.Warnf("Config: Ignoring ENV_UDP_SEND_INTERVAL=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Transport.WebSocketEnabled = bVal
			applog.Infof("Config: Overriding transport.websocket_enabled from env: %v", bVal)
		} else {
			applog.Warnf("Config: Ignoring ENV_WS_ENABLED=%q: %v", val, err)
		}
	}
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Infof("Config: Overriding transport.websocket_address from env: %s", val)
	}
}
