// SPDX-License-Identifier: MIT
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	applog "tuner/internal/log"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Analysis.FFTSize != DefaultFFTSize || cfg.Audio.SampleRate != DefaultSampleRate {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected unmarshal error, got %v", err)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
duration: 10s
audio:
  sample_rate: 48000
  frames_per_buffer: 256
analysis:
  fft_size: 2048
  backend: godsp
  window: hann
transport:
  udp_enabled: true
  udp_send_interval: 50ms
display:
  mode: none
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Audio.SampleRate != 48000 || cfg.Audio.FramesPerBuffer != 256 {
		t.Errorf("audio section not loaded: %+v", cfg.Audio)
	}
	if cfg.Analysis != (AnalysisConfig{FFTSize: 2048, Backend: "godsp", Window: "hann"}) {
		t.Errorf("analysis section not loaded: %+v", cfg.Analysis)
	}
	if cfg.Duration != 10*time.Second {
		t.Errorf("duration = %s, want 10s", cfg.Duration)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 50*time.Millisecond {
		t.Errorf("transport section not loaded: %+v", cfg.Transport)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Transport.UDPTargetAddress != DefaultUDPTargetAddress || cfg.Audio.InputChannels != DefaultChannels {
		t.Errorf("defaults lost for unset fields: %+v", cfg)
	}
	if cfg.Level() != applog.LevelDebug {
		t.Errorf("Level() = %s, want DEBUG", cfg.Level())
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, "analysis:\n  fft_size: 1000\n")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "power of 2") {
		t.Fatalf("expected power-of-two error, got %v", err)
	}
	if !strings.Contains(err.Error(), "1024") {
		t.Errorf("error should suggest 1024: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"LogLevel", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"NegativeDuration", func(c *Config) { c.Duration = -time.Second }, "duration"},
		{"DeviceID", func(c *Config) { c.Audio.InputDevice = -2 }, "input_device"},
		{"SampleRateLow", func(c *Config) { c.Audio.SampleRate = 4000 }, "sample_rate"},
		{"SampleRateHigh", func(c *Config) { c.Audio.SampleRate = 384000 }, "sample_rate"},
		{"Frames", func(c *Config) { c.Audio.FramesPerBuffer = 0 }, "frames_per_buffer"},
		{"Channels", func(c *Config) { c.Audio.InputChannels = 0 }, "input_channels"},
		{"Gate", func(c *Config) { c.Audio.GateThreshold = 1.5 }, "gate_threshold"},
		{"FFTTooSmall", func(c *Config) { c.Analysis.FFTSize = 32 }, "fft_size"},
		{"Backend", func(c *Config) { c.Analysis.Backend = "fftw" }, "analysis.backend"},
		{"Window", func(c *Config) { c.Analysis.Window = "kaiser" }, "analysis.window"},
		{"RecordingFormat", func(c *Config) { c.Recording.Enabled = true; c.Recording.Format = "mp3" }, "recording.format"},
		{"RecordingDepth", func(c *Config) { c.Recording.Enabled = true; c.Recording.BitDepth = 12 }, "bit_depth"},
		{"RecordingDisabledIgnored", func(c *Config) { c.Recording.Format = "mp3" }, ""},
		{"UDPAddress", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPTargetAddress = "localhost" }, "udp_target_address"},
		{"UDPInterval", func(c *Config) { c.Transport.UDPEnabled = true; c.Transport.UDPSendInterval = 0 }, "udp_send_interval"},
		{"WSPath", func(c *Config) { c.Transport.WebSocketEnabled = true; c.Transport.WebSocketPath = "notes" }, "websocket_path"},
		{"WSAddress", func(c *Config) { c.Transport.WebSocketEnabled = true; c.Transport.WebSocketAddress = "" }, "websocket_address"},
		{"DisplayMode", func(c *Config) { c.Display.Mode = "gui" }, "display.mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Audio.InputChannels = 0
	cfg.Display.Mode = "gui"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"input_channels", "display.mode"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

// Not parallel: t.Setenv mutates process state.
func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENV_DEBUG", "true")
	t.Setenv("ENV_FFT_SIZE", "4096")
	t.Setenv("ENV_UDP_ENABLED", "1")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "100ms")
	t.Setenv("ENV_WS_ENABLED", "yes") // not a bool, ignored
	t.Setenv("ENV_WS_ADDRESS", ":9999")

	path := writeTempConfig(t, "analysis:\n  fft_size: 512\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.Debug || cfg.Level() != applog.LevelDebug {
		t.Error("ENV_DEBUG not applied")
	}
	if cfg.Analysis.FFTSize != 4096 {
		t.Errorf("fft_size = %d, want env value 4096 over file value 512", cfg.Analysis.FFTSize)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" ||
		cfg.Transport.UDPSendInterval != 100*time.Millisecond {
		t.Errorf("UDP overrides not applied: %+v", cfg.Transport)
	}
	if cfg.Transport.WebSocketEnabled {
		t.Error("unparseable ENV_WS_ENABLED should be ignored")
	}
	if cfg.Transport.WebSocketAddress != ":9999" {
		t.Errorf("websocket_address = %q, want :9999", cfg.Transport.WebSocketAddress)
	}
}
