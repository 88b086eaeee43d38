package audio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func testDevices() []Device {
	return toDevices([]*portaudio.DeviceInfo{
		{
			Name:                    "Built-in Microphone",
			MaxInputChannels:        2,
			DefaultSampleRate:       48000,
			DefaultLowInputLatency:  3 * time.Millisecond,
			DefaultHighInputLatency: 12 * time.Millisecond,
			HostApi:                 &portaudio.HostApiInfo{Name: "Core Audio"},
		},
		{
			Name:              "Built-in Output",
			MaxOutputChannels: 2,
			DefaultSampleRate: 44100,
		},
		{
			Name:              "USB Interface",
			MaxInputChannels:  4,
			MaxOutputChannels: 4,
			DefaultSampleRate: 96000,
		},
	}, "Built-in Microphone")
}

func TestToDevices(t *testing.T) {
	devices := testDevices()
	if len(devices) != 3 {
		t.Fatalf("len(devices) = %d, want 3", len(devices))
	}

	for i, d := range devices {
		if d.ID != i {
			t.Errorf("devices[%d].ID = %d", i, d.ID)
		}
	}
	if !devices[0].IsDefaultInput || devices[1].IsDefaultInput || devices[2].IsDefaultInput {
		t.Error("only the built-in microphone should be the default input")
	}
	if devices[0].HostAPI != "Core Audio" {
		t.Errorf("HostAPI = %q", devices[0].HostAPI)
	}
	if devices[0].LowInputLatency != 3*time.Millisecond {
		t.Errorf("LowInputLatency = %v", devices[0].LowInputLatency)
	}
}

func TestDeviceKind(t *testing.T) {
	tests := []struct {
		device Device
		want   string
		input  bool
	}{
		{Device{MaxInputChannels: 1}, "Input", true},
		{Device{MaxOutputChannels: 2}, "Output", false},
		{Device{MaxInputChannels: 2, MaxOutputChannels: 2}, "Input/Output", true},
		{Device{}, "", false},
	}

	for _, tt := range tests {
		if got := tt.device.Kind(); got != tt.want {
			t.Errorf("Kind() = %q, want %q", got, tt.want)
		}
		if got := tt.device.IsInput(); got != tt.input {
			t.Errorf("IsInput() = %v, want %v", got, tt.input)
		}
	}
}

func TestValidateInputDevice(t *testing.T) {
	devices := testDevices()

	tests := []struct {
		name    string
		id      int
		wantErr string
	}{
		{"Microphone", 0, ""},
		{"Duplex", 2, ""},
		{"OutputOnly", 1, "no input channels"},
		{"Negative", -2, "invalid device ID"},
		{"OutOfRange", 3, "invalid device ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInputDevice(tt.id, devices)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	PrintDevices(&buf, testDevices())
	out := buf.String()

	for _, want := range []string{
		"Available Audio Devices",
		"[0] Built-in Microphone (Input) [default input]",
		"Host API: Core Audio",
		"[1] Built-in Output (Output)",
		"[2] USB Interface (Input/Output)",
		"Input channels: 4, Output channels: 4",
		"Default sample rate: 96000 Hz",
		"Latency: Low=3.00ms, High=12.00ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
