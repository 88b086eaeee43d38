package audio

import (
	"fmt"
	"io"

	"tuner/internal/config"

	"github.com/gordonklaus/portaudio"
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// InputDevice retrieves the audio input device for the given device ID.
// If deviceID is MinDeviceID (-1), returns the system default input device.
// Returns an error if the device ID is invalid, no such device exists or the
// device has no input channels.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("no default input device: %w", err)
		}
		return device, nil
	}

	devices, err := paDevices()
	if err != nil {
		return nil, err
	}
	if err := validateInputDevice(deviceID, toDevices(devices, "")); err != nil {
		return nil, err
	}
	return devices[deviceID], nil
}

func validateInputDevice(deviceID int, devices []Device) error {
	if deviceID < 0 || deviceID >= len(devices) {
		return fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if !devices[deviceID].IsInput() {
		return fmt.Errorf("device %d (%s) has no input channels", deviceID, devices[deviceID].Name)
	}
	return nil
}

// ListDevices prints information about all available audio devices.
func ListDevices(w io.Writer) error {
	devices, err := Devices()
	if err != nil {
		return err
	}
	PrintDevices(w, devices)
	return nil
}

// PrintDevices writes one block per device: ID, name, kind, channel counts,
// default sample rate and input latency range.
func PrintDevices(w io.Writer, devices []Device) {
	fmt.Fprintf(w, "\nAvailable Audio Devices\n\n")

	for _, device := range devices {
		marker := ""
		if device.IsDefaultInput {
			marker = " [default input]"
		}
		fmt.Fprintf(w, "[%d] %s (%s)%s\n", device.ID, device.Name, device.Kind(), marker)
		if device.HostAPI != "" {
			fmt.Fprintf(w, "    Host API: %s\n", device.HostAPI)
		}
		fmt.Fprintf(w, "    Input channels: %d, Output channels: %d\n", device.MaxInputChannels, device.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n",
			device.LowInputLatency.Seconds()*1000,
			device.HighInputLatency.Seconds()*1000)
		fmt.Fprintln(w)
	}
}

// paDevices returns all available PortAudio devices.
// This is a helper function used internally by InputDevice and Devices.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	return devices, nil
}
