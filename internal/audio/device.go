package audio

import (
	"time"

	"github.com/gordonklaus/portaudio"
)

// Device represents an audio device
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	LowInputLatency   time.Duration
	HighInputLatency  time.Duration
	IsDefaultInput    bool
}

// Kind reports whether the device captures, plays back or both.
func (d Device) Kind() string {
	switch {
	case d.MaxInputChannels > 0 && d.MaxOutputChannels > 0:
		return "Input/Output"
	case d.MaxInputChannels > 0:
		return "Input"
	case d.MaxOutputChannels > 0:
		return "Output"
	default:
		return ""
	}
}

// IsInput reports whether the device can be used for capture.
func (d Device) IsInput() bool { return d.MaxInputChannels > 0 }

// GetDevices returns all available audio devices
func GetDevices() ([]Device, error) {
	// Initialize PortAudio if needed
	err := Initialize()
	if err != nil {
		return nil, err
	}
	defer Terminate()

	return Devices()
}

// Devices lists the devices of an already initialised PortAudio subsystem.
func Devices() ([]Device, error) {
	paDeviceInfos, err := paDevices()
	if err != nil {
		return nil, err
	}

	var defaultName string
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}

	return toDevices(paDeviceInfos, defaultName), nil
}

// toDevices converts PortAudio devices to our Device struct.
func toDevices(infos []*portaudio.DeviceInfo, defaultInput string) []Device {
	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			LowInputLatency:   info.DefaultLowInputLatency,
			HighInputLatency:  info.DefaultHighInputLatency,
			IsDefaultInput:    info.MaxInputChannels > 0 && info.Name == defaultInput,
		}
		if info.HostApi != nil {
			devices[i].HostAPI = info.HostApi.Name
		}
	}
	return devices
}
