// SPDX-License-Identifier: MIT
/*
Package audio implements the capture side of the note detector:
- Audio capture using a PortAudio float32 input stream
- Reduction of interleaved input to the first channel
- Noise gate applied before analysis
- WAV recording of the raw input
- WAV file playback through the same pipeline

Thread Safety:
- PortAudio invokes the callback serially, so the mono buffer and the
  downstream processor are only touched from one goroutine at a time
- Recording and gate state are switched with atomic operations
- Pre-allocates buffers to avoid GC in hot path
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"tuner/internal/analysis"
	"tuner/internal/config"
	applog "tuner/internal/log"

	"github.com/gordonklaus/portaudio"
)

// ErrNotOpen is returned when Start is called before Open.
var ErrNotOpen = errors.New("input stream is not open")

type Engine struct {
	// Core configuration and state.
	config          config.AudioConfig
	channels        int
	sampleRate      float64
	framesPerBuffer int

	// Audio input handling.
	inputDevice  *portaudio.DeviceInfo
	inputLatency time.Duration
	inputStream  *portaudio.Stream

	// Analysis of the first channel.
	processor analysis.ChunkProcessor
	mono      []float32

	// Noise gate for signal conditioning.
	gate *Gate

	// Recording of the interleaved input.
	recorder atomic.Pointer[Recorder]

	// Fatal pipeline failures, delivered once.
	done      chan error
	failed    atomic.Bool
	overflows atomic.Uint64
	stopOnce  sync.Once
}

// NewEngine resolves the configured input device. PortAudio must already be
// initialised.
func NewEngine(cfg config.AudioConfig) (*Engine, error) {
	inputDevice, err := InputDevice(cfg.InputDevice)
	if err != nil {
		return nil, err
	}

	channels := cfg.InputChannels
	if channels > inputDevice.MaxInputChannels {
		applog.Warnf("Audio: Device %q supports %d input channels, using %d instead of %d",
			inputDevice.Name, inputDevice.MaxInputChannels, inputDevice.MaxInputChannels, channels)
		channels = inputDevice.MaxInputChannels
	}

	engine := newEngine(cfg, channels)
	engine.inputDevice = inputDevice
	if cfg.LowLatency {
		engine.inputLatency = inputDevice.DefaultLowInputLatency
	} else {
		engine.inputLatency = inputDevice.DefaultHighInputLatency
	}

	applog.Infof("Audio: Using input device %q (%d channels, latency %s)",
		inputDevice.Name, channels, engine.inputLatency)
	return engine, nil
}

func newEngine(cfg config.AudioConfig, channels int) *Engine {
	return &Engine{
		config:          cfg,
		channels:        channels,
		sampleRate:      cfg.SampleRate,
		framesPerBuffer: cfg.FramesPerBuffer,
		// Pre-allocate mono buffer sized for one callback.
		mono: make([]float32, cfg.FramesPerBuffer),
		gate: NewGate(cfg.GateThreshold),
		done: make(chan error, 1),
	}
}

// Open opens the input stream without starting it. The device may not grant
// the requested sample rate, so the actual rate is read back from the stream
// and returned; analysis must be configured with it.
func (e *Engine) Open() (float64, error) {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: e.channels,
			Device:   e.inputDevice,
			Latency:  e.inputLatency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: e.framesPerBuffer,
		SampleRate:      e.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, e.processInputStream)
	if err != nil {
		return 0, fmt.Errorf("failed to open input stream: %w", err)
	}
	e.inputStream = stream

	if info := stream.Info(); info != nil && info.SampleRate > 0 {
		if info.SampleRate != e.config.SampleRate {
			applog.Warnf("Audio: Requested %.0f Hz, device runs at %.0f Hz", e.config.SampleRate, info.SampleRate)
		}
		e.sampleRate = info.SampleRate
	}
	return e.sampleRate, nil
}

// Start begins delivering chunks to p.
func (e *Engine) Start(p analysis.ChunkProcessor) error {
	if e.inputStream == nil {
		return ErrNotOpen
	}
	e.processor = p

	if err := e.inputStream.Start(); err != nil {
		e.inputStream.Close()
		e.inputStream = nil
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	applog.Debugf("Audio: Input stream started (%d frames per buffer)", e.framesPerBuffer)
	return nil
}

// Stop halts the stream, finalises any recording and releases the stream.
// Calling it more than once is harmless.
func (e *Engine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		var errs []error
		if e.inputStream != nil {
			if stopErr := e.inputStream.Stop(); stopErr != nil {
				errs = append(errs, fmt.Errorf("failed to stop input stream: %w", stopErr))
			}
			if closeErr := e.inputStream.Close(); closeErr != nil {
				errs = append(errs, fmt.Errorf("failed to close input stream: %w", closeErr))
			}
			e.inputStream = nil
		}
		if recErr := e.StopRecording(); recErr != nil {
			errs = append(errs, recErr)
		}
		if n := e.overflows.Load(); n > 0 {
			applog.Warnf("Audio: %d input overflows during session", n)
		}
		err = errors.Join(errs...)
	})
	return err
}

// Done delivers the first fatal pipeline error.
func (e *Engine) Done() <-chan error { return e.done }

// SampleRate returns the rate chunks are delivered at.
func (e *Engine) SampleRate() float64 { return e.sampleRate }

// Channels returns the number of captured channels.
func (e *Engine) Channels() int { return e.channels }

// Gate returns the noise gate applied to every chunk.
func (e *Engine) Gate() *Gate { return e.gate }

// Overflows returns how many callbacks reported lost input.
func (e *Engine) Overflows() uint64 { return e.overflows.Load() }

// processInputStream is the core audio processing callback.
// Performance Critical:
// - Runs in a dedicated OS thread (LockOSThread)
// - Uses pre-allocated buffers only
func (e *Engine) processInputStream(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if flags&portaudio.InputOverflow != 0 {
		e.overflows.Add(1)
	}
	e.process(in)
}

// process records the raw input, reduces it to the first channel, gates it
// and hands it to the processor. After a fatal error further input is
// ignored until the session stops the stream.
func (e *Engine) process(in []float32) {
	if e.failed.Load() {
		return
	}

	if rec := e.recorder.Load(); rec != nil {
		if err := rec.Write(in); err != nil && !errors.Is(err, ErrRecorderClosed) {
			applog.Errorf("Audio: %v", err)
		}
	}

	chunk := e.monoInput(in)
	e.gate.Apply(chunk)

	if e.processor == nil {
		return
	}
	if _, err := e.processor.OnChunk(chunk); err != nil {
		e.fail(err)
	}
}

// monoInput returns the first channel of in. Mono input is returned as is.
func (e *Engine) monoInput(in []float32) []float32 {
	if frames := len(in) / e.channels; cap(e.mono) < frames {
		e.mono = make([]float32, frames)
	}
	return firstChannel(e.mono, in, e.channels)
}

func (e *Engine) fail(err error) {
	if e.failed.CompareAndSwap(false, true) {
		e.done <- err
	}
}
