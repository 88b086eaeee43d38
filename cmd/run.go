package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"tuner/internal/analysis"
	"tuner/internal/audio"
	"tuner/internal/config"
	"tuner/internal/display"
	"tuner/internal/fft"
	applog "tuner/internal/log"
	"tuner/internal/notes"
	"tuner/internal/pitch"
	"tuner/internal/session"
	"tuner/internal/transport"
	"tuner/internal/transport/udp"
	"tuner/internal/tui"
)

// newController builds the analysis pipeline for the actual sample rate of
// the source.
func newController(cfg *config.Config, sampleRate float64) (*analysis.Controller, error) {
	backend, err := fft.ParseBackend(cfg.Analysis.Backend)
	if err != nil {
		return nil, err
	}
	window, err := fft.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		return nil, err
	}
	return analysis.NewController(analysis.Options{
		SampleRate: sampleRate,
		FFTSize:    cfg.Analysis.FFTSize,
		Backend:    backend,
		Window:     window,
	})
}

// outputs wires the configured sinks and services to ctrl. The returned
// cleanup closes every transport.
func outputs(cfg *config.Config, w io.Writer, id string, ctrl *analysis.Controller, info tui.SessionInfo) ([]session.Service, func(), error) {
	var (
		services []session.Service
		closers  []io.Closer
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				applog.Warnf("Close: %v", err)
			}
		}
	}

	switch cfg.Display.Mode {
	case config.DisplayConsole:
		ctrl.AddSink(display.NewConsole(w, cfg.Display.ClearScreen))
	case config.DisplayTUI:
		services = append(services, func(ctx context.Context) error {
			return tui.RunNoteView(ctx, ctrl, info)
		})
	}

	var transports []transport.Transport
	if cfg.Transport.LogDetections {
		transports = append(transports, transport.NewLoggingTransport())
	}
	if cfg.Transport.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WebSocketAddress, cfg.Transport.WebSocketPath)
		if err := ws.Start(); err != nil {
			cleanup()
			return nil, nil, err
		}
		transports = append(transports, ws)
	}
	if len(transports) > 0 {
		sink := transport.NewSink(id, transports...)
		ctrl.AddSink(sink)
		closers = append(closers, sink)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, sender)
		publisher, err := udp.NewPublisher(cfg.Transport.UDPSendInterval, sender, ctrl)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		services = append(services, publisher.Run)
	}

	return services, cleanup, nil
}

// quietLogs silences the logger while the full-screen view owns the terminal
// and returns a function restoring it.
func quietLogs(cfg *config.Config) func() {
	if cfg.Display.Mode != config.DisplayTUI {
		return func() {}
	}
	applog.SetOutput(io.Discard)
	return func() { applog.SetOutput(os.Stderr) }
}

// runDetect captures from the configured device until interrupted.
func runDetect(ctx context.Context, cfg *config.Config) error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	engine, err := audio.NewEngine(cfg.Audio)
	if err != nil {
		return err
	}
	sampleRate, err := engine.Open()
	if err != nil {
		return err
	}

	ctrl, err := newController(cfg, sampleRate)
	if err != nil {
		engine.Stop()
		return err
	}

	id := session.NewID()
	info := tui.SessionInfo{
		ID:         id,
		Input:      fmt.Sprintf("device %d", cfg.Audio.InputDevice),
		SampleRate: sampleRate,
		FFTSize:    cfg.Analysis.FFTSize,
	}
	if cfg.Audio.InputDevice == config.MinDeviceID {
		info.Input = "default input"
	}

	services, cleanup, err := outputs(cfg, os.Stdout, id, ctrl, info)
	if err != nil {
		engine.Stop()
		return err
	}
	defer cleanup()

	if cfg.Recording.Enabled {
		path := audio.RecordingPath(cfg.Recording.OutputDir, cfg.Recording.OutputFile, time.Now())
		if err := engine.StartRecording(path, cfg.Recording.BitDepth); err != nil {
			engine.Stop()
			return err
		}
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	restore := quietLogs(cfg)
	summary, err := session.Run(ctx, engine, ctrl, session.Options{
		ID:       id,
		Duration: cfg.Duration,
		Services: services,
	})
	restore()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if cfg.Display.Mode == config.DisplayTUI {
		fmt.Println(summary)
	}
	return err
}

// runDevices lets the user pick a device and sample rate, then detects on it.
func runDevices(ctx context.Context, cfg *config.Config) error {
	selection, err := tui.RunDeviceBrowser()
	if err != nil {
		return err
	}
	if selection == nil {
		return nil
	}

	applog.Infof("Selected device %d (%s) at %.0f Hz", selection.DeviceID, selection.DeviceName, selection.SampleRate)
	cfg.Audio.InputDevice = selection.DeviceID
	cfg.Audio.SampleRate = selection.SampleRate
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return runDetect(ctx, cfg)
}

// runList prints every audio device.
func runList(w io.Writer) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	return audio.ListDevices(w)
}

// runNotes prints the note table with the bin each note maps to. Notes whose
// bin falls outside the spectrum are never reported.
func runNotes(w io.Writer, cfg *config.Config) error {
	estimator, err := pitch.NewEstimator(cfg.Audio.SampleRate, cfg.Analysis.FFTSize, notes.All())
	if err != nil {
		return err
	}
	resolution := estimator.Resolution()

	fmt.Fprintf(w, "Sample rate %.0f Hz, FFT size %d, resolution %.2f Hz\n\n",
		cfg.Audio.SampleRate, cfg.Analysis.FFTSize, resolution)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NOTE\tFREQUENCY\tBIN\tBIN CENTRE")
	for _, note := range estimator.Notes() {
		bin := pitch.TargetBin(note, resolution)
		if bin < 0 || bin >= cfg.Analysis.FFTSize {
			fmt.Fprintf(tw, "%s\t%.2f Hz\t-\tout of range\n", note.Name(), note.Frequency())
			continue
		}
		fmt.Fprintf(tw, "%s\t%.2f Hz\t%d\t%.2f Hz\n", note.Name(), note.Frequency(), bin, float32(bin)*resolution)
	}
	return tw.Flush()
}

// runAnalyze replays a WAV file through the pipeline.
func runAnalyze(ctx context.Context, w io.Writer, cfg *config.Config, path string, realtime bool) error {
	src, err := audio.OpenFile(path, cfg.Audio.FramesPerBuffer,
		audio.WithRealtime(realtime),
		audio.WithGate(audio.NewGate(cfg.Audio.GateThreshold)))
	if err != nil {
		return err
	}

	ctrl, err := newController(cfg, src.SampleRate())
	if err != nil {
		src.Stop()
		return err
	}

	id := session.NewID()
	// Every detection is kept on screen when replaying a file.
	if cfg.Display.Mode == config.DisplayConsole {
		cfg.Display.ClearScreen = false
	}
	services, cleanup, err := outputs(cfg, w, id, ctrl, tui.SessionInfo{
		ID:         id,
		Input:      path,
		SampleRate: src.SampleRate(),
		FFTSize:    cfg.Analysis.FFTSize,
	})
	if err != nil {
		src.Stop()
		return err
	}
	defer cleanup()

	restore := quietLogs(cfg)
	summary, err := session.Run(ctx, src, ctrl, session.Options{
		ID:       id,
		Duration: cfg.Duration,
		Services: services,
	})
	restore()
	if err != nil {
		return err
	}

	if summary.Stats.Windows == 0 {
		return errors.New("file is shorter than one analysis window")
	}
	fmt.Fprintln(w, summary)
	return nil
}
