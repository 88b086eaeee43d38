package main

import (
	"context"
	"os"
	"runtime"

	"tuner/cmd"
	applog "tuner/internal/log"
	"tuner/internal/session"
	"tuner/pkg/build"
)

// main is the entry point for the note detector.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and load configuration
//   - Initialize PortAudio and open the input stream
//
// 2. Concurrent Phase (Hot Path):
//   - PortAudio callback feeds the analysis pipeline
//   - Display, WebSocket and UDP publishers run alongside
//
// 3. Shutdown Phase (Cold Path):
//   - SIGINT/SIGTERM, the session duration or a pipeline failure ends the session
//   - Stop recording if active
//   - Clean up resources
func main() {
	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the audio callback (time-critical)
	// - One thread for display and network I/O
	runtime.GOMAXPROCS(2)

	ctx, stop := session.WithSignals(context.Background())
	err := cmd.Execute(ctx, os.Args[1:])
	stop()

	if err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}
