// SPDX-License-Identifier: MIT
/*
Package session runs one detection session: it starts an audio source feeding
a controller, runs the auxiliary services (network publishers, live view)
next to it and waits until the user interrupts, the duration elapses, the
source runs dry or the pipeline fails.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tuner/internal/analysis"
	applog "tuner/internal/log"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Source delivers chunks to a processor until stopped. Done reports a fatal
// pipeline error, or nil when a finite source has delivered everything.
type Source interface {
	SampleRate() float64
	Start(p analysis.ChunkProcessor) error
	Stop() error
	Done() <-chan error
}

// Pipeline is the processing side of a session.
type Pipeline interface {
	analysis.ChunkProcessor
	Stats() analysis.Stats
}

// Service runs alongside the pipeline until ctx is cancelled. A service that
// returns ends the session.
type Service func(ctx context.Context) error

// Options configures Run.
type Options struct {
	ID       string        // Session identifier, a random UUID when empty.
	Duration time.Duration // Stop after this long, 0 runs until cancelled.
	Services []Service
}

// Summary describes a finished session.
type Summary struct {
	ID      string
	Elapsed time.Duration
	Stats   analysis.Stats
}

func (s Summary) String() string {
	return fmt.Sprintf("Session %s: %s windows analysed (%s samples) in %s, %s with a note",
		s.ID,
		humanize.Comma(int64(s.Stats.Windows)),
		humanize.Comma(int64(s.Stats.Samples)),
		s.Elapsed.Round(time.Millisecond),
		humanize.Comma(int64(s.Stats.Matched)))
}

// NewID returns a fresh session identifier.
func NewID() string { return uuid.NewString() }

// WithSignals returns a context cancelled on SIGINT or SIGTERM.
func WithSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// Run starts src feeding pipeline and blocks until the session ends. Ending
// because ctx was cancelled, the duration elapsed or the source finished is
// not an error; a pipeline or service failure is.
func Run(ctx context.Context, src Source, pipeline Pipeline, opts Options) (Summary, error) {
	if opts.ID == "" {
		opts.ID = NewID()
	}
	summary := Summary{ID: opts.ID}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, opts.Duration)
		defer stop()
	}

	started := time.Now()
	if err := src.Start(pipeline); err != nil {
		return summary, fmt.Errorf("failed to start source: %w", err)
	}
	applog.Infof("Session %s: Started (%.0f Hz)", opts.ID, src.SampleRate())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case err := <-src.Done():
			cancel()
			if err != nil {
				return fmt.Errorf("pipeline failed: %w", err)
			}
			applog.Debugf("Session %s: Source finished", opts.ID)
			return nil
		}
	})
	for _, svc := range opts.Services {
		g.Go(func() error {
			defer cancel()
			return svc(gctx)
		})
	}

	runErr := g.Wait()
	stopErr := src.Stop()
	if stopErr != nil {
		stopErr = fmt.Errorf("failed to stop source: %w", stopErr)
	}

	summary.Elapsed = time.Since(started)
	summary.Stats = pipeline.Stats()
	applog.Infof("%s", summary)

	return summary, errors.Join(runErr, stopErr)
}
