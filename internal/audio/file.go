// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"tuner/internal/analysis"
	applog "tuner/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// FileSource replays a PCM WAV file through a ChunkProcessor in chunks of
// framesPerBuffer frames, reduced to the first channel like live input.
type FileSource struct {
	file       *os.File
	decoder    *wav.Decoder
	sampleRate float64
	channels   int
	bitDepth   int
	frames     int
	realtime   bool

	gate   *Gate
	cancel context.CancelFunc
	done   chan error
	wg     sync.WaitGroup
}

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithRealtime paces chunks at the file's sample rate instead of as fast as
// they decode.
func WithRealtime(realtime bool) FileOption {
	return func(s *FileSource) { s.realtime = realtime }
}

// WithGate applies a noise gate to every chunk.
func WithGate(g *Gate) FileOption {
	return func(s *FileSource) { s.gate = g }
}

// OpenFile validates path as a WAV file and prepares it for playback.
func OpenFile(path string, framesPerBuffer int, opts ...FileOption) (*FileSource, error) {
	if framesPerBuffer <= 0 {
		return nil, fmt.Errorf("invalid frames per buffer: %d", framesPerBuffer)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	s := &FileSource{
		file:       file,
		decoder:    decoder,
		sampleRate: float64(decoder.SampleRate),
		channels:   int(decoder.NumChans),
		bitDepth:   int(decoder.BitDepth),
		frames:     framesPerBuffer,
		gate:       NewGate(0),
		done:       make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.channels < 1 || s.bitDepth < 8 || s.bitDepth > 32 {
		file.Close()
		return nil, fmt.Errorf("unsupported WAV format: %d channels, %d-bit", s.channels, s.bitDepth)
	}

	applog.Debugf("Audio: Opened %s (%.0f Hz, %d channels, %d-bit)", path, s.sampleRate, s.channels, s.bitDepth)
	return s, nil
}

// SampleRate returns the file's sample rate.
func (s *FileSource) SampleRate() float64 { return s.sampleRate }

// Channels returns the file's channel count.
func (s *FileSource) Channels() int { return s.channels }

// Start decodes the file on a background goroutine. Done receives nil once
// every sample has been delivered, or the first error.
func (s *FileSource) Start(p analysis.ChunkProcessor) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.done <- s.run(ctx, p)
	}()
	return nil
}

// Stop cancels playback, waits for the decoder goroutine and closes the file.
func (s *FileSource) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.file.Close()
}

// Done delivers the playback outcome.
func (s *FileSource) Done() <-chan error { return s.done }

func (s *FileSource) run(ctx context.Context, p analysis.ChunkProcessor) error {
	buf := &audio.IntBuffer{
		Format:         s.decoder.Format(),
		Data:           make([]int, s.frames*s.channels),
		SourceBitDepth: s.bitDepth,
	}
	interleaved := make([]float32, s.frames*s.channels)
	mono := make([]float32, s.frames)
	scale := 1 / float32(int64(1)<<(s.bitDepth-1))
	// 8-bit PCM is unsigned.
	offset := 0
	if s.bitDepth == 8 {
		offset = 128
	}

	var ticker *time.Ticker
	if s.realtime {
		period := time.Duration(float64(s.frames) / s.sampleRate * float64(time.Second))
		ticker = time.NewTicker(period)
		defer ticker.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := s.decoder.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to decode WAV data: %w", err)
		}
		if n == 0 {
			return nil
		}

		samples := interleaved[:n]
		for i, v := range buf.Data[:n] {
			samples[i] = float32(v-offset) * scale
		}
		chunk := firstChannel(mono, samples, s.channels)
		s.gate.Apply(chunk)

		if _, err := p.OnChunk(chunk); err != nil {
			return err
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
}

// firstChannel copies channel 0 of interleaved into dst.
func firstChannel(dst, interleaved []float32, channels int) []float32 {
	if channels == 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	dst = dst[:frames]
	for i := range dst {
		dst[i] = interleaved[i*channels]
	}
	return dst
}
