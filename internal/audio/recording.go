package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	applog "tuner/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrRecorderClosed   = errors.New("recorder closed")
)

const wavFormatPCM = 1

// Recorder writes interleaved float samples to a PCM WAV file.
type Recorder struct {
	mu        sync.Mutex
	file      *os.File
	encoder   *wav.Encoder
	sampleBuf *audio.IntBuffer // Reusable buffer for format conversion
	scale     float64
	maxValue  int
	frames    int64
	channels  int
}

// NewRecorder creates path and prepares a WAV encoder. bitDepth must be 16,
// 24 or 32.
func NewRecorder(path string, sampleRate, channels, bitDepth int) (*Recorder, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recording directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}

	maxValue := 1<<(bitDepth-1) - 1
	return &Recorder{
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, bitDepth, channels, wavFormatPCM),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: bitDepth,
		},
		scale:    float64(maxValue),
		maxValue: maxValue,
		channels: channels,
	}, nil
}

// Write appends interleaved samples in [-1, 1]; values outside are clipped.
func (r *Recorder) Write(samples []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return ErrRecorderClosed
	}

	if cap(r.sampleBuf.Data) < len(samples) {
		r.sampleBuf.Data = make([]int, len(samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(samples)]
	for i, s := range samples {
		v := int(math.Round(float64(s) * r.scale))
		v = min(max(v, -r.maxValue), r.maxValue)
		r.sampleBuf.Data[i] = v
	}

	if err := r.encoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("error writing to WAV file: %w", err)
	}
	r.frames += int64(len(samples) / r.channels)
	return nil
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Path returns the file being written.
func (r *Recorder) Path() string { return r.file.Name() }

// Close finalises the WAV header and closes the file. It is safe to call
// more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return nil
	}
	encErr := r.encoder.Close()
	r.encoder = nil
	fileErr := r.file.Close()
	return errors.Join(encErr, fileErr)
}

// RecordingPath returns an explicit file when set, otherwise a timestamped
// name inside dir.
func RecordingPath(dir, file string, now time.Time) string {
	if file != "" {
		return file
	}
	return filepath.Join(dir, fmt.Sprintf("tuner-%s.wav", now.Format("20060102-150405")))
}

// StartRecording begins writing the raw input of the engine to filename.
func (e *Engine) StartRecording(filename string, bitDepth int) error {
	if e.recorder.Load() != nil {
		return ErrAlreadyRecording
	}

	rec, err := NewRecorder(filename, int(e.sampleRate), e.channels, bitDepth)
	if err != nil {
		return err
	}
	if !e.recorder.CompareAndSwap(nil, rec) {
		rec.Close()
		os.Remove(filename)
		return ErrAlreadyRecording
	}

	applog.Infof("Audio: Recording to %s (%d-bit)", filename, bitDepth)
	return nil
}

// StopRecording finalises the current recording, if any.
func (e *Engine) StopRecording() error {
	rec := e.recorder.Swap(nil)
	if rec == nil {
		return nil
	}
	if err := rec.Close(); err != nil {
		return fmt.Errorf("failed to finalise recording: %w", err)
	}
	applog.Infof("Audio: Recorded %d frames to %s", rec.Frames(), rec.Path())
	return nil
}

// IsRecording reports whether input is being written to a file.
func (e *Engine) IsRecording() bool {
	return e.recorder.Load() != nil
}
