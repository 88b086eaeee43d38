// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tuner/internal/config"

	"github.com/go-audio/wav"
)

const (
	testSampleRate = 44100
	testFrameSize  = 512
)

func newTestEngine(channels int) *Engine {
	return newEngine(config.AudioConfig{
		SampleRate:      testSampleRate,
		InputChannels:   channels,
		FramesPerBuffer: testFrameSize,
	}, channels)
}

func TestRecorderRoundTrip(t *testing.T) {
	tests := []struct {
		bitDepth int
		maxValue int
	}{
		{16, 32767},
		{24, 8388607},
		{32, 2147483647},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dbit", tt.bitDepth), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.wav")
			rec, err := NewRecorder(path, testSampleRate, 2, tt.bitDepth)
			if err != nil {
				t.Fatalf("NewRecorder: %v", err)
			}

			input := []float32{0, 0.5, -0.5, 1, -1, 2, -2, 0.25}
			if err := rec.Write(input); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if got := rec.Frames(); got != 4 {
				t.Errorf("Frames() = %d, want 4", got)
			}
			if err := rec.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer f.Close()

			dec := wav.NewDecoder(f)
			if !dec.IsValidFile() {
				t.Fatal("recorded file is not a valid WAV file")
			}
			if int(dec.BitDepth) != tt.bitDepth || dec.NumChans != 2 || dec.SampleRate != testSampleRate {
				t.Errorf("format = %d-bit %d channels %d Hz", dec.BitDepth, dec.NumChans, dec.SampleRate)
			}

			buf, err := dec.FullPCMBuffer()
			if err != nil {
				t.Fatalf("FullPCMBuffer: %v", err)
			}
			m := tt.maxValue
			half := int(float64(m)*0.5 + 0.5)
			want := []int{0, half, -half, m, -m, m, -m, int(float64(m)*0.25 + 0.5)}
			if len(buf.Data) != len(want) {
				t.Fatalf("decoded %d samples, want %d", len(buf.Data), len(want))
			}
			for i := range want {
				if buf.Data[i] != want[i] {
					t.Errorf("sample %d = %d, want %d", i, buf.Data[i], want[i])
				}
			}
		})
	}
}

func TestRecorderValidation(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewRecorder(filepath.Join(dir, "a.wav"), testSampleRate, 1, 8); err == nil {
		t.Error("expected error for 8-bit recording")
	}
	if _, err := NewRecorder(filepath.Join(dir, "b.wav"), testSampleRate, 0, 16); err == nil {
		t.Error("expected error for zero channels")
	}
}

func TestRecorderCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.wav")
	rec, err := NewRecorder(path, testSampleRate, 1, 16)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	defer rec.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("recording file not created: %v", err)
	}
}

func TestRecorderWriteAfterClose(t *testing.T) {
	rec, err := NewRecorder(filepath.Join(t.TempDir(), "out.wav"), testSampleRate, 1, 16)
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if err := rec.Write([]float32{0.1}); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("Write after Close = %v, want ErrRecorderClosed", err)
	}
}

func TestEngineRecordingStartStop(t *testing.T) {
	engine := newTestEngine(2)
	filename := filepath.Join(t.TempDir(), "session.wav")

	if engine.IsRecording() {
		t.Fatal("engine should not be recording initially")
	}
	if err := engine.StartRecording(filename, 16); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !engine.IsRecording() {
		t.Error("engine should be recording")
	}
	if err := engine.StartRecording(filename, 16); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second StartRecording = %v, want ErrAlreadyRecording", err)
	}

	engine.process(make([]float32, testFrameSize*2))

	if err := engine.StopRecording(); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if engine.IsRecording() {
		t.Error("engine should not be recording after stop")
	}
	if err := engine.StopRecording(); err != nil {
		t.Errorf("StopRecording when idle = %v, want nil", err)
	}

	info, err := os.Stat(filename)
	if err != nil {
		t.Fatalf("recording missing: %v", err)
	}
	// 44 byte header plus 512 stereo 16-bit frames.
	if want := int64(44 + testFrameSize*2*2); info.Size() != want {
		t.Errorf("file size = %d, want %d", info.Size(), want)
	}
}

func TestRecordingPath(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	if got := RecordingPath("rec", "", now); got != filepath.Join("rec", "tuner-20250304-050607.wav") {
		t.Errorf("RecordingPath() = %q", got)
	}
	if got := RecordingPath("rec", "explicit.wav", now); got != "explicit.wav" {
		t.Errorf("RecordingPath() = %q, want explicit.wav", got)
	}
}
