// SPDX-License-Identifier: MIT
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tuner/internal/analysis"
	"tuner/internal/pitch"
	"tuner/pkg/utils"
)

// fakeSource delivers chunks on a goroutine. With infinite set it keeps the
// session open until stopped.
type fakeSource struct {
	chunks   [][]float32
	infinite bool
	startErr error
	stopErr  error

	done    chan error
	stop    chan struct{}
	wg      sync.WaitGroup
	stopped bool
}

func newFakeSource(chunks [][]float32) *fakeSource {
	return &fakeSource{chunks: chunks, done: make(chan error, 1), stop: make(chan struct{})}
}

func (s *fakeSource) SampleRate() float64 { return 44100 }

func (s *fakeSource) Start(p analysis.ChunkProcessor) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for _, c := range s.chunks {
			if _, err := p.OnChunk(c); err != nil {
				s.done <- err
				return
			}
		}
		if s.infinite {
			<-s.stop
			return
		}
		s.done <- nil
	}()
	return nil
}

func (s *fakeSource) Stop() error {
	close(s.stop)
	s.wg.Wait()
	s.stopped = true
	return s.stopErr
}

func (s *fakeSource) Done() <-chan error { return s.done }

func newController(t *testing.T) *analysis.Controller {
	t.Helper()
	c, err := analysis.NewController(analysis.Options{SampleRate: 44100, FFTSize: 1024})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRunFiniteSource(t *testing.T) {
	sine := utils.GenerateSineWave(4096, 44100, 440, 1)
	src := newFakeSource(utils.SplitChunks(sine, 512))
	ctrl := newController(t)

	summary, err := Run(context.Background(), src, ctrl, Options{ID: "fixed"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !src.stopped {
		t.Error("source must be stopped")
	}
	if summary.ID != "fixed" {
		t.Errorf("ID = %q", summary.ID)
	}
	if summary.Stats.Windows != 4 || summary.Stats.Matched != 4 || summary.Stats.Samples != 4096 {
		t.Errorf("stats = %+v", summary.Stats)
	}
	if r, ok := ctrl.Latest(); !ok || r.Note.Name() != "A4" {
		t.Errorf("Latest() = %v, %v", r, ok)
	}
}

func TestRunPipelineFailure(t *testing.T) {
	src := newFakeSource([][]float32{{1}})
	boom := errors.New("boom")
	pipeline := failingPipeline{err: boom}

	_, err := Run(context.Background(), src, pipeline, Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() = %v, want %v", err, boom)
	}
	if !src.stopped {
		t.Error("source must be stopped after a failure")
	}
}

func TestRunDuration(t *testing.T) {
	src := newFakeSource(nil)
	src.infinite = true

	start := time.Now()
	summary, err := Run(context.Background(), src, newController(t), Options{Duration: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("session ran for %v, want about 50ms", elapsed)
	}
	if summary.ID == "" {
		t.Error("a session ID should be generated")
	}
}

func TestRunCancel(t *testing.T) {
	src := newFakeSource(nil)
	src.infinite = true

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	if _, err := Run(ctx, src, newController(t), Options{}); err != nil {
		t.Errorf("Run() = %v, want nil on cancellation", err)
	}
	if !src.stopped {
		t.Error("source must be stopped")
	}
}

func TestRunServices(t *testing.T) {
	t.Run("ErrorEndsSession", func(t *testing.T) {
		src := newFakeSource(nil)
		src.infinite = true
		bad := errors.New("bind failed")

		var sawCancel bool
		_, err := Run(context.Background(), src, newController(t), Options{Services: []Service{
			func(ctx context.Context) error { return bad },
			func(ctx context.Context) error { <-ctx.Done(); sawCancel = true; return nil },
		}})
		if !errors.Is(err, bad) {
			t.Errorf("Run() = %v, want %v", err, bad)
		}
		if !sawCancel {
			t.Error("other services should observe cancellation")
		}
	})

	t.Run("ReturnEndsSession", func(t *testing.T) {
		src := newFakeSource(nil)
		src.infinite = true

		_, err := Run(context.Background(), src, newController(t), Options{Services: []Service{
			func(ctx context.Context) error { return nil },
		}})
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	})
}

func TestRunStartAndStopErrors(t *testing.T) {
	src := newFakeSource(nil)
	src.startErr = errors.New("device busy")
	if _, err := Run(context.Background(), src, newController(t), Options{}); !errors.Is(err, src.startErr) {
		t.Errorf("Run() = %v, want start error", err)
	}

	src = newFakeSource(nil)
	src.stopErr = errors.New("stuck")
	if _, err := Run(context.Background(), src, newController(t), Options{}); !errors.Is(err, src.stopErr) {
		t.Errorf("Run() = %v, want stop error", err)
	}
}

func TestSummaryString(t *testing.T) {
	s := Summary{
		ID:      "abc",
		Elapsed: 1500 * time.Millisecond,
		Stats:   analysis.Stats{Windows: 1234, Samples: 1263616, Matched: 1000},
	}
	got := s.String()
	for _, want := range []string{"abc", "1,234 windows", "1,263,616 samples", "1.5s", "1,000 with a note"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b || len(a) != 36 {
		t.Errorf("NewID() = %q, %q", a, b)
	}
}

type failingPipeline struct{ err error }

func (p failingPipeline) OnChunk([]float32) ([]pitch.Result, error) { return nil, p.err }
func (p failingPipeline) Stats() analysis.Stats                     { return analysis.Stats{} }
