// SPDX-License-Identifier: MIT
//
// Package fft turns fixed-length sample windows into magnitude spectra. The
// transform plan depends only on the window size and is built once when the
// Processor is created, then reused for every window.
package fft

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	applog "tuner/internal/log"
	"tuner/pkg/bitint"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// ErrNonFiniteSample is returned when a window contains NaN or ±Inf. Malformed
// audio is a configuration-level failure and ends the capture session.
var ErrNonFiniteSample = errors.New("fft: window contains a non-finite sample")

// Spectrum holds one magnitude per frequency bin. Bin i corresponds to
// i * sampleRate / len(Spectrum) Hz. It is never mutated after Transform
// returns it.
type Spectrum []float32

// Backend selects the FFT implementation.
type Backend int

const (
	Gonum Backend = iota // gonum.org/v1/gonum/dsp/fourier
	GoDSP                // github.com/mjibson/go-dsp/fft
)

func (b Backend) String() string {
	switch b {
	case Gonum:
		return "gonum"
	case GoDSP:
		return "godsp"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// ParseBackend converts a case-insensitive backend name.
func ParseBackend(name string) (Backend, error) {
	switch strings.ToLower(name) {
	case "", "gonum":
		return Gonum, nil
	case "godsp", "go-dsp":
		return GoDSP, nil
	default:
		return Gonum, fmt.Errorf("unknown FFT backend: '%s'", name)
	}
}

// WindowFunc selects the taper applied to each window before transforming.
type WindowFunc int

const (
	Rectangular WindowFunc = iota // no taper, raw samples
	BartlettHann
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

var windowNames = map[WindowFunc]string{
	Rectangular:     "rectangular",
	BartlettHann:    "bartletthann",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	Hann:            "hann",
	Hamming:         "hamming",
	Lanczos:         "lanczos",
	Nuttall:         "nuttall",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a case-insensitive window name. Unknown names
// return Rectangular and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "", "none", "rect", "rectangular":
		return Rectangular, nil
	case "hanning":
		return Hann, nil
	}
	for w, n := range windowNames {
		if n == strings.ToLower(name) {
			return w, nil
		}
	}
	return Rectangular, fmt.Errorf("unknown FFT window function name: '%s'", name)
}

// coefficients returns the taper for size points.
func (w WindowFunc) coefficients(size int) []float64 {
	coeffs := make([]float64, size)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch w {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	}
	return coeffs
}

// Option configures a Processor.
type Option func(*Processor)

// WithBackend selects the FFT implementation.
func WithBackend(b Backend) Option {
	return func(p *Processor) { p.backend = b }
}

// WithWindow applies a taper before the transform. The default is
// Rectangular, which leaves samples untouched.
func WithWindow(w WindowFunc) Option {
	return func(p *Processor) { p.windowType = w }
}

// fftWorkspace holds buffers reused across windows.
type fftWorkspace struct {
	input  []complex128 // windowed samples with zero imaginary part
	output []complex128 // complex coefficients
	taper  []float64    // window coefficients, nil for Rectangular
}

// Processor performs the forward transform. It reuses its workspace and must
// only be driven from one goroutine at a time, which the serialized audio
// callback guarantees.
type Processor struct {
	size       int
	backend    Backend
	windowType WindowFunc
	plan       *fourier.CmplxFFT
	workspace  fftWorkspace
}

// NewProcessor builds the transform plan for windows of size samples. The size
// must be a power of two.
func NewProcessor(size int, opts ...Option) (*Processor, error) {
	if !bitint.IsPowerOfTwo(size) {
		return nil, fmt.Errorf("fft size must be a power of 2, got %d (try %d)",
			size, bitint.NextPowerOfTwo(size))
	}

	p := &Processor{size: size}
	for _, opt := range opts {
		opt(p)
	}

	switch p.backend {
	case Gonum:
		p.plan = fourier.NewCmplxFFT(size)
	case GoDSP:
		dspfft.EnsureRadix2Factors(size)
	default:
		return nil, fmt.Errorf("unsupported FFT backend %v", p.backend)
	}

	p.workspace = fftWorkspace{
		input:  make([]complex128, size),
		output: make([]complex128, size),
	}
	if p.windowType != Rectangular {
		p.workspace.taper = p.windowType.coefficients(size)
	}

	applog.Debugf("FFT: Initializing processor (Size: %d, Backend: %s, Window: %s)",
		size, p.backend, p.windowType)
	return p, nil
}

// Size returns the number of samples per window, which is also the number of
// bins per Spectrum.
func (p *Processor) Size() int { return p.size }

// Backend returns the configured FFT implementation.
func (p *Processor) Backend() Backend { return p.backend }

// Window returns the configured taper.
func (p *Processor) Window() WindowFunc { return p.windowType }

// Resolution returns the width of one bin in Hz for the given sample rate.
func (p *Processor) Resolution(sampleRate float64) float32 {
	return float32(sampleRate / float64(p.size))
}

// BinFrequency returns the frequency in Hz of bin i, or 0 when i is out of
// range.
func (p *Processor) BinFrequency(i int, sampleRate float64) float64 {
	if i < 0 || i >= p.size {
		return 0
	}
	return float64(i) * sampleRate / float64(p.size)
}

// Transform returns the magnitude spectrum of one window of samples. A window
// whose length differs from Size is a programming error and panics.
func (p *Processor) Transform(samples []float32) (Spectrum, error) {
	out := make(Spectrum, p.size)
	if err := p.TransformInto(out, samples); err != nil {
		return nil, err
	}
	return out, nil
}

// TransformInto writes the magnitude spectrum of samples into dst, which must
// have Size elements. With the gonum backend it does not allocate.
func (p *Processor) TransformInto(dst Spectrum, samples []float32) error {
	if len(samples) != p.size {
		panic(fmt.Sprintf("fft: window length %d does not match fft size %d", len(samples), p.size))
	}
	if len(dst) != p.size {
		panic(fmt.Sprintf("fft: spectrum length %d does not match fft size %d", len(dst), p.size))
	}

	in := p.workspace.input
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w (index %d)", ErrNonFiniteSample, i)
		}
		if p.workspace.taper != nil {
			v *= p.workspace.taper[i]
		}
		in[i] = complex(v, 0)
	}

	coeffs := p.workspace.output
	switch p.backend {
	case GoDSP:
		coeffs = dspfft.FFT(in)
	default:
		p.plan.Coefficients(coeffs, in)
	}

	for i, c := range coeffs {
		dst[i] = float32(cmplx.Abs(c))
	}
	return nil
}
