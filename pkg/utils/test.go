// Package utils holds signal generators and fakes shared by the package tests.
package utils

import (
	"math"
	"sync"
)

// MockTransport records every payload it is asked to send.
type MockTransport struct {
	mu     sync.Mutex
	Sent   []any
	closed bool
}

// Send stores the data for later inspection instead of transmitting.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, data)
	m.mu.Unlock()
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Len returns the number of recorded payloads.
func (m *MockTransport) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// GenerateSineWave returns size samples of a sine at frequency Hz with the
// given peak amplitude.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with its 2nd and 3rd
// harmonics, peaking below full scale.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// SplitChunks cuts samples into consecutive chunks of the given sizes,
// cycling through sizes until the input is exhausted. The last chunk may be
// short and a zero size produces an empty chunk.
func SplitChunks(samples []float32, sizes ...int) [][]float32 {
	total := 0
	for _, n := range sizes {
		total += max(n, 0)
	}
	if total == 0 {
		return [][]float32{samples}
	}
	var chunks [][]float32
	for i, pos := 0, 0; pos < len(samples); i++ {
		n := min(max(sizes[i%len(sizes)], 0), len(samples)-pos)
		chunks = append(chunks, samples[pos:pos+n])
		pos += n
	}
	return chunks
}

// FindPeakBin returns the index of the largest magnitude within
// [startBin, endBin], clamped to the slice bounds.
func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
