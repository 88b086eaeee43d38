// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// Gate silences chunks whose peak amplitude stays below a threshold. Gated
// chunks are zeroed rather than dropped so the windowing stays aligned with
// the sample clock.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Uint32 // math.Float32bits of the threshold
}

// NewGate returns a gate with the given threshold. A threshold of 0 leaves
// the gate disabled.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.enabled.Store(threshold > 0)
	return g
}

func (g *Gate) Enable() {
	g.enabled.Store(true)
}

func (g *Gate) Disable() {
	g.enabled.Store(false)
}

func (g *Gate) Enabled() bool {
	return g.enabled.Load()
}

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}
	g.threshold.Store(math.Float32bits(float32(threshold)))
}

// Threshold returns the current noise gate threshold.
func (g *Gate) Threshold() float64 {
	return float64(math.Float32frombits(g.threshold.Load()))
}

// Apply zeroes chunk in place when the gate is enabled and the peak is below
// the threshold. It reports whether the signal passed.
func (g *Gate) Apply(chunk []float32) bool {
	if !g.enabled.Load() {
		return true
	}
	if Peak(chunk) >= math.Float32frombits(g.threshold.Load()) {
		return true
	}
	clear(chunk)
	return false
}

// Peak returns the largest absolute sample value.
func Peak(chunk []float32) float32 {
	var peak float32
	for _, s := range chunk {
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}
