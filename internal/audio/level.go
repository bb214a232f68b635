package audio

import (
	"math"
	"sort"
)

const (
	// LevelHistory is how many recent RMS values calibrate the meter.
	LevelHistory = 30
	// DefaultReference is used until the meter has seen any frame.
	DefaultReference = 1500.0
	// MinReference keeps near-silence from reading as full scale.
	MinReference = 100.0
)

// RMS returns the root mean square of samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// LevelMeter turns frame RMS into a 0-100 reading relative to the 95th
// percentile of recent frames, so the meter follows the ambient level.
type LevelMeter struct {
	history []float64
}

// NewLevelMeter returns a meter with an empty history.
func NewLevelMeter() *LevelMeter {
	return &LevelMeter{history: make([]float64, 0, LevelHistory)}
}

// Reference is the value an RMS must reach to read 100.
func (m *LevelMeter) Reference() float64 {
	if len(m.history) == 0 {
		return DefaultReference
	}
	return math.Max(MinReference, percentile(m.history, 95))
}

// Observe returns the level for rms against the current reference and then
// records rms, evicting the oldest value past LevelHistory.
func (m *LevelMeter) Observe(rms float64) float64 {
	level := rms / m.Reference() * 100
	if m.history == nil {
		m.history = make([]float64, 0, LevelHistory)
	}
	if len(m.history) >= LevelHistory {
		copy(m.history, m.history[1:])
		m.history = m.history[:LevelHistory-1]
	}
	m.history = append(m.history, rms)
	return math.Max(0, math.Min(100, level))
}

// Len reports how many values are in the history.
func (m *LevelMeter) Len() int { return len(m.history) }

// percentile interpolates linearly between closest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
