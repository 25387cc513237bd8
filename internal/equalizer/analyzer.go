// Package equalizer turns frequency snapshots of the ambient track into the
// four bar heights of the music toggle.
package equalizer

import (
	"math"
	"sync"
)

const (
	// per-frame rate at which a stale calibration extreme relaxes toward the
	// current value
	calibrationDecay = 0.0003
	// minimum max-min window on the 0-255 scale
	minSpread = 25.0

	swellThreshold = 0.015
	swellGain      = 1.5
	swellCap       = 0.3
	swellDecay     = 0.94

	phaseAmplitude = 0.03

	baseHeight  = 0.15
	rangeHeight = 0.7
	minHeight   = 0.12
	maxHeight   = 1.0
	smoothing   = 0.15
)

// Band is a frequency range with its seed calibration on the 0-255 scale.
type Band struct {
	LoHz    float64 `json:"loHz"`
	HiHz    float64 `json:"hiHz"`
	Floor   float64 `json:"floor"`
	Ceiling float64 `json:"ceiling"`
}

// DefaultBands returns bass, low-mid, mid and presence bands.
func DefaultBands() []Band {
	return []Band{
		{LoHz: 60, HiHz: 200, Floor: 90, Ceiling: 200},
		{LoHz: 200, HiHz: 500, Floor: 70, Ceiling: 180},
		{LoHz: 500, HiHz: 1200, Floor: 50, Ceiling: 160},
		{LoHz: 1200, HiHz: 3000, Floor: 30, Ceiling: 140},
	}
}

// FrequencySource produces magnitude-per-bin snapshots, 0-255 per bin.
type FrequencySource interface {
	BinCount() int
	SampleRate() float64
	ByteFrequencyData(dst []byte)
}

// BandSample is the per-band analysis state after a frame.
type BandSample struct {
	Raw        float64 `json:"raw"`
	Floor      float64 `json:"floor"`
	Ceiling    float64 `json:"ceiling"`
	Normalized float64 `json:"normalized"`
	Swell      float64 `json:"swell"`
	Target     float64 `json:"target"`
	Height     float64 `json:"height"`
}

// Analyzer keeps the running calibration of every band.
type Analyzer struct {
	mu      sync.Mutex
	src     FrequencySource
	bands   []Band
	samples []BandSample
	bins    []byte
}

// NewAnalyzer creates an analyzer over src. A nil src is allowed; frames are
// then no-ops until SetSource.
func NewAnalyzer(src FrequencySource, bands []Band) *Analyzer {
	if len(bands) == 0 {
		bands = DefaultBands()
	}
	a := &Analyzer{src: present(src), bands: bands, samples: make([]BandSample, len(bands))}
	for i, b := range bands {
		a.samples[i] = BandSample{Floor: b.Floor, Ceiling: b.Ceiling, Height: minHeight}
	}
	return a
}

// SetSource swaps the frequency source. A nil source stops analysis.
func (a *Analyzer) SetSource(src FrequencySource) {
	a.mu.Lock()
	a.src = present(src)
	a.mu.Unlock()
}

// present folds a nil *Node into a nil interface.
func present(src FrequencySource) FrequencySource {
	if n, ok := src.(*Node); ok && n == nil {
		return nil
	}
	return src
}

// Frame analyses one snapshot and returns the new bar heights.
func (a *Analyzer) Frame() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.src == nil {
		return a.heightsLocked()
	}
	n := a.src.BinCount()
	if n <= 0 {
		return a.heightsLocked()
	}
	if cap(a.bins) < n {
		a.bins = make([]byte, n)
	}
	a.bins = a.bins[:n]
	a.src.ByteFrequencyData(a.bins)

	binHz := a.src.SampleRate() / 2 / float64(n)
	for i, b := range a.bands {
		raw := average(a.bins, binIndex(b.LoHz, binHz, n), binIndex(b.HiHz, binHz, n))
		a.samples[i] = step(a.samples[i], raw, i)
	}
	return a.heightsLocked()
}

// Heights returns the current bar heights.
func (a *Analyzer) Heights() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.heightsLocked()
}

// Bands returns a copy of the per-band state.
func (a *Analyzer) Bands() []BandSample {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]BandSample(nil), a.samples...)
}

func (a *Analyzer) heightsLocked() []float64 {
	out := make([]float64, len(a.samples))
	for i, s := range a.samples {
		out[i] = s.Height
	}
	return out
}

func step(s BandSample, raw float64, index int) BandSample {
	prev := s.Normalized
	s.Raw = raw

	if raw < s.Floor {
		s.Floor = raw
	} else {
		s.Floor += (raw - s.Floor) * calibrationDecay
	}
	if raw > s.Ceiling {
		s.Ceiling = raw
	} else {
		s.Ceiling -= (s.Ceiling - raw) * calibrationDecay
	}
	if spread := s.Ceiling - s.Floor; spread < minSpread {
		mid := (s.Ceiling + s.Floor) / 2
		s.Floor = mid - minSpread/2
		s.Ceiling = mid + minSpread/2
	}

	s.Normalized = clamp((raw-s.Floor)/(s.Ceiling-s.Floor), 0, 1)

	if delta := s.Normalized - prev; delta > swellThreshold {
		s.Swell = math.Min(swellCap, s.Swell+delta*swellGain)
	} else {
		s.Swell *= swellDecay
	}

	s.Target = clamp(baseHeight+s.Normalized*rangeHeight+s.Swell+phaseOffset(index), minHeight, maxHeight)
	s.Height += (s.Target - s.Height) * smoothing
	return s
}

// phaseOffset keeps bars from moving in lockstep on correlated input.
func phaseOffset(index int) float64 {
	return phaseAmplitude * math.Sin(float64(index)*2.4+0.3)
}

func binIndex(hz, binHz float64, n int) int {
	i := int(math.Round(hz / binHz))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func average(bins []byte, lo, hi int) float64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	var sum float64
	for _, v := range bins[lo : hi+1] {
		sum += float64(v)
	}
	return sum / float64(hi-lo+1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
