package equalizer

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/gopxl/beep"
	"gonum.org/v1/gonum/dsp/fourier"
)

// DefaultFFTSize matches the visualizer's analysis node.
const DefaultFFTSize = 2048

// Node is a frequency analysis node fed with the samples that are played. It
// keeps the last FFT-size mono samples and, on request, produces a smoothed,
// Blackman-windowed magnitude spectrum mapped from [MinDecibels, MaxDecibels]
// onto bytes.
type Node struct {
	mu         sync.Mutex
	sampleRate float64
	size       int
	ring       []float64
	pos        int

	window   []float64
	fft      *fourier.FFT
	frame    []float64
	coeffs   []complex128
	smoothed []float64

	Smoothing   float64
	MinDecibels float64
	MaxDecibels float64
}

// NewNode creates a node for a stream at sampleRate. size must be a power of
// two; zero means DefaultFFTSize.
func NewNode(sampleRate float64, size int) *Node {
	if size <= 0 {
		size = DefaultFFTSize
	}
	n := &Node{
		sampleRate:  sampleRate,
		size:        size,
		ring:        make([]float64, size),
		window:      blackman(size),
		fft:         fourier.NewFFT(size),
		frame:       make([]float64, size),
		coeffs:      make([]complex128, size/2+1),
		smoothed:    make([]float64, size/2),
		Smoothing:   0.8,
		MinDecibels: -100,
		MaxDecibels: -30,
	}
	return n
}

// BinCount is half the FFT size.
func (n *Node) BinCount() int { return n.size / 2 }

// SampleRate of the analysed stream.
func (n *Node) SampleRate() float64 { return n.sampleRate }

// Write appends stereo samples, mixed down to mono.
func (n *Node) Write(samples [][2]float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range samples {
		n.ring[n.pos] = (s[0] + s[1]) / 2
		n.pos = (n.pos + 1) % n.size
	}
}

// ByteFrequencyData fills dst with the current spectrum, one byte per bin.
func (n *Node) ByteFrequencyData(dst []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for i := 0; i < n.size; i++ {
		n.frame[i] = n.ring[(n.pos+i)%n.size] * n.window[i]
	}
	n.coeffs = n.fft.Coefficients(n.coeffs, n.frame)

	span := n.MaxDecibels - n.MinDecibels
	for k := 0; k < len(n.smoothed) && k < len(dst); k++ {
		mag := cmplx.Abs(n.coeffs[k]) / float64(n.size)
		n.smoothed[k] = n.Smoothing*n.smoothed[k] + (1-n.Smoothing)*mag

		if n.smoothed[k] <= 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(n.smoothed[k])
		dst[k] = byte(clamp(255*(db-n.MinDecibels)/span, 0, 255))
	}
}

func blackman(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(size)
		w[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return w
}

// Tap passes a stream through unchanged while feeding its samples to a Node.
type Tap struct {
	beep.Streamer
	node *Node
}

// NewTap wraps s so everything streamed from it reaches node.
func NewTap(s beep.Streamer, node *Node) *Tap {
	return &Tap{Streamer: s, node: node}
}

func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.Streamer.Stream(samples)
	if n > 0 {
		t.node.Write(samples[:n])
	}
	return n, ok
}
