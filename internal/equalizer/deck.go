package equalizer

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/wav"
)

// Deck advances a stream by one display frame's worth of samples per Pull,
// pushing them through a Tap into the analysis node.
type Deck struct {
	tap      *Tap
	perFrame int
	buf      [][2]float64
	node     *Node
}

// NewDeck creates a deck playing s at rate, fps frames per second.
func NewDeck(s beep.Streamer, rate beep.SampleRate, fps int) *Deck {
	if fps <= 0 {
		fps = 30
	}
	node := NewNode(float64(rate), DefaultFFTSize)
	perFrame := rate.N(time.Second / time.Duration(fps))
	return &Deck{
		tap:      NewTap(s, node),
		perFrame: perFrame,
		buf:      make([][2]float64, perFrame),
		node:     node,
	}
}

// Node returns the deck's analysis node.
func (d *Deck) Node() *Node { return d.node }

// Pull streams one frame of samples. It returns false once the stream is
// drained.
func (d *Deck) Pull() bool {
	filled := 0
	for filled < len(d.buf) {
		n, ok := d.tap.Stream(d.buf[filled:])
		filled += n
		if !ok {
			return filled > 0
		}
	}
	return true
}

// Err reports the stream error, if any.
func (d *Deck) Err() error { return d.tap.Err() }

// Track is a decoded, looping ambient track.
type Track struct {
	Streamer beep.Streamer
	Format   beep.Format
	close    func() error
}

// Close releases the underlying file.
func (t *Track) Close() error {
	if t.close == nil {
		return nil
	}
	return t.close()
}

// OpenTrack decodes a WAV file and loops it forever.
func OpenTrack(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	s, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode track %s: %w", path, err)
	}
	return &Track{Streamer: beep.Loop(-1, s), Format: format, close: s.Close}, nil
}

// SynthPad returns an endless ambient pad: a slow-breathing chord spread
// across all four bands, with a soft pulse so the bars have movement.
func SynthPad(rate beep.SampleRate) (*Track, error) {
	var voices []beep.Streamer
	for _, freq := range []float64{110, 164.81, 329.63, 659.25, 1318.51, 1760} {
		tone, err := generators.SineTone(rate, freq)
		if err != nil {
			return nil, fmt.Errorf("pad tone %.2fHz: %w", freq, err)
		}
		voices = append(voices, tone)
	}
	mix := beep.Mix(voices...)

	var t int
	gain := float64(len(voices))
	pad := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		n, ok := mix.Stream(samples)
		for i := 0; i < n; i++ {
			sec := float64(t) / float64(rate)
			breath := 0.55 + 0.45*math.Sin(2*math.Pi*0.08*sec)
			pulse := math.Pow(math.Max(0, math.Sin(2*math.Pi*1.2*sec)), 8)
			v := breath / gain
			samples[i][0] *= v * (0.6 + 0.4*pulse)
			samples[i][1] *= v * (0.6 + 0.4*pulse)
			t++
		}
		return n, ok
	})

	return &Track{
		Streamer: pad,
		Format:   beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2},
	}, nil
}

// Run analyses one frame per tick until ctx is done, the deck is drained or
// sink fails. A nil deck leaves the analyzer without input; heights are still
// delivered.
func Run(ctx context.Context, ticks <-chan time.Time, deck *Deck, a *Analyzer, sink func([]float64) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
		}

		if deck != nil && !deck.Pull() {
			if err := deck.Err(); err != nil {
				return fmt.Errorf("ambient stream: %w", err)
			}
			return nil
		}
		if err := sink(a.Frame()); err != nil {
			return err
		}
	}
}
