package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/equalizer"
)

const (
	ogWidth  = 1200
	ogHeight = 630
	ogMargin = 80.0
)

func loadFace(ttf []byte, size float64) (font.Face, error) {
	f, err := truetype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: size, Hinting: font.HintingFull}), nil
}

// equalizerSnapshot plays the synthesized pad for a few seconds and returns
// the bar heights it settles on.
func equalizerSnapshot() ([]float64, error) {
	pad, err := equalizer.SynthPad(padSampleRate)
	if err != nil {
		return nil, err
	}
	defer pad.Close()
	deck := equalizer.NewDeck(pad.Streamer, padSampleRate, 30)
	a := equalizer.NewAnalyzer(deck.Node(), nil)
	for i := 0; i < 90 && deck.Pull(); i++ {
		a.Frame()
	}
	return a.Heights(), nil
}

// renderOGImage draws the social preview card for tbl as PNG.
func renderOGImage(w io.Writer, tbl *content.Table) error {
	title, err := loadFace(gobold.TTF, 60)
	if err != nil {
		return err
	}
	body, err := loadFace(goregular.TTF, 32)
	if err != nil {
		return err
	}
	mono, err := loadFace(gomono.TTF, 22)
	if err != nil {
		return err
	}

	dc := gg.NewContext(ogWidth, ogHeight)
	dc.SetHexColor("#101216")
	dc.Clear()

	name, _, _ := strings.Cut(tbl.Title, "·")
	dc.SetFontFace(title)
	dc.SetHexColor("#f4f1ea")
	dc.DrawStringWrapped(strings.TrimSpace(name), ogMargin, 110, 0, 0, ogWidth-2*ogMargin, 1.2, gg.AlignLeft)

	// the completed hook, as the intro leaves it on screen
	done := completedFrame(tbl)
	var lines []string
	for _, p := range done.Hook {
		for _, l := range p {
			lines = append(lines, l.Text)
		}
	}
	dc.SetFontFace(body)
	dc.SetHexColor("#c9c4b8")
	dc.DrawStringWrapped(strings.Join(lines, " "), ogMargin, 230, 0, 0, ogWidth-2*ogMargin-260, 1.5, gg.AlignLeft)

	bars, err := equalizerSnapshot()
	if err != nil {
		return err
	}
	const barW, gap, maxH = 36.0, 18.0, 220.0
	x := ogWidth - ogMargin - float64(len(bars))*(barW+gap) + gap
	base := float64(ogHeight) - ogMargin
	dc.SetHexColor("#e0a458")
	for i, h := range bars {
		bh := h * maxH
		dc.DrawRoundedRectangle(x+float64(i)*(barW+gap), base-bh, barW, bh, 6)
	}
	dc.Fill()

	dc.SetFontFace(mono)
	dc.SetHexColor("#7d786d")
	dc.DrawStringWrapped(strings.TrimSpace(tbl.Description), ogMargin, base, 0, 1, ogWidth-2*ogMargin-300, 1.4, gg.AlignLeft)

	return dc.EncodePNG(w)
}
