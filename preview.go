package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/equalizer"
	"github.com/Zachkp/folio/internal/highlight"
	"github.com/Zachkp/folio/internal/session"
	"github.com/Zachkp/folio/internal/typewriter"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Play the intro and the equalizer in the terminal",
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().String("lang", string(content.Default), "language to start with")
	previewCmd.Flags().String("track", "", "WAV file for the equalizer (default: synthesized pad)")
}

const (
	previewFPS = 30
	barRows    = 8
)

var (
	titleStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e0a458"))
	contextStyle    = lipgloss.NewStyle().Faint(true)
	typewriterStyle = lipgloss.NewStyle().Underline(true)
	finalStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e0a458"))
	permanentStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#8fb8de"))
	barStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0a458"))
	helpStyle       = lipgloss.NewStyle().Faint(true)
)

type previewTickMsg time.Time

func previewTick() tea.Cmd {
	return tea.Tick(time.Second/previewFPS, func(t time.Time) tea.Msg { return previewTickMsg(t) })
}

type previewModel struct {
	catalog *content.Catalog
	lang    content.Lang
	flags   *session.MemoryStore
	player  *typewriter.Player

	deck     *equalizer.Deck
	analyzer *equalizer.Analyzer
	muted    bool
	bars     []float64
}

func newPreviewModel(catalog *content.Catalog, lang content.Lang, track *equalizer.Track) *previewModel {
	m := &previewModel{catalog: catalog, lang: lang}
	m.replay()
	if track != nil {
		m.deck = equalizer.NewDeck(track.Streamer, track.Format.SampleRate, previewFPS)
		m.analyzer = equalizer.NewAnalyzer(m.deck.Node(), nil)
	} else {
		m.analyzer = equalizer.NewAnalyzer(nil, nil)
	}
	m.bars = m.analyzer.Heights()
	return m
}

// replay forgets the seen flag and starts over from idle.
func (m *previewModel) replay() {
	m.flags = session.NewMemoryStore()
	seen := session.NewFlag(m.flags, "preview", session.IntroSeen, zerolog.Nop())
	m.player = typewriter.NewPlayer(m.catalog.Get(m.lang).Machine(), seen)
}

func (m *previewModel) Init() tea.Cmd {
	return previewTick()
}

func (m *previewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case previewTickMsg:
		m.player.Advance(time.Time(msg))
		if m.deck != nil && !m.muted && m.deck.Pull() {
			m.bars = m.analyzer.Frame()
		}
		return m, previewTick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "enter":
			if m.player.State().Phase == typewriter.PhaseIdle {
				m.player.Trigger(time.Now())
			} else {
				m.player.Skip()
			}
		case "l":
			// a language switch is a content change
			m.lang = nextLang(m.lang)
			m.player.Reset(m.catalog.Get(m.lang).Machine())
		case "r":
			m.replay()
		case "m":
			m.toggleMusic()
		}
	}
	return m, nil
}

// toggleMusic pauses the deck and detaches the analyzer, or resumes both.
func (m *previewModel) toggleMusic() {
	if m.deck == nil {
		return
	}
	m.muted = !m.muted
	if m.muted {
		m.analyzer.SetSource(nil)
	} else {
		m.analyzer.SetSource(m.deck.Node())
	}
}

func nextLang(l content.Lang) content.Lang {
	langs := content.Languages()
	for i, x := range langs {
		if x == l {
			return langs[(i+1)%len(langs)]
		}
	}
	return content.Default
}

func styledLine(l typewriter.Line) string {
	runes := []rune(l.Text)
	var b strings.Builder
	for _, s := range l.Spans {
		if s.Start >= len(runes) {
			break
		}
		seg := string(runes[s.Start:min(s.End, len(runes))])
		switch s.Kind {
		case highlight.KindTypewriter:
			seg = typewriterStyle.Render(seg)
		case highlight.KindFinal:
			seg = finalStyle.Render(seg)
		case highlight.KindPermanent:
			seg = permanentStyle.Render(seg)
		}
		b.WriteString(seg)
	}
	if len(l.Spans) == 0 {
		b.WriteString(l.Text)
	}
	return b.String()
}

func (m *previewModel) viewBars() string {
	rows := make([]string, barRows)
	for r := 0; r < barRows; r++ {
		level := float64(barRows-r) / barRows
		var row strings.Builder
		for _, h := range m.bars {
			if h >= level-0.5/barRows {
				row.WriteString("██ ")
			} else {
				row.WriteString("   ")
			}
		}
		rows[r] = barStyle.Render(row.String())
	}
	return strings.Join(rows, "\n")
}

func (m *previewModel) View() string {
	f := m.player.Frame()
	tbl := m.catalog.Get(m.lang)

	var b strings.Builder
	b.WriteString(titleStyle.Render(tbl.Title))
	b.WriteString(fmt.Sprintf("  [%s] %s\n\n", m.lang, f.Phase))

	if f.Context != nil {
		b.WriteString(contextStyle.Render(styledLine(*f.Context)) + "\n\n")
	}
	for _, p := range f.Hook {
		for _, l := range p {
			b.WriteString(styledLine(l) + "\n")
		}
		b.WriteString("\n")
	}
	if f.Phase.Animating() && f.Current.Text != "" {
		b.WriteString(styledLine(f.Current) + "▌\n\n")
	}

	eq := m.viewBars()
	b.WriteString(eq + "\n\n")
	b.WriteString(helpStyle.Render("space: start/skip · l: language · m: music · r: replay · q: quit"))
	return b.String()
}

func runPreview(cmd *cobra.Command, args []string) error {
	langFlag, _ := cmd.Flags().GetString("lang")
	trackPath, _ := cmd.Flags().GetString("track")

	lang, ok := content.ParseLang(langFlag)
	if !ok {
		return fmt.Errorf("unsupported language %q", langFlag)
	}
	catalog, err := content.LoadCatalog()
	if err != nil {
		return err
	}

	var track *equalizer.Track
	if trackPath != "" {
		track, err = equalizer.OpenTrack(trackPath)
	} else {
		track, err = equalizer.SynthPad(padSampleRate)
	}
	if err != nil {
		return err
	}
	defer track.Close()

	_, err = tea.NewProgram(newPreviewModel(catalog, lang, track), tea.WithAltScreen()).Run()
	return err
}
