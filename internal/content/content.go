// Package content holds the per-language text tables of the site.
package content

import (
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Zachkp/folio/internal/typewriter"
)

//go:embed locales/*.yaml
var locales embed.FS

// Lang is a supported site language.
type Lang string

const (
	Spanish Lang = "es"
	English Lang = "en"
)

// Default is served when the visitor states no usable preference.
const Default = Spanish

// Languages lists the supported languages, default first.
func Languages() []Lang { return []Lang{Spanish, English} }

// ParseLang accepts a language code such as "en" or "en-US".
func ParseLang(s string) (Lang, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-_"); i >= 0 {
		s = s[:i]
	}
	switch Lang(s) {
	case Spanish, English:
		return Lang(s), true
	}
	return "", false
}

// Negotiate picks the best supported language from an Accept-Language
// header value.
func Negotiate(acceptLanguage string) Lang {
	type choice struct {
		lang Lang
		q    float64
		pos  int
	}
	var choices []choice
	for i, part := range strings.Split(acceptLanguage, ",") {
		tag, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		lang, ok := ParseLang(tag)
		if !ok {
			continue
		}
		q := 1.0
		if v, found := strings.CutPrefix(strings.TrimSpace(params), "q="); found {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				q = f
			}
		}
		if q > 0 {
			choices = append(choices, choice{lang, q, i})
		}
	}
	if len(choices) == 0 {
		return Default
	}
	sort.SliceStable(choices, func(a, b int) bool { return choices[a].q > choices[b].q })
	return choices[0].lang
}

// Intro is the hero typewriter text. Anchor names the word after which the
// first sentence break of the hook gets a long pause; empty disables it.
type Intro struct {
	typewriter.Content `yaml:",inline"`
	Anchor             string `yaml:"anchor"`
}

// Project is one portfolio card.
type Project struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	URL         string   `yaml:"url"`
	Tags        []string `yaml:"tags"`
}

// Entry is one work or education item.
type Entry struct {
	Title   string   `yaml:"title"`
	Org     string   `yaml:"org"`
	Start   string   `yaml:"start"`
	End     string   `yaml:"end"`
	Logo    string   `yaml:"logo"`
	Bullets []string `yaml:"bullets"`
}

// Table is everything the page prints in one language.
type Table struct {
	Lang        Lang              `yaml:"-"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Intro       Intro             `yaml:"intro"`
	About       string            `yaml:"about"`
	Projects    []Project         `yaml:"projects"`
	Work        []Entry           `yaml:"work"`
	Education   []Entry           `yaml:"education"`
	Labels      map[string]string `yaml:"labels"`
}

// Label returns the UI string for key, or key itself when missing.
func (t *Table) Label(key string) string {
	if v, ok := t.Labels[key]; ok {
		return v
	}
	return key
}

// Rules returns the per-character delay rules for this table's intro.
func (t *Table) Rules() []typewriter.Rule {
	rules := typewriter.DefaultRules()
	if t.Intro.Anchor != "" {
		rules = append(rules, typewriter.AnchorPauseRule{Anchor: t.Intro.Anchor})
	}
	return rules
}

// Machine builds the intro state machine for this table.
func (t *Table) Machine(opts ...typewriter.Option) *typewriter.Machine {
	opts = append([]typewriter.Option{typewriter.WithRules(t.Rules()...)}, opts...)
	return typewriter.NewMachine(t.Intro.Content, opts...)
}

// Load parses the embedded table for lang.
func Load(lang Lang) (*Table, error) {
	raw, err := locales.ReadFile("locales/" + string(lang) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("read %s content: %w", lang, err)
	}
	var t Table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse %s content: %w", lang, err)
	}
	t.Lang = lang
	return &t, nil
}

// Catalog holds the tables of every supported language.
type Catalog struct {
	tables map[Lang]*Table
}

// LoadCatalog loads every supported language.
func LoadCatalog() (*Catalog, error) {
	c := &Catalog{tables: make(map[Lang]*Table)}
	for _, lang := range Languages() {
		t, err := Load(lang)
		if err != nil {
			return nil, err
		}
		c.tables[lang] = t
	}
	return c, nil
}

// Get returns the table for lang, falling back to Default.
func (c *Catalog) Get(lang Lang) *Table {
	if t, ok := c.tables[lang]; ok {
		return t
	}
	return c.tables[Default]
}
