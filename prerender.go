package main

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/Zachkp/folio/internal/content"
)

var prerenderCmd = &cobra.Command{
	Use:   "prerender",
	Short: "Render every language to static HTML and a preview image",
	Long: `prerender writes <out>/<lang>/index.html with the intro already in its
completed state, so the page reads fully without JavaScript, and
<out>/<lang>/og.png for link previews.`,
	RunE: runPrerender,
}

func init() {
	prerenderCmd.Flags().StringP("out", "o", "dist", "output directory")
}

func runPrerender(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

	catalog, err := content.LoadCatalog()
	if err != nil {
		return err
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	for _, lang := range content.Languages() {
		tbl := catalog.Get(lang)
		dir := filepath.Join(out, string(lang))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}

		page, err := prerenderPage(tmpl, tbl)
		if err != nil {
			return fmt.Errorf("prerender %s: %w", lang, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "index.html"), page, 0o644); err != nil {
			return err
		}

		var png bytes.Buffer
		if err := renderOGImage(&png, tbl); err != nil {
			return fmt.Errorf("preview image %s: %w", lang, err)
		}
		if err := os.WriteFile(filepath.Join(dir, "og.png"), png.Bytes(), 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", dir)
	}
	return nil
}

// prerenderPage renders the page shell and injects the completed intro into
// its hero block.
func prerenderPage(tmpl *template.Template, tbl *content.Table) ([]byte, error) {
	var shell bytes.Buffer
	if err := tmpl.ExecuteTemplate(&shell, "index.html", pageData(tbl, nil)); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(&shell)
	if err != nil {
		return nil, fmt.Errorf("parse shell: %w", err)
	}

	hero := doc.Find("#intro")
	if hero.Length() == 0 {
		return nil, fmt.Errorf("page shell has no #intro element")
	}
	var intro bytes.Buffer
	if err := tmpl.ExecuteTemplate(&intro, "intro-complete", completedFrame(tbl)); err != nil {
		return nil, err
	}
	hero.SetHtml(intro.String()).SetAttr("data-state", "complete")

	html, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(html), nil
}
