package main

import (
	"database/sql"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Zachkp/folio/internal/clock"
	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/logging"
	"github.com/Zachkp/folio/internal/metrics"
	"github.com/Zachkp/folio/internal/session"
	"github.com/Zachkp/folio/internal/typewriter"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

// server carries everything the handlers share.
type server struct {
	cfg     *config.Config
	log     zerolog.Logger
	db      *sql.DB
	catalog *content.Catalog
	flags   session.Store
	intros  *introHub
	eq      *equalizerHub
	mail    mailer
	admin   *adminAuth

	// background visitor inserts
	wg sync.WaitGroup
}

func newServer(cfg *config.Config, log zerolog.Logger, db *sql.DB, flags session.Store, catalog *content.Catalog) *server {
	s := &server{
		cfg:     cfg,
		log:     log,
		db:      db,
		catalog: catalog,
		flags:   flags,
		mail:    &smtpMailer{cfg: cfg.SMTP, log: logging.Component(log, "contact")},
		admin:   newAdminAuth(cfg.Admin, logging.Component(log, "admin")),
	}
	s.intros = newIntroHub(catalog, flags, clock.New(), logging.Component(log, "intro"))
	s.eq = newEqualizerHub(cfg.AmbientTrack, cfg.EqualizerFPS, logging.Component(log, "equalizer"))
	return s
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
}

func (s *server) routes() (*gin.Engine, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), logging.Requests(s.log), metrics.Middleware())
	r.Use(sessionMiddleware(strings.HasPrefix(s.cfg.SiteURL, "https://")))
	r.Use(s.visitorTrackingMiddleware())
	r.SetHTMLTemplate(tmpl)

	static, _ := fs.Sub(staticFS, "static")
	r.StaticFS("/static", http.FS(static))
	r.Static("/images", "./images")

	r.GET("/healthz", func(c *gin.Context) {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/", func(c *gin.Context) {
		lang := content.Negotiate(c.GetHeader("Accept-Language"))
		c.Redirect(http.StatusFound, "/"+string(lang))
	})

	// Home page route, one per language
	r.GET("/:lang", func(c *gin.Context) {
		lang, ok := content.ParseLang(c.Param("lang"))
		if !ok {
			c.Status(http.StatusNotFound)
			return
		}
		tbl := s.catalog.Get(lang)

		var intro *typewriter.Frame
		if seen, err := s.flags.GetFlag(c.Request.Context(), sessionID(c), session.IntroSeen); err != nil {
			s.log.Warn().Err(err).Msg("read intro flag")
		} else if seen {
			f := completedFrame(tbl)
			intro = &f
		}

		c.HTML(http.StatusOK, "index.html", pageData(tbl, intro))
	})

	// HTMX fragments, ?lang= selects the table
	r.GET("/work-content", func(c *gin.Context) {
		tbl := s.table(c)
		c.HTML(http.StatusOK, "work-content.html", gin.H{"entries": tbl.Work, "t": tbl})
	})

	r.GET("/education-content", func(c *gin.Context) {
		tbl := s.table(c)
		c.HTML(http.StatusOK, "education-content.html", gin.H{"entries": tbl.Education, "t": tbl})
	})

	r.GET("/contact-form", func(c *gin.Context) {
		tbl := s.table(c)
		c.HTML(http.StatusOK, "contact.html", gin.H{"t": tbl})
	})

	r.POST("/contact", s.handleContact)

	r.GET("/intro/stream", s.intros.handleStream)
	r.POST("/intro/skip", s.intros.handleSkip)
	r.GET("/equalizer/ws", s.eq.handleSocket)
	r.GET("/audio/ambient", s.eq.handleTrack)

	s.setupAdminRoutes(r)
	return r, nil
}

// table picks the content table from ?lang=, falling back to the
// Accept-Language header.
func (s *server) table(c *gin.Context) *content.Table {
	return s.catalog.Get(requestLang(c))
}

func requestLang(c *gin.Context) content.Lang {
	if lang, ok := content.ParseLang(c.Query("lang")); ok {
		return lang
	}
	return content.Negotiate(c.GetHeader("Accept-Language"))
}

func pageData(tbl *content.Table, intro *typewriter.Frame) gin.H {
	return gin.H{
		"t":         tbl,
		"lang":      string(tbl.Lang),
		"languages": content.Languages(),
		"intro":     intro,
	}
}

// completedFrame is the fully revealed intro of tbl.
func completedFrame(tbl *content.Table) typewriter.Frame {
	m := tbl.Machine()
	return m.Frame(m.Completed())
}
