// admin.go - privacy-conscious visitor tracking and the admin dashboard
package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/metrics"
	"github.com/Zachkp/folio/internal/session"
)

const (
	adminCookie     = "admin_token"
	visitorRetained = "-12 months"
	sqliteTime      = "2006-01-02 15:04:05"
)

// VisitorMetric is one tracked page view. The IP is stored hashed.
type VisitorMetric struct {
	ID        int       `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Lang      string    `json:"lang"`
	Timestamp time.Time `json:"timestamp"`
}

type PathStat struct {
	Path  string `json:"path"`
	Views int64  `json:"views"`
}

type AdminStats struct {
	TotalVisitors    int64            `json:"total_visitors"`
	UniqueVisitors   int64            `json:"unique_visitors"`
	VisitorsToday    int64            `json:"visitors_today"`
	VisitorsThisWeek int64            `json:"visitors_this_week"`
	ViewsByLang      map[string]int64 `json:"views_by_lang"`
	IntrosSeen       int64            `json:"intros_seen"`
	TopPaths         []PathStat       `json:"top_paths"`
	RecentVisitors   []VisitorMetric  `json:"recent_visitors"`
}

// adminAuth holds the per-process admin token and IP hashing salt. Both are
// regenerated on restart, which logs the admin out and rotates IP hashes.
type adminAuth struct {
	cfg   config.AdminConfig
	token string
	salt  string
	log   zerolog.Logger
}

func newAdminAuth(cfg config.AdminConfig, log zerolog.Logger) *adminAuth {
	a := &adminAuth{cfg: cfg, token: randomToken(), salt: randomToken(), log: log}
	if cfg.PasswordHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH not set, admin login disabled")
	}
	return a
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("generate token: %v", err))
	}
	return hex.EncodeToString(b)
}

// hashIP is consistent per IP for the life of the process.
func (a *adminAuth) hashIP(ip string) string {
	h := sha256.Sum256([]byte(ip + a.salt))
	return hex.EncodeToString(h[:])[:16]
}

func (a *adminAuth) check(username, password string) bool {
	if a.cfg.PasswordHash == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword([]byte(a.cfg.PasswordHash), []byte(password)) == nil
	return userOK && passOK
}

func (a *adminAuth) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminCookie)
		if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// untracked paths are assets, streams and private pages
var untracked = []string{
	"/static/", "/images/", "/admin", "/favicon", "/privacy",
	"/intro/", "/equalizer/", "/audio/", "/metrics", "/healthz",
}

// visitorTrackingMiddleware records page views with hashed IPs. Do Not Track
// is respected.
func (s *server) visitorTrackingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet || c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}
		for _, prefix := range untracked {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		ip, ua, lang := c.ClientIP(), c.GetHeader("User-Agent"), string(requestLang(c))
		if l := strings.Trim(path, "/"); l == "es" || l == "en" {
			lang = l
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.recordVisit(ip, ua, path, lang)
		}()
		c.Next()
	}
}

func (s *server) recordVisit(ip, userAgent, path, lang string) {
	_, err := s.db.Exec(`
		INSERT INTO visitors (hashed_ip, user_agent, path, lang, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, s.admin.hashIP(ip), userAgent, path, lang, time.Now().UTC().Format(sqliteTime))
	if err != nil {
		s.log.Warn().Err(err).Msg("record visitor")
	}
}

// cleanupOldVisitors drops visits older than the retention window.
func (s *server) cleanupOldVisitors(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM visitors WHERE timestamp < datetime('now', ?)`, visitorRetained)
	if err != nil {
		return 0, fmt.Errorf("cleanup visitors: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		metrics.CleanupRemoved.WithLabelValues("visitors").Add(float64(n))
		s.log.Info().Int64("rows", n).Msg("privacy cleanup removed old visitor records")
	}
	return n, nil
}

func (s *server) getAdminStats(ctx context.Context) (*AdminStats, error) {
	stats := &AdminStats{ViewsByLang: make(map[string]int64)}

	counts := []struct {
		dst   *int64
		query string
	}{
		{&stats.TotalVisitors, `SELECT COUNT(*) FROM visitors`},
		{&stats.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`},
		{&stats.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE DATE(timestamp) = DATE('now')`},
		{&stats.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE timestamp >= datetime('now', '-7 days')`},
	}
	for _, q := range counts {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("visitor stats: %w", err)
		}
	}

	if _, ok := s.flags.(*session.SQLiteStore); ok {
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM session_flags WHERE name = ?`, session.IntroSeen,
		).Scan(&stats.IntrosSeen)
		if err != nil {
			return nil, fmt.Errorf("intro stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(lang, ''), COUNT(*) FROM visitors GROUP BY lang`)
	if err != nil {
		return nil, fmt.Errorf("language stats: %w", err)
	}
	for rows.Next() {
		var lang string
		var n int64
		if err := rows.Scan(&lang, &n); err != nil {
			continue
		}
		stats.ViewsByLang[lang] = n
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT path, COUNT(*) AS views
		FROM visitors
		GROUP BY path
		ORDER BY views DESC, path
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("path stats: %w", err)
	}
	for rows.Next() {
		var p PathStat
		if err := rows.Scan(&p.Path, &p.Views); err != nil {
			continue
		}
		stats.TopPaths = append(stats.TopPaths, p)
	}
	rows.Close()

	stats.RecentVisitors, err = s.recentVisitors(ctx, 50)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *server) recentVisitors(ctx context.Context, limit int) ([]VisitorMetric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, COALESCE(user_agent, ''), COALESCE(path, ''), COALESCE(lang, ''), timestamp
		FROM visitors
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent visitors: %w", err)
	}
	defer rows.Close()

	var visitors []VisitorMetric
	for rows.Next() {
		var v VisitorMetric
		var ts sql.NullString
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &v.Lang, &ts); err != nil {
			continue
		}
		v.Timestamp = parseSQLiteTime(ts.String)
		visitors = append(visitors, v)
	}
	return visitors, rows.Err()
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range []string{sqliteTime, time.RFC3339Nano, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (s *server) setupAdminRoutes(r *gin.Engine) {
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{"t": s.table(c)})
	})

	r.GET("/admin/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "admin-login.html", gin.H{"title": "Admin Login"})
	})

	r.POST("/admin/login", func(c *gin.Context) {
		who := s.admin.hashIP(c.ClientIP())
		if !s.admin.check(c.PostForm("username"), c.PostForm("password")) {
			s.admin.log.Warn().Str("from", who).Msg("failed admin login")
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{
				"title": "Admin Login",
				"error": "Invalid credentials",
			})
			return
		}
		c.SetCookie(adminCookie, s.admin.token, 3600*24, "/admin", "", strings.HasPrefix(s.cfg.SiteURL, "https://"), true)
		s.admin.log.Info().Str("from", who).Msg("admin login")
		c.Redirect(http.StatusFound, "/admin/dashboard")
	})

	r.GET("/admin/logout", func(c *gin.Context) {
		c.SetCookie(adminCookie, "", -1, "/admin", "", false, true)
		c.Redirect(http.StatusFound, "/admin/login")
	})

	adminGroup := r.Group("/admin")
	adminGroup.Use(s.admin.middleware())

	adminGroup.GET("/dashboard", func(c *gin.Context) {
		stats, err := s.getAdminStats(c.Request.Context())
		if err != nil {
			s.admin.log.Error().Err(err).Msg("load admin stats")
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to load statistics"})
			return
		}
		c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{"stats": stats})
	})

	adminGroup.GET("/api/stats", func(c *gin.Context) {
		stats, err := s.getAdminStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	adminGroup.GET("/visitors", func(c *gin.Context) {
		visitors, err := s.recentVisitors(c.Request.Context(), 200)
		if err != nil {
			c.HTML(http.StatusInternalServerError, "admin-error.html", gin.H{"error": "Failed to load visitors"})
			return
		}
		c.HTML(http.StatusOK, "admin-visitors.html", gin.H{"visitors": visitors})
	})

	adminGroup.POST("/privacy/cleanup", func(c *gin.Context) {
		n, err := s.cleanupOldVisitors(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"removed": n})
	})

	adminGroup.GET("/export/stats", func(c *gin.Context) {
		stats, err := s.getAdminStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", "attachment; filename=admin-stats.json")
		c.JSON(http.StatusOK, stats)
	})
}
