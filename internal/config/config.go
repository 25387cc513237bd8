// Package config reads the server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SMTPConfig is the outgoing mail server of the contact form.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	To   string
}

// Configured reports whether credentials are present.
func (s SMTPConfig) Configured() bool { return s.User != "" && s.Pass != "" }

// AdminConfig holds the dashboard credentials. PasswordHash is a bcrypt hash;
// empty disables login.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

// Config holds all server settings.
type Config struct {
	Port         string
	GinMode      string
	DBPath       string
	RedisURL     string
	SessionTTL   time.Duration
	AmbientTrack string
	EqualizerFPS int
	LogLevel     string
	LogPretty    bool
	SiteURL      string
	SMTP         SMTPConfig
	Admin        AdminConfig
}

// LoadDotEnv loads .env style files into the environment. Missing files are
// skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// New returns a viper instance with every default set and environment
// lookup enabled. Command flags are bound onto it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("DB_PATH", "folio.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("AMBIENT_TRACK", "")
	v.SetDefault("EQ_FPS", 30)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("SITE_URL", "http://localhost:8080")
	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("TO_EMAIL", "zachkordaspotter@gmail.com")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
	return v
}

// Load builds a Config from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:         v.GetString("PORT"),
		GinMode:      v.GetString("GIN_MODE"),
		DBPath:       v.GetString("DB_PATH"),
		RedisURL:     v.GetString("REDIS_URL"),
		SessionTTL:   v.GetDuration("SESSION_TTL"),
		AmbientTrack: v.GetString("AMBIENT_TRACK"),
		EqualizerFPS: v.GetInt("EQ_FPS"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		LogPretty:    v.GetBool("LOG_PRETTY"),
		SiteURL:      v.GetString("SITE_URL"),
		SMTP: SMTPConfig{
			Host: v.GetString("SMTP_HOST"),
			Port: v.GetString("SMTP_PORT"),
			User: v.GetString("SMTP_USER"),
			Pass: v.GetString("SMTP_PASS"),
			To:   v.GetString("TO_EMAIL"),
		},
		Admin: AdminConfig{
			Username:     v.GetString("ADMIN_USERNAME"),
			PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.GinMode)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.EqualizerFPS < 1 || c.EqualizerFPS > 120 {
		return fmt.Errorf("EQ_FPS must be between 1 and 120, got %d", c.EqualizerFPS)
	}
	return nil
}
