package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/metrics"
)

var errSMTPNotConfigured = errors.New("SMTP credentials not configured")

type contactMessage struct {
	Name    string
	Email   string
	Message string
}

// validate trims the fields and rejects header injection attempts.
func (m *contactMessage) validate() error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Message = strings.TrimSpace(m.Message)
	if m.Name == "" || m.Email == "" || m.Message == "" {
		return errors.New("missing field")
	}
	if strings.ContainsAny(m.Name+m.Email, "\r\n") {
		return errors.New("line break in header field")
	}
	if _, err := mail.ParseAddress(m.Email); err != nil {
		return fmt.Errorf("invalid email: %w", err)
	}
	return nil
}

type mailer interface {
	Send(msg contactMessage) error
}

type smtpMailer struct {
	cfg config.SMTPConfig
	log zerolog.Logger
}

func (s *smtpMailer) Send(msg contactMessage) error {
	if !s.cfg.Configured() {
		return errSMTPNotConfigured
	}

	subject := fmt.Sprintf("Portfolio Contact: %s", msg.Name)
	body := fmt.Sprintf(`
New contact form submission from your portfolio:

Name: %s
Email: %s
Message:
%s

---
Sent from your portfolio contact form
`, msg.Name, msg.Email, msg.Message)

	raw := []byte("To: " + s.cfg.To + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"From: " + s.cfg.User + "\r\n" +
		"Reply-To: " + msg.Email + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body + "\r\n")

	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	if err := smtp.SendMail(s.cfg.Host+":"+s.cfg.Port, auth, s.cfg.User, []string{s.cfg.To}, raw); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.log.Info().Str("from", msg.Email).Msg("contact email sent")
	return nil
}

// handleContact answers the HTMX form with a success or error fragment.
func (s *server) handleContact(c *gin.Context) {
	tbl := s.table(c)
	msg := contactMessage{
		Name:    c.PostForm("fullName"),
		Email:   c.PostForm("email"),
		Message: c.PostForm("message"),
	}

	if err := msg.validate(); err != nil {
		metrics.ContactMessages.WithLabelValues("invalid").Inc()
		c.HTML(http.StatusOK, "contact-error.html", gin.H{"error": tbl.Label("contact_invalid")})
		return
	}

	if err := s.mail.Send(msg); err != nil {
		metrics.ContactMessages.WithLabelValues("failed").Inc()
		s.log.Error().Err(err).Msg("contact email")
		c.HTML(http.StatusOK, "contact-error.html", gin.H{"error": tbl.Label("contact_error")})
		return
	}

	metrics.ContactMessages.WithLabelValues("sent").Inc()
	c.HTML(http.StatusOK, "contact-success.html", gin.H{"success": tbl.Label("contact_ok")})
}
