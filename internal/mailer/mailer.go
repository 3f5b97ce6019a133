// Package mailer sends transactional email through the Mailtrap send API.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	htmltpl "html/template"
	"io"
	"log/slog"
	"net/http"
	"strings"
	texttpl "text/template"
	"time"

	"booking-api/internal/model"
)

const DefaultAPIURL = "https://send.api.mailtrap.io/api/send"

//go:embed templates/*
var templateFS embed.FS

var (
	htmlTemplates = htmltpl.Must(htmltpl.ParseFS(templateFS, "templates/*.html"))
	textTemplates = texttpl.Must(texttpl.ParseFS(templateFS, "templates/*.txt"))
)

type Config struct {
	APIURL    string
	APIKey    string
	FromEmail string
	FromName  string
	// Location formats appointment times in reminders.
	Location *time.Location
}

type Mailtrap struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Mailtrap {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = "noreply@example.com"
	}
	if cfg.FromName == "" {
		cfg.FromName = "Booking"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Mailtrap{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logger.With("component", "mailer"),
	}
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type message struct {
	From     address   `json:"from"`
	To       []address `json:"to"`
	Subject  string    `json:"subject"`
	Text     string    `json:"text"`
	HTML     string    `json:"html"`
	Category string    `json:"category,omitempty"`
}

func (m *Mailtrap) SendAppointmentReminder(ctx context.Context, r model.Reminder) error {
	at := r.DateTime.In(m.cfg.Location)
	data := struct {
		Service string
		Date    string
		Time    string
	}{
		Date: at.Format("January 2, 2006"),
		Time: at.Format("3:04 PM"),
	}
	if r.ServiceTitle != nil {
		data.Service = *r.ServiceTitle
	}
	return m.send(ctx, r.Email, "Appointment Reminder", "reminder", "reminder", data)
}

func (m *Mailtrap) SendPasswordReset(ctx context.Context, to, link string) error {
	data := struct{ Link string }{Link: link}
	return m.send(ctx, to, "Password Reset", "reset", "password_reset", data)
}

func (m *Mailtrap) send(ctx context.Context, to, subject, tpl, category string, data any) error {
	var html, text strings.Builder
	if err := htmlTemplates.ExecuteTemplate(&html, tpl+".html", data); err != nil {
		return fmt.Errorf("render %s.html: %w", tpl, err)
	}
	if err := textTemplates.ExecuteTemplate(&text, tpl+".txt", data); err != nil {
		return fmt.Errorf("render %s.txt: %w", tpl, err)
	}

	body, err := json.Marshal(message{
		From:     address{Email: m.cfg.FromEmail, Name: m.cfg.FromName},
		To:       []address{{Email: to}},
		Subject:  subject,
		Text:     strings.TrimSpace(text.String()),
		HTML:     html.String(),
		Category: category,
	})
	if err != nil {
		return fmt.Errorf("marshaling email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("mailtrap API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	m.log.InfoContext(ctx, "email sent", "to", to, "category", category)
	return nil
}
