// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/opsvault/opsvault/internal/config"
	"github.com/opsvault/opsvault/internal/logging"
	"github.com/opsvault/opsvault/internal/model"
)

// EmailSender delivers an alert by mail.
type EmailSender interface {
	Send(subject, body string, to []string) error
}

// SMSSender delivers a short alert text.
type SMSSender interface {
	Send(message string) error
}

// MetricSink records an alert occurrence for dashboards and counters.
type MetricSink interface {
	Record(rec model.AlertRecord) error
}

// smtpSender sends mail through a plain SMTP server. Personal automation
// setups point this at a local relay or a provider submission port.
type smtpSender struct {
	addr     string
	from     string
	to       []string
	username string
	password string
	host     string
}

func newSMTPSender(cfg config.EmailChannelConfig) *smtpSender {
	return &smtpSender{
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from:     cfg.From,
		to:       cfg.To,
		username: cfg.Username,
		password: cfg.Password,
		host:     cfg.Host,
	}
}

func (s *smtpSender) Send(subject, body string, to []string) error {
	if len(to) == 0 {
		to = s.to
	}
	if len(to) == 0 {
		return fmt.Errorf("no email recipients configured")
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}
	if err := smtp.SendMail(s.addr, auth, s.from, to, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp delivery via %s failed: %w", s.addr, err)
	}
	return nil
}

// webhookSMSSender posts the alert text to an SMS gateway webhook
// (ntfy, Twilio function, carrier gateway, ...).
type webhookSMSSender struct {
	url    string
	to     string
	client *http.Client
}

func newWebhookSMSSender(cfg config.SMSChannelConfig) *webhookSMSSender {
	return &webhookSMSSender{
		url:    cfg.WebhookURL,
		to:     cfg.To,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *webhookSMSSender) Send(message string) error {
	payload, err := json.Marshal(map[string]string{
		"to":      s.to,
		"message": message,
	})
	if err != nil {
		return err
	}

	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sms webhook call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms webhook returned %s", resp.Status)
	}
	return nil
}

// logMetricSink emits one structured log line per alert. Counters and
// dashboards are scraped from these lines.
type logMetricSink struct{}

func (logMetricSink) Record(rec model.AlertRecord) error {
	logging.Infof("alert_metric severity=%s event_type=%s app=%s", rec.Severity, rec.EventType, rec.App)
	return nil
}
