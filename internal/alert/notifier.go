// Copyright (c) 2026 Opsvault Team
// Opsvault - secure foundation for personal automation jobs
// This source code is licensed under the MIT license found in the LICENSE file.

// package alert routes automation failure events to notification channels by
// severity. CRITICAL pages via email and SMS, HIGH mails, MEDIUM only counts,
// LOW is log-only. Every event lands in a day-partitioned NDJSON log and in
// the alert history table regardless of which channels fire.
package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opsvault/opsvault/internal/config"
	"github.com/opsvault/opsvault/internal/logging"
	"github.com/opsvault/opsvault/internal/model"
)

// Severity classifies an alert event.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity maps user input to a Severity, case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToUpper(s)) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	case SeverityCritical:
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("unknown severity %q (use low, medium, high or critical)", s)
	}
}

// Channel names as used in routing, rate windows and test output.
const (
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelMetrics = "metrics"
)

// routing fixes which channels each severity reaches. LOW goes nowhere; it
// still ends up in the alert log and history.
var routing = map[Severity][]string{
	SeverityCritical: {ChannelEmail, ChannelSMS, ChannelMetrics},
	SeverityHigh:     {ChannelEmail, ChannelMetrics},
	SeverityMedium:   {ChannelMetrics},
	SeverityLow:      {},
}

// Channel delivery caps. These protect the human behind the pager, not the
// providers; API-level limits live in the ratelimit package.
const (
	emailWindowLimit = 10
	emailWindow      = time.Hour
	smsWindowLimit   = 1
	smsWindow        = 5 * time.Minute
)

// Event is one automation failure to be dispatched.
type Event struct {
	Severity  Severity
	EventType string
	Message   string
	App       string
	Details   string
}

// HistoryStore is the slice of the database layer the notifier needs.
type HistoryStore interface {
	SaveAlert(rec model.AlertRecord) error
	GetAlertsSince(since time.Time) ([]model.AlertRecord, error)
}

// window is a sliding-window counter over delivery timestamps.
type window struct {
	limit  int
	span   time.Duration
	stamps []time.Time
}

// allow records a delivery attempt if the window has room.
func (w *window) allow(now time.Time) bool {
	cutoff := now.Add(-w.span)
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= w.limit {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Notifier fans alert events out to the configured channels.
type Notifier struct {
	logDir  string
	email   EmailSender
	sms     SMSSender
	metrics MetricSink
	store   HistoryStore

	mu       sync.Mutex
	emailWin window
	smsWin   window
	history  []model.AlertRecord
}

// New builds a Notifier from the alert configuration. Disabled channels stay
// nil and are skipped during dispatch. store may be nil; summaries then use
// the in-process history only.
func New(cfg config.AlertsConfig, store HistoryStore) *Notifier {
	n := &Notifier{
		logDir:   cfg.LogDir,
		store:    store,
		emailWin: window{limit: emailWindowLimit, span: emailWindow},
		smsWin:   window{limit: smsWindowLimit, span: smsWindow},
	}
	if cfg.Email.Enabled {
		n.email = newSMTPSender(cfg.Email)
	}
	if cfg.SMS.Enabled {
		n.sms = newWebhookSMSSender(cfg.SMS)
	}
	if cfg.Metrics.Enabled {
		n.metrics = logMetricSink{}
	}
	return n
}

// Send dispatches the event to every channel its severity routes to. A
// failing channel never blocks the others. The return value reports whether
// at least one channel delivered; it is false when every attempted channel
// failed and also when the severity routes to no channels at all. The event
// is recorded in the history and the alert log either way.
func (n *Notifier) Send(ev Event) bool {
	now := defaultClock.Now()
	rec := model.AlertRecord{
		Timestamp: now,
		Severity:  string(ev.Severity),
		EventType: ev.EventType,
		Message:   ev.Message,
		App:       ev.App,
		Details:   ev.Details,
	}

	n.record(rec)

	channels := routing[ev.Severity]
	if len(channels) == 0 {
		return false
	}

	delivered := 0
	for _, ch := range channels {
		if n.dispatch(ch, ev, rec, now) {
			delivered++
		}
	}
	return delivered > 0
}

// dispatch sends over a single channel, honoring its delivery cap.
func (n *Notifier) dispatch(channel string, ev Event, rec model.AlertRecord, now time.Time) bool {
	switch channel {
	case ChannelEmail:
		if n.email == nil {
			return false
		}
		n.mu.Lock()
		ok := n.emailWin.allow(now)
		n.mu.Unlock()
		if !ok {
			logging.Warnf("email alert suppressed, %d per %s cap reached", emailWindowLimit, emailWindow)
			return false
		}
		subject := fmt.Sprintf("[%s] %s: %s", ev.Severity, ev.App, ev.EventType)
		if err := n.email.Send(subject, emailBody(ev, now), nil); err != nil {
			logging.Errorf("email alert failed: %v", err)
			return false
		}
		return true

	case ChannelSMS:
		if n.sms == nil {
			return false
		}
		n.mu.Lock()
		ok := n.smsWin.allow(now)
		n.mu.Unlock()
		if !ok {
			logging.Warnf("sms alert suppressed, %d per %s cap reached", smsWindowLimit, smsWindow)
			return false
		}
		text := fmt.Sprintf("%s %s/%s: %s", ev.Severity, ev.App, ev.EventType, ev.Message)
		if err := n.sms.Send(text); err != nil {
			logging.Errorf("sms alert failed: %v", err)
			return false
		}
		return true

	case ChannelMetrics:
		if n.metrics == nil {
			return false
		}
		if err := n.metrics.Record(rec); err != nil {
			logging.Errorf("metrics alert failed: %v", err)
			return false
		}
		return true
	}
	return false
}

func emailBody(ev Event, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Severity:   %s\n", ev.Severity)
	fmt.Fprintf(&b, "Application: %s\n", ev.App)
	fmt.Fprintf(&b, "Event:      %s\n", ev.EventType)
	fmt.Fprintf(&b, "Time:       %s\n\n", now.Format(time.RFC3339))
	b.WriteString(ev.Message)
	if ev.Details != "" {
		b.WriteString("\n\nDetails:\n")
		b.WriteString(ev.Details)
	}
	return b.String()
}

// record appends the event to the NDJSON log, the history table and the
// in-process history. All three are best-effort; dispatch proceeds anyway.
func (n *Notifier) record(rec model.AlertRecord) {
	if err := n.appendLog(rec); err != nil {
		logging.Errorf("alert log not written: %v", err)
	}
	if n.store != nil {
		if err := n.store.SaveAlert(rec); err != nil {
			logging.Errorf("alert history not saved: %v", err)
		}
	}

	n.mu.Lock()
	n.history = append(n.history, rec)
	n.mu.Unlock()
}

// appendLog writes one NDJSON line to the day-partitioned alert log.
func (n *Notifier) appendLog(rec model.AlertRecord) error {
	if n.logDir == "" {
		return nil
	}
	if err := os.MkdirAll(n.logDir, 0700); err != nil {
		return err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("alerts-%s.ndjson", rec.Timestamp.Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(n.logDir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}

// Summary aggregates recent alert activity.
type Summary struct {
	Since       time.Time      `json:"since"`
	Total       int            `json:"total"`
	BySeverity  map[string]int `json:"by_severity"`
	ByEventType map[string]int `json:"by_event_type"`
	ByApp       map[string]int `json:"by_app"`
}

// Summarize aggregates the alerts of the past window. The in-process
// history is the source; the persistent store only fills in when this
// process has dispatched nothing yet (a summary right after restart).
func (n *Notifier) Summarize(hours int) (Summary, error) {
	since := defaultClock.Now().Add(-time.Duration(hours) * time.Hour)

	var recs []model.AlertRecord
	n.mu.Lock()
	seen := len(n.history)
	for _, rec := range n.history {
		if !rec.Timestamp.Before(since) {
			recs = append(recs, rec)
		}
	}
	n.mu.Unlock()

	if seen == 0 && n.store != nil {
		var err error
		recs, err = n.store.GetAlertsSince(since)
		if err != nil {
			return Summary{}, fmt.Errorf("could not read alert history: %w", err)
		}
	}

	s := Summary{
		Since:       since,
		Total:       len(recs),
		BySeverity:  make(map[string]int),
		ByEventType: make(map[string]int),
		ByApp:       make(map[string]int),
	}
	for _, rec := range recs {
		s.BySeverity[rec.Severity]++
		s.ByEventType[rec.EventType]++
		s.ByApp[rec.App]++
	}
	return s, nil
}

// TestNotifications pushes a harmless test message through every configured
// channel and reports the per-channel outcome, keyed by channel name.
func (n *Notifier) TestNotifications() map[string]error {
	now := defaultClock.Now()
	results := make(map[string]error)

	if n.email != nil {
		results[ChannelEmail] = n.email.Send(
			"[TEST] opsvault notification check",
			"This is a test notification sent at "+now.Format(time.RFC3339)+".",
			nil,
		)
	}
	if n.sms != nil {
		results[ChannelSMS] = n.sms.Send("opsvault test notification")
	}
	if n.metrics != nil {
		results[ChannelMetrics] = n.metrics.Record(model.AlertRecord{
			Timestamp: now,
			Severity:  string(SeverityLow),
			EventType: "notification_test",
			App:       "opsvault",
		})
	}
	return results
}

// ConfiguredChannels lists the channels this notifier can reach, sorted.
func (n *Notifier) ConfiguredChannels() []string {
	var out []string
	if n.email != nil {
		out = append(out, ChannelEmail)
	}
	if n.metrics != nil {
		out = append(out, ChannelMetrics)
	}
	if n.sms != nil {
		out = append(out, ChannelSMS)
	}
	sort.Strings(out)
	return out
}
