// Package alert sends email alerts when a CRITICAL-tier label change is
// detected by the weekly monitor.
package alert

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/ignite/crm-tag-sync/internal/domain"
	"github.com/ignite/crm-tag-sync/internal/pkg/logger"
)

// Config holds alerter configuration.
type Config struct {
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

// EmailAlerter sends plain-text alert mail over SMTP. With no host or
// recipients configured it logs the alert and drops it.
type EmailAlerter struct {
	cfg Config
}

// NewEmailAlerter creates an email alerter.
func NewEmailAlerter(cfg Config) *EmailAlerter {
	return &EmailAlerter{cfg: cfg}
}

// Alert sends one notification's summary to the configured recipients.
func (a *EmailAlerter) Alert(ctx context.Context, n domain.ChangeNotification) error {
	verb := "added to"
	if n.ChangeType == domain.ChangeRemoved {
		verb = "removed from"
	}
	subject := fmt.Sprintf("CRITICAL label change: %q %s %d contact(s) (week %d/%d)",
		n.Label, verb, n.AffectedCount, n.Week, n.Year)

	var sb strings.Builder
	fmt.Fprintf(&sb, `Critical Label Change Detected
==============================

Label:     %s
Change:    %s
Week:      %d/%d
Affected:  %d contact(s)
Priority:  %s

Affected contacts:
`, n.Label, n.ChangeType, n.Week, n.Year, n.AffectedCount, n.Priority)

	for _, d := range n.Details {
		fmt.Fprintf(&sb, "  - %s <%s> product=%s cohort=%s detected=%s\n",
			d.SubjectName, d.SubjectEmail, d.Product, d.Cohort,
			d.DetectedAt.Format(time.RFC3339))
	}
	sb.WriteString("\n---\nAutomated alert from the tag synchronization engine.\n")

	return a.sendEmail(subject, sb.String())
}

func (a *EmailAlerter) sendEmail(subject, body string) error {
	if a.cfg.SMTPHost == "" || len(a.cfg.To) == 0 {
		logger.Info("alert suppressed, no SMTP configured", "subject", subject)
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		a.cfg.From, strings.Join(a.cfg.To, ","), subject, body)

	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)
	if err := smtp.SendMail(addr, nil, a.cfg.From, a.cfg.To, []byte(msg)); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}
