// Package email sends scheduling notifications over SMTP.
package email

import (
	"context"

	"fieldops_backend/platform/config"
)

// VisitDetails carries the fields shared by scheduling notifications.
type VisitDetails struct {
	CustomerName  string
	Category      string // display label, e.g. "Installation"
	VisitDate     string // local calendar date
	VisitWindow   string // local clock window, e.g. "08:00 - 16:00"
	Address       string
	CustomerPhone string
	AssigneeName  string
	ScheduledBy   string
	Notes         string
}

// Sender delivers scheduling notifications. Callers treat delivery as
// best-effort: a failed send is logged or surfaced as a warning, never
// as a failed scheduling action.
type Sender interface {
	SendVisitScheduledEmail(ctx context.Context, toEmail string, details VisitDetails) error
	SendVisitCancelledEmail(ctx context.Context, toEmail string, details VisitDetails, reason string) error
	SendCrewReminderEmail(ctx context.Context, toEmail string, details VisitDetails) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// SenderConfig combines the config interfaces the sender needs.
type SenderConfig interface {
	config.EmailConfig
	config.NotificationConfig
}

// NewSender builds the configured Sender: SMTP when enabled, noop otherwise.
func NewSender(cfg SenderConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
		cfg.GetAppBaseURL(),
	), nil
}

// NoopSender is used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendVisitScheduledEmail(ctx context.Context, toEmail string, details VisitDetails) error {
	return nil
}

func (NoopSender) SendVisitCancelledEmail(ctx context.Context, toEmail string, details VisitDetails, reason string) error {
	return nil
}

func (NoopSender) SendCrewReminderEmail(ctx context.Context, toEmail string, details VisitDetails) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}
