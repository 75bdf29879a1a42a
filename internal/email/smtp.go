package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP
// connection via go-mail.
type SMTPSender struct {
	host       string
	port       int
	username   string
	password   string
	fromName   string
	fromEmail  string
	appBaseURL string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
// appBaseURL, when set, links notifications back to the scheduling portal.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName, appBaseURL string) *SMTPSender {
	return &SMTPSender{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		fromName:   fromName,
		fromEmail:  fromEmail,
		appBaseURL: appBaseURL,
	}
}

func (s *SMTPSender) portalCTA() (label, url string) {
	if s.appBaseURL == "" {
		return "", ""
	}
	return "View schedule", strings.TrimRight(s.appBaseURL, "/") + "/schedules"
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendVisitScheduledEmail notifies the assigned crew member (or the
// scheduler) that a visit has been put on the calendar.
func (s *SMTPSender) SendVisitScheduledEmail(ctx context.Context, toEmail string, details VisitDetails) error {
	ctaLabel, ctaURL := s.portalCTA()
	subject := fmt.Sprintf(subjectVisitScheduledFmt, details.Category, details.CustomerName)
	content, err := renderEmailTemplate("visit_scheduled.html", visitNoticeEmailData{
		baseEmailData: baseEmailData{
			Title:    "Visit scheduled",
			Heading:  fmt.Sprintf("%s visit scheduled", details.Category),
			CTALabel: ctaLabel,
			CTAURL:   ctaURL,
		},
		VisitDetails: details,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

// SendVisitCancelledEmail notifies the prior assignee that a visit has
// been taken off the calendar.
func (s *SMTPSender) SendVisitCancelledEmail(ctx context.Context, toEmail string, details VisitDetails, reason string) error {
	subject := fmt.Sprintf(subjectVisitCancelledFmt, details.Category, details.CustomerName)
	content, err := renderEmailTemplate("visit_cancelled.html", cancellationEmailData{
		baseEmailData: baseEmailData{
			Title:   "Visit cancelled",
			Heading: fmt.Sprintf("%s visit cancelled", details.Category),
		},
		VisitDetails: details,
		Reason:       reason,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

// SendCrewReminderEmail reminds the assigned crew member the day before
// a visit.
func (s *SMTPSender) SendCrewReminderEmail(ctx context.Context, toEmail string, details VisitDetails) error {
	ctaLabel, ctaURL := s.portalCTA()
	subject := fmt.Sprintf(subjectCrewReminderFmt, details.Category, details.VisitDate)
	content, err := renderEmailTemplate("crew_reminder.html", crewReminderEmailData{
		baseEmailData: baseEmailData{
			Title:    "Visit reminder",
			Heading:  "You have a visit tomorrow",
			CTALabel: ctaLabel,
			CTAURL:   ctaURL,
		},
		VisitDetails: details,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}

// SendCustomEmail sends a prerendered message.
func (s *SMTPSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return s.send(ctx, toEmail, subject, htmlContent)
}
