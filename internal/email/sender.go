// Package email delivers transactional mail for the intervention workflow.
// All sends happen from the scheduler's outbox dispatcher, never inline with
// an HTTP request.
package email

import (
	"context"

	"gestimmo_backend/platform/config"
)

type Sender interface {
	// SendInterventionUpdateEmail informs a participant that an intervention
	// changed status. Body is a ready-to-display sentence; detailURL points to
	// the intervention in the web app.
	SendInterventionUpdateEmail(ctx context.Context, toEmail, subject, heading, body, detailURL string) error
	// SendInterventionReminderEmail reminds a participant of an upcoming
	// scheduled intervention.
	SendInterventionReminderEmail(ctx context.Context, toEmail, interventionType, scheduledDate, windowLabel, detailURL string) error
	// SendCustomEmail sends an arbitrary HTML email.
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender is used when email delivery is disabled. Sends succeed silently.
type NoopSender struct{}

func (NoopSender) SendInterventionUpdateEmail(context.Context, string, string, string, string, string) error {
	return nil
}

func (NoopSender) SendInterventionReminderEmail(context.Context, string, string, string, string, string) error {
	return nil
}

func (NoopSender) SendCustomEmail(context.Context, string, string, string) error {
	return nil
}

// NewSender builds the configured Sender. With EMAIL_ENABLED=false a noop
// sender is returned so the rest of the pipeline behaves identically.
func NewSender(cfg config.EmailConfig) (Sender, error) {
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
	), nil
}
