// Package email renders and delivers client-facing mail for the workflow
// engine. Templates are embedded so the binary is self-contained.
package email

import "context"

// Sender delivers workflow mail. Implementations must be safe for concurrent
// use; the notification module calls them from event handler goroutines.
type Sender interface {
	SendPortalLinkEmail(ctx context.Context, toEmail, clientName, reference, portalURL, expiresAt string) error
	SendStageChangedEmail(ctx context.Context, toEmail, clientName, reference, newStage string) error
	SendPaymentReceiptEmail(ctx context.Context, toEmail, clientName, reference, amountFormatted string) error
}

// Noop discards all mail. Used when EMAIL_ENABLED is off, so the rest of the
// system never has to check a flag.
type Noop struct{}

func (Noop) SendPortalLinkEmail(context.Context, string, string, string, string, string) error {
	return nil
}

func (Noop) SendStageChangedEmail(context.Context, string, string, string, string) error {
	return nil
}

func (Noop) SendPaymentReceiptEmail(context.Context, string, string, string, string) error {
	return nil
}
