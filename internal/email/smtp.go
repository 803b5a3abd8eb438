package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements the Sender interface using a direct SMTP connection
// via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
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

func (s *SMTPSender) SendPortalLinkEmail(ctx context.Context, toEmail, clientName, reference, portalURL, expiresAt string) error {
	content, err := renderEmailTemplate("portal_link.html", portalLinkEmailData{
		baseEmailData: baseEmailData{
			Title:    "Your secure link",
			Heading:  "A decision is waiting for you",
			CTALabel: "Open secure link",
			CTAURL:   portalURL,
		},
		ClientName: clientName,
		Reference:  reference,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectPortalLinkFmt, reference), content)
}

func (s *SMTPSender) SendStageChangedEmail(ctx context.Context, toEmail, clientName, reference, newStage string) error {
	content, err := renderEmailTemplate("stage_changed.html", stageChangedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Status update",
			Heading: "Your file has been updated",
		},
		ClientName: clientName,
		Reference:  reference,
		NewStage:   newStage,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectStageChangedFmt, reference), content)
}

func (s *SMTPSender) SendPaymentReceiptEmail(ctx context.Context, toEmail, clientName, reference, amountFormatted string) error {
	content, err := renderEmailTemplate("payment_receipt.html", paymentReceiptEmailData{
		baseEmailData: baseEmailData{
			Title:   "Payment received",
			Heading: "Payment received",
		},
		ClientName:      clientName,
		Reference:       reference,
		AmountFormatted: amountFormatted,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectPaymentReceiptFmt, reference), content)
}

var _ Sender = (*SMTPSender)(nil)
