// Package notification provides event handlers for sending client emails in
// response to workflow events. The module subscribes to events and inverts
// the dependency: the workflow engine never knows about email providers or
// templates.
package notification

import (
	"context"
	"fmt"
	"strings"

	"brokerage_backend/internal/email"
	"brokerage_backend/internal/events"
	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"
)

// ModuleConfig combines the config interfaces the notification module needs.
type ModuleConfig interface {
	config.NotificationConfig
	config.EmailConfig
}

// Module handles all notification-related event subscriptions.
type Module struct {
	sender email.Sender
	cfg    ModuleConfig
	log    *logger.Logger
}

// NewModule creates the notification module. When email is disabled the
// sender is a no-op and all handlers become cheap.
func NewModule(cfg ModuleConfig, log *logger.Logger) *Module {
	var sender email.Sender = email.Noop{}
	if cfg.GetEmailEnabled() {
		sender = email.NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		)
	}
	return &Module{sender: sender, cfg: cfg, log: log}
}

// SetSender overrides the email sender, for tests.
func (m *Module) SetSender(sender email.Sender) {
	m.sender = sender
}

// RegisterHandlers subscribes to all relevant domain events on the event bus.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.StageChanged{}.EventName(), m)
	bus.Subscribe(events.PortalLinkIssued{}.EventName(), m)
	bus.Subscribe(events.PaymentCompleted{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.StageChanged:
		return m.handleStageChanged(ctx, e)
	case events.PortalLinkIssued:
		return m.handlePortalLinkIssued(ctx, e)
	case events.PaymentCompleted:
		return m.handlePaymentCompleted(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleStageChanged(ctx context.Context, e events.StageChanged) error {
	if e.ClientEmail == nil || *e.ClientEmail == "" {
		return nil
	}
	return m.sender.SendStageChangedEmail(ctx, *e.ClientEmail, e.ClientName, e.Reference, humanizeStage(string(e.ToStage)))
}

func (m *Module) handlePortalLinkIssued(ctx context.Context, e events.PortalLinkIssued) error {
	if e.ClientEmail == nil || *e.ClientEmail == "" {
		m.log.Warn("portal link issued without client email", "record_id", e.RecordID)
		return nil
	}

	portalURL := fmt.Sprintf("%s/portal/%s", strings.TrimRight(m.cfg.GetAppBaseURL(), "/"), e.Token)
	expires := e.ExpiresAt.Format("2 January 2006 15:04")
	return m.sender.SendPortalLinkEmail(ctx, *e.ClientEmail, e.ClientName, e.Reference, portalURL, expires)
}

func (m *Module) handlePaymentCompleted(ctx context.Context, e events.PaymentCompleted) error {
	m.log.Info("payment completed",
		"record_id", e.RecordID,
		"transaction_id", e.TransactionID,
		"amount_cents", e.AmountCents,
		"currency", e.Currency,
	)
	if e.ClientEmail == nil || *e.ClientEmail == "" {
		return nil
	}
	return m.sender.SendPaymentReceiptEmail(ctx, *e.ClientEmail, e.ClientName, e.Reference, formatAmount(e.AmountCents, e.Currency))
}

// formatAmount renders cents as a human amount, e.g. "EUR 1250.00".
func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}

// humanizeStage turns a stage id like "approval-pending" into "approval pending".
func humanizeStage(stage string) string {
	return strings.NewReplacer("-", " ", "_", " ").Replace(stage)
}
