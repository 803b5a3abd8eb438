package notification

import (
	"context"
	"testing"
	"time"

	"brokerage_backend/internal/events"
	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeSender struct {
	portalLinks []sentPortalLink
	stageMails  []sentStageMail
	receipts    []sentReceipt
}

type sentPortalLink struct {
	to, name, reference, url, expires string
}

type sentStageMail struct {
	to, name, reference, stage string
}

type sentReceipt struct {
	to, name, reference, amount string
}

func (f *fakeSender) SendPortalLinkEmail(_ context.Context, to, name, reference, url, expires string) error {
	f.portalLinks = append(f.portalLinks, sentPortalLink{to, name, reference, url, expires})
	return nil
}

func (f *fakeSender) SendStageChangedEmail(_ context.Context, to, name, reference, stage string) error {
	f.stageMails = append(f.stageMails, sentStageMail{to, name, reference, stage})
	return nil
}

func (f *fakeSender) SendPaymentReceiptEmail(_ context.Context, to, name, reference, amount string) error {
	f.receipts = append(f.receipts, sentReceipt{to, name, reference, amount})
	return nil
}

type fakeConfig struct{}

func (fakeConfig) GetAppBaseURL() string      { return "https://portal.example.com/" }
func (fakeConfig) GetEmailEnabled() bool      { return false }
func (fakeConfig) GetSMTPHost() string        { return "" }
func (fakeConfig) GetSMTPPort() int           { return 0 }
func (fakeConfig) GetSMTPUsername() string    { return "" }
func (fakeConfig) GetSMTPPassword() string    { return "" }
func (fakeConfig) GetEmailFromName() string   { return "Test" }
func (fakeConfig) GetEmailFromAddress() string { return "noreply@example.com" }

func newTestModule() (*Module, *fakeSender) {
	m := NewModule(fakeConfig{}, logger.New("development"))
	sender := &fakeSender{}
	m.SetSender(sender)
	return m, sender
}

func TestPortalLinkIssuedSendsEmail(t *testing.T) {
	m, sender := newTestModule()
	email := "client@example.com"

	err := m.Handle(context.Background(), events.PortalLinkIssued{
		BaseEvent:   events.NewBaseEvent(),
		RecordID:    uuid.New(),
		Reference:   "Q-ABC123",
		Token:       "tok-secret",
		ExpiresAt:   time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC),
		ClientName:  "A. Jansen",
		ClientEmail: &email,
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(sender.portalLinks) != 1 {
		t.Fatalf("sent %d portal link mails, want 1", len(sender.portalLinks))
	}
	sent := sender.portalLinks[0]
	if sent.to != email {
		t.Fatalf("to = %s, want %s", sent.to, email)
	}
	if sent.url != "https://portal.example.com/portal/tok-secret" {
		t.Fatalf("url = %s", sent.url)
	}
	if sent.expires != "4 June 2025 12:00" {
		t.Fatalf("expires = %s", sent.expires)
	}
}

func TestPortalLinkIssuedWithoutEmailIsSkipped(t *testing.T) {
	m, sender := newTestModule()

	err := m.Handle(context.Background(), events.PortalLinkIssued{
		BaseEvent:  events.NewBaseEvent(),
		RecordID:   uuid.New(),
		Reference:  "Q-ABC123",
		Token:      "tok-secret",
		ClientName: "A. Jansen",
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(sender.portalLinks) != 0 {
		t.Fatal("no mail should be sent without a client address")
	}
}

func TestStageChangedSendsHumanizedStage(t *testing.T) {
	m, sender := newTestModule()
	email := "client@example.com"

	err := m.Handle(context.Background(), events.StageChanged{
		BaseEvent:   events.NewBaseEvent(),
		RecordID:    uuid.New(),
		Reference:   "C-XYZ789",
		FromStage:   catalog.StageClaimInvestigating,
		ToStage:     catalog.StageClaimApprovalPending,
		ClientName:  "B. de Vries",
		ClientEmail: &email,
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(sender.stageMails) != 1 {
		t.Fatalf("sent %d stage mails, want 1", len(sender.stageMails))
	}
	if sender.stageMails[0].stage != "approval pending" {
		t.Fatalf("stage = %q, want humanized form", sender.stageMails[0].stage)
	}
}

func TestPaymentCompletedSendsReceipt(t *testing.T) {
	m, sender := newTestModule()
	email := "client@example.com"

	err := m.Handle(context.Background(), events.PaymentCompleted{
		BaseEvent:     events.NewBaseEvent(),
		TransactionID: uuid.New(),
		RecordID:      uuid.New(),
		AmountCents:   125000,
		Currency:      "EUR",
		PaidAt:        time.Now(),
		Reference:     "Q-ABC123",
		ClientName:    "A. Jansen",
		ClientEmail:   &email,
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	if len(sender.receipts) != 1 {
		t.Fatalf("sent %d receipts, want 1", len(sender.receipts))
	}
	sent := sender.receipts[0]
	if sent.to != email || sent.reference != "Q-ABC123" {
		t.Fatalf("receipt = %+v", sent)
	}
	if sent.amount != "EUR 1250.00" {
		t.Fatalf("amount = %q, want formatted euros", sent.amount)
	}
}

func TestPaymentCompletedWithoutEmailIsSkipped(t *testing.T) {
	m, sender := newTestModule()

	err := m.Handle(context.Background(), events.PaymentCompleted{
		BaseEvent:     events.NewBaseEvent(),
		TransactionID: uuid.New(),
		RecordID:      uuid.New(),
		AmountCents:   125000,
		Currency:      "EUR",
		PaidAt:        time.Now(),
	})
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(sender.receipts) != 0 {
		t.Fatal("no receipt should be sent without a client address")
	}
}

func TestHandlerReceivesEventsThroughBus(t *testing.T) {
	m, sender := newTestModule()
	bus := events.NewInMemoryBus(logger.New("development"))
	m.RegisterHandlers(bus)

	email := "client@example.com"
	if err := bus.PublishSync(context.Background(), events.PortalLinkIssued{
		BaseEvent:   events.NewBaseEvent(),
		RecordID:    uuid.New(),
		Reference:   "Q-ABC123",
		Token:       "tok-secret",
		ExpiresAt:   time.Now().Add(72 * time.Hour),
		ClientName:  "A. Jansen",
		ClientEmail: &email,
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if len(sender.portalLinks) != 1 {
		t.Fatal("subscribed handler should have received the event")
	}
}
