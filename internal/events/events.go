// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Workflow Domain Events
// =============================================================================

// RecordCreated is published when a new workflow record enters its catalog's
// entry stage.
type RecordCreated struct {
	BaseEvent
	RecordID       uuid.UUID    `json:"recordId"`
	OrganizationID uuid.UUID    `json:"organizationId"`
	Kind           catalog.Kind `json:"kind"`
	Reference      string       `json:"reference"`
	ActorID        uuid.UUID    `json:"actorId"`
}

func (e RecordCreated) EventName() string { return "workflow.record.created" }

// StageChanged is published after a successful orchestrated transition.
type StageChanged struct {
	BaseEvent
	RecordID       uuid.UUID      `json:"recordId"`
	OrganizationID uuid.UUID      `json:"organizationId"`
	Kind           catalog.Kind   `json:"kind"`
	Reference      string         `json:"reference"`
	FromStage      catalog.Stage  `json:"fromStage"`
	ToStage        catalog.Stage  `json:"toStage"`
	NewStatus      catalog.Status `json:"newStatus"`
	ClientName     string         `json:"clientName"`
	ClientEmail    *string        `json:"clientEmail,omitempty"`
	ActorID        uuid.UUID      `json:"actorId"`
}

func (e StageChanged) EventName() string { return "workflow.stage.changed" }

// PortalLinkIssued is published when a client portal link is provisioned.
type PortalLinkIssued struct {
	BaseEvent
	RecordID       uuid.UUID `json:"recordId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Reference      string    `json:"reference"`
	Token          string    `json:"token"`
	ExpiresAt      time.Time `json:"expiresAt"`
	ClientName     string    `json:"clientName"`
	ClientEmail    *string   `json:"clientEmail,omitempty"`
}

func (e PortalLinkIssued) EventName() string { return "workflow.portal_link.issued" }

// PaymentCompleted is published when a payment transaction settles.
type PaymentCompleted struct {
	BaseEvent
	TransactionID  uuid.UUID `json:"transactionId"`
	RecordID       uuid.UUID `json:"recordId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	AmountCents    int64     `json:"amountCents"`
	Currency       string    `json:"currency"`
	PaidAt         time.Time `json:"paidAt"`
	Reference      string    `json:"reference"`
	ClientName     string    `json:"clientName"`
	ClientEmail    *string   `json:"clientEmail,omitempty"`
}

func (e PaymentCompleted) EventName() string { return "workflow.payment.completed" }
