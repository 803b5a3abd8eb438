package repository

import (
	"time"

	"brokerage_backend/internal/workflow/catalog"

	"github.com/google/uuid"
)

// Record is the database model for a workflow record (quote or claim).
// Stage is authoritative; Status and PaymentStatus are denormalized from the
// stage catalog. Version is the optimistic-concurrency token: every update
// increments it and writes are conditional on the expected value.
type Record struct {
	ID             uuid.UUID              `db:"id"`
	OrganizationID uuid.UUID              `db:"organization_id"`
	Kind           catalog.Kind           `db:"kind"`
	Stage          catalog.Stage          `db:"stage"`
	Status         catalog.Status         `db:"status"`
	PaymentStatus  *catalog.PaymentStatus `db:"payment_status"`
	ClientName     string                 `db:"client_name"`
	ClientEmail    *string                `db:"client_email"`
	ClientPhone    *string                `db:"client_phone"`
	Reference      string                 `db:"reference"`
	AmountCents    int64                  `db:"amount_cents"`
	Currency       string                 `db:"currency"`
	Version        int64                  `db:"version"`
	CreatedAt      time.Time              `db:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at"`
}

// PaymentTransaction is a stage-scoped payment resource. At most one exists
// per record; once completed, PaidAt is set and the row is immutable.
type PaymentTransaction struct {
	ID             uuid.UUID             `db:"id"`
	RecordID       uuid.UUID             `db:"record_id"`
	OrganizationID uuid.UUID             `db:"organization_id"`
	AmountCents    int64                 `db:"amount_cents"`
	Currency       string                `db:"currency"`
	Status         catalog.PaymentStatus `db:"status"`
	PaidAt         *time.Time            `db:"paid_at"`
	CreatedAt      time.Time             `db:"created_at"`
}

// PortalLink is a client-facing access token for a record. A link is active
// while it is neither consumed (UsedAt set), nor expired by time, nor marked
// superseded. The partial unique index over active rows makes the store the
// arbiter when two provisioners race.
type PortalLink struct {
	ID             uuid.UUID  `db:"id"`
	RecordID       uuid.UUID  `db:"record_id"`
	OrganizationID uuid.UUID  `db:"organization_id"`
	Token          string     `db:"token"`
	ExpiresAt      time.Time  `db:"expires_at"`
	UsedAt         *time.Time `db:"used_at"`
	Superseded     bool       `db:"superseded"`
	CreatedAt      time.Time  `db:"created_at"`
}

// AuditEntry is an append-only trail entry. Entries are never updated or
// deleted.
type AuditEntry struct {
	ID             uuid.UUID  `db:"id"`
	RecordID       uuid.UUID  `db:"record_id"`
	OrganizationID uuid.UUID  `db:"organization_id"`
	Action         string     `db:"action"`
	FromStage      *string    `db:"from_stage"`
	ToStage        *string    `db:"to_stage"`
	FromStatus     *string    `db:"from_status"`
	ToStatus       *string    `db:"to_status"`
	ActorID        *uuid.UUID `db:"actor_id"`
	CreatedAt      time.Time  `db:"created_at"`
}

// Audit action kinds.
const (
	AuditActionStageAdvanced      = "stage_advanced"
	AuditActionStatusResynced     = "status_resynced"
	AuditActionPaymentProvisioned = "payment_provisioned"
	AuditActionPaymentCompleted   = "payment_completed"
	AuditActionPortalLinkIssued   = "portal_link_issued"
	AuditActionPortalLinkConsumed = "portal_link_consumed"
)

// StageFields are the denormalized fields written together on a transition.
type StageFields struct {
	Stage         catalog.Stage
	Status        catalog.Status
	PaymentStatus *catalog.PaymentStatus
	UpdatedAt     time.Time
}

// Filter narrows Query results.
type Filter struct {
	OrganizationID *uuid.UUID
	Kind           *catalog.Kind
	Stages         []catalog.Stage
	Limit          int
}
