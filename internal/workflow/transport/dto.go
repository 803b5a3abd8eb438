package transport

import (
	"time"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/internal/workflow/service"

	"github.com/google/uuid"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// CreateRecordRequest is the request body for opening a new workflow record.
type CreateRecordRequest struct {
	Kind        string  `json:"kind" validate:"required,oneof=quote claim"`
	ClientName  string  `json:"clientName" validate:"required,min=1,max=200"`
	ClientEmail *string `json:"clientEmail" validate:"omitempty,email"`
	ClientPhone *string `json:"clientPhone" validate:"omitempty,max=30"`
	Reference   string  `json:"reference" validate:"omitempty,max=50"`
	AmountCents int64   `json:"amountCents" validate:"min=0"`
	Currency    string  `json:"currency" validate:"omitempty,len=3"`
}

// ListRecordsRequest narrows the record listing.
type ListRecordsRequest struct {
	Kind   string   `form:"kind" validate:"omitempty,oneof=quote claim"`
	Stages []string `form:"stage" validate:"omitempty,dive,max=50"`
	Limit  int      `form:"limit" validate:"omitempty,min=1,max=500"`
}

// AdvanceRequest asks for a transition to a target stage. Resync corrects
// status drift before validating instead of rejecting the request.
type AdvanceRequest struct {
	TargetStage string `json:"targetStage" validate:"required,max=50"`
	Resync      bool   `json:"resync"`
}

// PortalDecisionRequest is the client's choice submitted through a portal link.
type PortalDecisionRequest struct {
	Decision string `json:"decision" validate:"required,max=50"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// RecordResponse is the API shape of a workflow record.
type RecordResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organizationId"`
	Kind           string    `json:"kind"`
	Stage          string    `json:"stage"`
	Status         string    `json:"status"`
	PaymentStatus  *string   `json:"paymentStatus,omitempty"`
	ClientName     string    `json:"clientName"`
	ClientEmail    *string   `json:"clientEmail,omitempty"`
	ClientPhone    *string   `json:"clientPhone,omitempty"`
	Reference      string    `json:"reference"`
	AmountCents    int64     `json:"amountCents"`
	Currency       string    `json:"currency"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ToRecordResponse maps a repository record to its API shape.
func ToRecordResponse(rec *repository.Record) RecordResponse {
	resp := RecordResponse{
		ID:             rec.ID,
		OrganizationID: rec.OrganizationID,
		Kind:           string(rec.Kind),
		Stage:          string(rec.Stage),
		Status:         string(rec.Status),
		ClientName:     rec.ClientName,
		ClientEmail:    rec.ClientEmail,
		ClientPhone:    rec.ClientPhone,
		Reference:      rec.Reference,
		AmountCents:    rec.AmountCents,
		Currency:       rec.Currency,
		Version:        rec.Version,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
	if rec.PaymentStatus != nil {
		v := string(*rec.PaymentStatus)
		resp.PaymentStatus = &v
	}
	return resp
}

// ToRecordResponses maps a slice of records.
func ToRecordResponses(recs []repository.Record) []RecordResponse {
	out := make([]RecordResponse, 0, len(recs))
	for i := range recs {
		out = append(out, ToRecordResponse(&recs[i]))
	}
	return out
}

// PaymentResponse is the API shape of a payment transaction.
type PaymentResponse struct {
	ID          uuid.UUID  `json:"id"`
	RecordID    uuid.UUID  `json:"recordId"`
	AmountCents int64      `json:"amountCents"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ToPaymentResponse maps a payment transaction to its API shape.
func ToPaymentResponse(tx *repository.PaymentTransaction) PaymentResponse {
	return PaymentResponse{
		ID:          tx.ID,
		RecordID:    tx.RecordID,
		AmountCents: tx.AmountCents,
		Currency:    tx.Currency,
		Status:      string(tx.Status),
		PaidAt:      tx.PaidAt,
		CreatedAt:   tx.CreatedAt,
	}
}

// PortalLinkResponse is the API shape of a portal link, for operators who
// need to re-send or copy a client's link.
type PortalLinkResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	UsedAt    *time.Time `json:"usedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ToPortalLinkResponse maps a portal link to its API shape.
func ToPortalLinkResponse(link *repository.PortalLink) PortalLinkResponse {
	return PortalLinkResponse{
		Token:     link.Token,
		ExpiresAt: link.ExpiresAt,
		UsedAt:    link.UsedAt,
		CreatedAt: link.CreatedAt,
	}
}

// AuditEntryResponse is the API shape of one audit trail entry.
type AuditEntryResponse struct {
	ID         uuid.UUID  `json:"id"`
	Action     string     `json:"action"`
	FromStage  *string    `json:"fromStage,omitempty"`
	ToStage    *string    `json:"toStage,omitempty"`
	FromStatus *string    `json:"fromStatus,omitempty"`
	ToStatus   *string    `json:"toStatus,omitempty"`
	ActorID    *uuid.UUID `json:"actorId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// ToAuditResponses maps audit entries to their API shape.
func ToAuditResponses(entries []repository.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryResponse{
			ID:         e.ID,
			Action:     e.Action,
			FromStage:  e.FromStage,
			ToStage:    e.ToStage,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			ActorID:    e.ActorID,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// ResyncResponse reports the outcome of a consistency pass.
type ResyncResponse struct {
	Record    RecordResponse `json:"record"`
	Changed   bool           `json:"changed"`
	OldStatus string         `json:"oldStatus"`
	NewStatus string         `json:"newStatus"`
}

// ToResyncResponse maps a resync result to its API shape.
func ToResyncResponse(res *service.ResyncResult) ResyncResponse {
	return ResyncResponse{
		Record:    ToRecordResponse(res.Record),
		Changed:   res.Changed,
		OldStatus: res.OldStatus,
		NewStatus: res.NewStatus,
	}
}

// ParseKind converts an optional query value to a catalog kind filter.
func ParseKind(raw string) *catalog.Kind {
	if raw == "" {
		return nil
	}
	k := catalog.Kind(raw)
	return &k
}

// ParseStages converts raw stage filters to catalog stages.
func ParseStages(raw []string) []catalog.Stage {
	if len(raw) == 0 {
		return nil
	}
	out := make([]catalog.Stage, 0, len(raw))
	for _, s := range raw {
		out = append(out, catalog.Stage(s))
	}
	return out
}
