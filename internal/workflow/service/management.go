package service

import (
	"context"
	"fmt"
	"strings"

	"brokerage_backend/internal/events"
	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/platform/apperr"
	"brokerage_backend/platform/phone"

	"github.com/google/uuid"
)

// CreateRecordParams carries the caller-supplied fields for a new record.
// Stage, status, and version are never caller-supplied; they come from the
// catalog's entry stage.
type CreateRecordParams struct {
	OrganizationID uuid.UUID
	Kind           catalog.Kind
	ClientName     string
	ClientEmail    *string
	ClientPhone    *string
	Reference      string
	AmountCents    int64
	Currency       string
}

// CreateRecord opens a new workflow record at its catalog's entry stage.
func (s *Service) CreateRecord(ctx context.Context, params CreateRecordParams, actorID uuid.UUID) (*repository.Record, error) {
	cat, err := s.catalogs.For(params.Kind)
	if err != nil {
		return nil, apperr.BadRequest(fmt.Sprintf("unknown workflow kind %q", params.Kind))
	}

	if params.ClientPhone != nil && *params.ClientPhone != "" {
		normalized, err := phone.NormalizeE164(*params.ClientPhone)
		if err != nil {
			return nil, apperr.Validation("client phone number is not valid")
		}
		params.ClientPhone = &normalized
	}

	entry := cat.Entry()
	status, _ := cat.ImpliedStatus(entry)
	now := s.clk.Now()

	rec := &repository.Record{
		ID:             uuid.New(),
		OrganizationID: params.OrganizationID,
		Kind:           params.Kind,
		Stage:          entry,
		Status:         status,
		PaymentStatus:  cat.ImpliedPaymentStatus(entry),
		ClientName:     params.ClientName,
		ClientEmail:    params.ClientEmail,
		ClientPhone:    params.ClientPhone,
		Reference:      params.Reference,
		AmountCents:    params.AmountCents,
		Currency:       params.Currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if rec.Reference == "" {
		rec.Reference = newReference(params.Kind, rec.ID)
	}
	if rec.Currency == "" {
		rec.Currency = s.cfg.GetDefaultCurrency()
	}

	if err := s.records.Insert(ctx, rec); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, repository.AuditEntry{
		ID:             uuid.New(),
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		Action:         repository.AuditActionStageAdvanced,
		ToStage:        stagePtr(entry),
		ToStatus:       statusPtr(status),
		ActorID:        &actorID,
		CreatedAt:      now,
	})

	s.publish(ctx, events.RecordCreated{
		BaseEvent:      events.NewBaseEvent(),
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		Kind:           rec.Kind,
		Reference:      rec.Reference,
		ActorID:        actorID,
	})

	return rec, nil
}

// GetRecord fetches a record scoped to an organization.
func (s *Service) GetRecord(ctx context.Context, orgID, recordID uuid.UUID) (*repository.Record, error) {
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.OrganizationID != orgID {
		return nil, apperr.NotFound("record not found")
	}
	return rec, nil
}

// ListRecords returns an organization's records, optionally narrowed by kind
// and stages, oldest-updated first.
func (s *Service) ListRecords(ctx context.Context, orgID uuid.UUID, kind *catalog.Kind, stages []catalog.Stage, limit int) ([]repository.Record, error) {
	return s.records.Query(ctx, repository.Filter{
		OrganizationID: &orgID,
		Kind:           kind,
		Stages:         stages,
		Limit:          limit,
	})
}

// AuditTrail returns a record's audit entries, oldest first.
func (s *Service) AuditTrail(ctx context.Context, orgID, recordID uuid.UUID) ([]repository.AuditEntry, error) {
	if _, err := s.GetRecord(ctx, orgID, recordID); err != nil {
		return nil, err
	}
	return s.audit.ListByRecord(ctx, recordID)
}

// LegalNextStages exposes the legal successors of a record's current stage,
// so clients can render the right actions without duplicating the catalog.
func (s *Service) LegalNextStages(ctx context.Context, orgID, recordID uuid.UUID) ([]catalog.Stage, error) {
	rec, err := s.GetRecord(ctx, orgID, recordID)
	if err != nil {
		return nil, err
	}
	cat, err := s.catalogs.For(rec.Kind)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "unknown workflow kind", err)
	}
	return cat.LegalNextStages(rec.Stage), nil
}

// PaymentForRecord returns a record's payment transaction scoped to an
// organization, or nil when none has been provisioned yet.
func (s *Service) PaymentForRecord(ctx context.Context, orgID, recordID uuid.UUID) (*repository.PaymentTransaction, error) {
	if _, err := s.GetRecord(ctx, orgID, recordID); err != nil {
		return nil, err
	}
	return s.effects.ActivePaymentTransaction(ctx, recordID)
}

// newReference derives a human-readable reference from the record id.
func newReference(kind catalog.Kind, id uuid.UUID) string {
	prefix := "Q"
	if kind == catalog.KindClaim {
		prefix = "C"
	}
	short := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))[:10]
	return fmt.Sprintf("%s-%s", prefix, short)
}
