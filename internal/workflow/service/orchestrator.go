package service

import (
	"context"

	"brokerage_backend/internal/events"
	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/platform/apperr"

	"github.com/google/uuid"
)

// AdvanceOptions tunes a single Advance call.
type AdvanceOptions struct {
	// Resync corrects status drift before validating, instead of rejecting
	// the transition outright.
	Resync bool
}

// Advance moves a record to the target stage. The order of operations is
// fixed: fetch, validate, provision side effects, conditional stage write,
// audit, publish. Side effects are provisioned before the stage write so that
// a record is never observable in a stage whose resources are missing; if
// provisioning fails the stage does not change and the call is retryable.
func (s *Service) Advance(ctx context.Context, recordID uuid.UUID, target catalog.Stage, actorID uuid.UUID, opts AdvanceOptions) (*repository.Record, error) {
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	cat, err := s.catalogs.For(rec.Kind)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "unknown workflow kind", err)
	}

	if opts.Resync && isDrifted(cat, rec) {
		res, err := s.Resync(ctx, recordID, actorID)
		if err != nil {
			return nil, err
		}
		rec = res.Record
	}

	if err := ValidateTransition(cat, rec, target, opts.Resync); err != nil {
		return nil, err
	}

	// Same-stage request: accepted as a no-op, but provisioning still runs so
	// a retry after a partial failure converges.
	if target == rec.Stage {
		if err := s.provisionSideEffects(ctx, rec, target); err != nil {
			return nil, err
		}
		return rec, nil
	}

	if err := s.provisionSideEffects(ctx, rec, target); err != nil {
		return nil, err
	}

	status, ok := cat.ImpliedStatus(target)
	if !ok {
		return nil, apperr.Internal("target stage missing from catalog after validation")
	}
	fields := repository.StageFields{
		Stage:         target,
		Status:        status,
		PaymentStatus: cat.ImpliedPaymentStatus(target),
		UpdatedAt:     s.clk.Now(),
	}

	updated, err := s.records.UpdateStage(ctx, recordID, fields, rec.Version)
	if err != nil {
		return nil, err
	}

	// The written fields were derived from the catalog, so the record cannot
	// be drifted here unless the store misbehaved.
	if isDrifted(cat, updated) {
		s.log.Error("record drifted immediately after stage write", "record_id", updated.ID, "stage", updated.Stage)
	}

	s.log.StageTransition(updated.ID.String(), string(updated.Kind), string(rec.Stage), string(target), actorID.String())

	s.appendAudit(ctx, repository.AuditEntry{
		ID:             uuid.New(),
		RecordID:       updated.ID,
		OrganizationID: updated.OrganizationID,
		Action:         repository.AuditActionStageAdvanced,
		FromStage:      stagePtr(rec.Stage),
		ToStage:        stagePtr(target),
		FromStatus:     statusPtr(rec.Status),
		ToStatus:       statusPtr(updated.Status),
		ActorID:        &actorID,
		CreatedAt:      s.clk.Now(),
	})

	s.publish(ctx, events.StageChanged{
		BaseEvent:      events.NewBaseEvent(),
		RecordID:       updated.ID,
		OrganizationID: updated.OrganizationID,
		Kind:           updated.Kind,
		Reference:      updated.Reference,
		FromStage:      rec.Stage,
		ToStage:        target,
		NewStatus:      updated.Status,
		ClientName:     updated.ClientName,
		ClientEmail:    updated.ClientEmail,
		ActorID:        actorID,
	})

	return updated, nil
}

// AutoAdvance evaluates the registered auto-conditions for a record and, if
// one fires, performs the proposed transition through the normal Advance path.
// It reports whether a transition happened.
func (s *Service) AutoAdvance(ctx context.Context, recordID uuid.UUID, actorID uuid.UUID) (*repository.Record, bool, error) {
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, false, err
	}

	for _, cond := range s.autoConds[rec.Kind] {
		target, fire, err := cond(ctx, rec)
		if err != nil {
			return nil, false, err
		}
		if !fire {
			continue
		}
		updated, err := s.Advance(ctx, recordID, target, actorID, AdvanceOptions{})
		if err != nil {
			return nil, false, err
		}
		return updated, true, nil
	}

	return rec, false, nil
}
