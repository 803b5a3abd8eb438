package service

import (
	"context"

	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/platform/apperr"

	"github.com/google/uuid"
)

// ResyncResult reports the outcome of a consistency pass over one record.
type ResyncResult struct {
	Record    *repository.Record
	Changed   bool
	OldStatus string
	NewStatus string
}

// Resync forces a record's denormalized status fields back to what the stage
// catalog implies, treating the stage as authoritative. A consistent record is
// left untouched, so the operation is idempotent and safe to run in a sweep.
func (s *Service) Resync(ctx context.Context, recordID uuid.UUID, actorID uuid.UUID) (*ResyncResult, error) {
	rec, err := s.records.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	cat, err := s.catalogs.For(rec.Kind)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "unknown workflow kind", err)
	}

	if !cat.Contains(rec.Stage) {
		return nil, apperr.Internal("record stage is not in its catalog; cannot derive status")
	}

	if !isDrifted(cat, rec) {
		return &ResyncResult{Record: rec, Changed: false, OldStatus: string(rec.Status), NewStatus: string(rec.Status)}, nil
	}

	implied, _ := cat.ImpliedStatus(rec.Stage)
	fields := repository.StageFields{
		Stage:         rec.Stage,
		Status:        implied,
		PaymentStatus: cat.ImpliedPaymentStatus(rec.Stage),
		UpdatedAt:     s.clk.Now(),
	}

	updated, err := s.records.UpdateStage(ctx, recordID, fields, rec.Version)
	if err != nil {
		return nil, err
	}

	s.log.DriftCorrected(updated.ID.String(), string(rec.Status), string(updated.Status))

	s.appendAudit(ctx, repository.AuditEntry{
		ID:             uuid.New(),
		RecordID:       updated.ID,
		OrganizationID: updated.OrganizationID,
		Action:         repository.AuditActionStatusResynced,
		FromStatus:     statusPtr(rec.Status),
		ToStatus:       statusPtr(updated.Status),
		ActorID:        &actorID,
		CreatedAt:      s.clk.Now(),
	})

	return &ResyncResult{
		Record:    updated,
		Changed:   true,
		OldStatus: string(rec.Status),
		NewStatus: string(updated.Status),
	}, nil
}

// ResyncSweep runs Resync over every record matching the filter and returns
// the ids that were corrected. Individual failures do not abort the sweep.
func (s *Service) ResyncSweep(ctx context.Context, filter repository.Filter, actorID uuid.UUID) ([]uuid.UUID, error) {
	recs, err := s.records.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	corrected := make([]uuid.UUID, 0)
	for _, rec := range recs {
		res, err := s.Resync(ctx, rec.ID, actorID)
		if err != nil {
			s.log.Warn("resync sweep: record failed", "record_id", rec.ID, "error", err)
			continue
		}
		if res.Changed {
			corrected = append(corrected, rec.ID)
		}
	}
	return corrected, nil
}
