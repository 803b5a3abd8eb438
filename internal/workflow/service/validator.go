package service

import (
	"fmt"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/platform/apperr"
)

// TransitionRejection is attached to InvalidTransition errors so callers can
// render an actionable message without knowing the catalog.
type TransitionRejection struct {
	CurrentStage    catalog.Stage   `json:"currentStage"`
	TargetStage     catalog.Stage   `json:"targetStage"`
	LegalNextStages []catalog.Stage `json:"legalNextStages"`
	Reason          string          `json:"reason"`
}

// ValidateTransition decides whether a record may move to the target stage.
// It is a pure function over the record, the catalog, and the request:
//
//   - a transition to the record's current stage is accepted as a no-op, so
//     callers can retry idempotently;
//   - a drifted record (status inconsistent with stage) is rejected unless the
//     caller asked for resync-and-retry;
//   - otherwise the target must be a legal successor of the current stage.
func ValidateTransition(cat *catalog.Catalog, rec *repository.Record, target catalog.Stage, resyncRequested bool) error {
	if !cat.Contains(rec.Stage) {
		return apperr.Internal(fmt.Sprintf("record stage %q is not in the %s catalog", rec.Stage, cat.Kind()))
	}

	if target == rec.Stage {
		return nil
	}

	if isDrifted(cat, rec) && !resyncRequested {
		return apperr.Validation("record status has drifted from its stage; resync before transitioning").
			WithDetails(TransitionRejection{
				CurrentStage:    rec.Stage,
				TargetStage:     target,
				LegalNextStages: cat.LegalNextStages(rec.Stage),
				Reason:          "status_drift",
			})
	}

	for _, next := range cat.LegalNextStages(rec.Stage) {
		if next == target {
			return nil
		}
	}

	return apperr.Validation(fmt.Sprintf("transition from %s to %s is not allowed", rec.Stage, target)).
		WithDetails(TransitionRejection{
			CurrentStage:    rec.Stage,
			TargetStage:     target,
			LegalNextStages: cat.LegalNextStages(rec.Stage),
			Reason:          "illegal_transition",
		})
}

// isDrifted reports whether the record's denormalized fields disagree with
// what the catalog implies for its stage.
func isDrifted(cat *catalog.Catalog, rec *repository.Record) bool {
	implied, ok := cat.ImpliedStatus(rec.Stage)
	if !ok {
		return true
	}
	if rec.Status != implied {
		return true
	}

	impliedPayment := cat.ImpliedPaymentStatus(rec.Stage)
	switch {
	case impliedPayment == nil && rec.PaymentStatus == nil:
		return false
	case impliedPayment == nil || rec.PaymentStatus == nil:
		return true
	default:
		return *rec.PaymentStatus != *impliedPayment
	}
}
