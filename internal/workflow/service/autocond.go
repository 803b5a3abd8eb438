package service

import (
	"context"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
)

// PaymentSettledCondition builds the auto-condition that moves a record to
// the successor stage implying a completed payment once the record's payment
// transaction has settled. It fires only from stages that actually have such
// a successor, so registering it for a whole workflow kind is safe.
func PaymentSettledCondition(effects SideEffectStore, catalogs *catalog.Set) AutoCondition {
	return func(ctx context.Context, rec *repository.Record) (catalog.Stage, bool, error) {
		cat, err := catalogs.For(rec.Kind)
		if err != nil {
			return "", false, err
		}

		var target catalog.Stage
		for _, next := range cat.LegalNextStages(rec.Stage) {
			if ps := cat.ImpliedPaymentStatus(next); ps != nil && *ps == catalog.PaymentCompleted {
				target = next
				break
			}
		}
		if target == "" {
			return "", false, nil
		}

		tx, err := effects.ActivePaymentTransaction(ctx, rec.ID)
		if err != nil {
			return "", false, err
		}
		if tx == nil || tx.Status != catalog.PaymentCompleted {
			return "", false, nil
		}
		return target, true, nil
	}
}
