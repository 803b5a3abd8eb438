package service

import (
	"context"
	"fmt"
	"time"

	"brokerage_backend/internal/events"
	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/platform/apperr"

	"github.com/google/uuid"
)

// provisionSideEffects ensures every resource the target stage requires, in
// catalog-declared order. Provisioning is idempotent, so a retried advance
// after a partial failure is safe.
func (s *Service) provisionSideEffects(ctx context.Context, rec *repository.Record, target catalog.Stage) error {
	cat, err := s.catalogs.For(rec.Kind)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "unknown workflow kind", err)
	}

	for _, kind := range cat.RequiredSideEffects(target) {
		switch kind {
		case catalog.SideEffectPaymentTransaction:
			if _, err := s.EnsurePaymentTransaction(ctx, rec); err != nil {
				return err
			}
		case catalog.SideEffectClientPortalLink:
			if _, err := s.EnsurePortalLink(ctx, rec); err != nil {
				return err
			}
		default:
			return apperr.Internal(fmt.Sprintf("unknown side effect kind %q", kind))
		}
	}
	return nil
}

// EnsurePaymentTransaction returns the record's payment transaction, creating
// a pending one if none exists. Two concurrent calls cannot both create: the
// store's unique constraint picks the winner and the loser re-fetches.
func (s *Service) EnsurePaymentTransaction(ctx context.Context, rec *repository.Record) (*repository.PaymentTransaction, error) {
	existing, err := s.effects.ActivePaymentTransaction(ctx, rec.ID)
	if err != nil {
		return nil, wrapProvisioning(err)
	}
	if existing != nil {
		return existing, nil
	}

	tx := &repository.PaymentTransaction{
		ID:             uuid.New(),
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		AmountCents:    rec.AmountCents,
		Currency:       s.currencyFor(rec),
		Status:         catalog.PaymentPending,
		CreatedAt:      s.clk.Now(),
	}

	if err := s.effects.CreatePaymentTransaction(ctx, tx); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			// Lost the race: return the winner's transaction.
			winner, fetchErr := s.effects.ActivePaymentTransaction(ctx, rec.ID)
			if fetchErr != nil {
				return nil, wrapProvisioning(fetchErr)
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, wrapProvisioning(err)
	}

	s.appendAudit(ctx, repository.AuditEntry{
		ID:             uuid.New(),
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		Action:         repository.AuditActionPaymentProvisioned,
		CreatedAt:      s.clk.Now(),
	})

	return tx, nil
}

// EnsurePortalLink returns the record's active portal link, creating one if
// none exists. Re-invocation within the validity window returns the same
// token and never extends the expiry. Once the window has passed, a fresh
// link with a new token is created.
func (s *Service) EnsurePortalLink(ctx context.Context, rec *repository.Record) (*repository.PortalLink, error) {
	now := s.clk.Now()

	existing, err := s.effects.ActivePortalLink(ctx, rec.ID, now)
	if err != nil {
		return nil, wrapProvisioning(err)
	}
	if existing != nil {
		return existing, nil
	}

	link, err := s.createPortalLink(ctx, rec, now)
	if err == nil {
		return link, nil
	}
	if !apperr.Is(err, apperr.KindConflict) {
		return nil, err
	}

	// Unique violation: either a concurrent creator won, or a time-expired
	// link still occupies the active-row slot. Re-fetch, then clear stale
	// rows and retry once.
	winner, fetchErr := s.effects.ActivePortalLink(ctx, rec.ID, now)
	if fetchErr != nil {
		return nil, wrapProvisioning(fetchErr)
	}
	if winner != nil {
		return winner, nil
	}

	if _, err := s.effects.SupersedeExpiredLinks(ctx, rec.ID, now); err != nil {
		return nil, wrapProvisioning(err)
	}
	link, err = s.createPortalLink(ctx, rec, now)
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *Service) createPortalLink(ctx context.Context, rec *repository.Record, now time.Time) (*repository.PortalLink, error) {
	token, err := s.tokens.NewToken()
	if err != nil {
		return nil, wrapProvisioning(err)
	}

	link := &repository.PortalLink{
		ID:             uuid.New(),
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		Token:          token,
		ExpiresAt:      now.Add(s.cfg.GetPortalLinkTTL()),
		CreatedAt:      now,
	}

	if err := s.effects.CreatePortalLink(ctx, link); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, err
		}
		return nil, wrapProvisioning(err)
	}

	s.appendAudit(ctx, repository.AuditEntry{
		ID:             uuid.New(),
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		Action:         repository.AuditActionPortalLinkIssued,
		CreatedAt:      now,
	})

	if s.expiry != nil {
		if err := s.expiry.SchedulePortalLinkExpiry(ctx, rec.ID, link.ExpiresAt); err != nil {
			s.log.Warn("portal link expiry scheduling failed", "record_id", rec.ID, "error", err)
		}
	}

	s.publish(ctx, events.PortalLinkIssued{
		BaseEvent:      events.NewBaseEvent(),
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		Reference:      rec.Reference,
		Token:          link.Token,
		ExpiresAt:      link.ExpiresAt,
		ClientName:     rec.ClientName,
		ClientEmail:    rec.ClientEmail,
	})

	return link, nil
}

// CompletePayment settles a pending payment transaction exactly once, then
// attempts the payment-driven auto-transition for the owning record. The
// transaction must belong to the caller's organization.
func (s *Service) CompletePayment(ctx context.Context, orgID, transactionID uuid.UUID, actorID uuid.UUID) (*repository.PaymentTransaction, error) {
	existing, err := s.effects.GetPaymentTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	// A foreign tenant's transaction reads as missing, not forbidden, so
	// transaction ids do not leak across organizations.
	if existing.OrganizationID != orgID {
		return nil, apperr.NotFound("payment transaction not found")
	}

	paidAt := s.clk.Now()

	tx, err := s.effects.CompletePaymentTransaction(ctx, transactionID, paidAt)
	if err != nil {
		return nil, err
	}

	s.appendAudit(ctx, repository.AuditEntry{
		ID:             uuid.New(),
		RecordID:       tx.RecordID,
		OrganizationID: tx.OrganizationID,
		Action:         repository.AuditActionPaymentCompleted,
		ActorID:        &actorID,
		CreatedAt:      paidAt,
	})

	event := events.PaymentCompleted{
		BaseEvent:      events.NewBaseEvent(),
		TransactionID:  tx.ID,
		RecordID:       tx.RecordID,
		OrganizationID: tx.OrganizationID,
		AmountCents:    tx.AmountCents,
		Currency:       tx.Currency,
		PaidAt:         paidAt,
	}
	// Contact details ride on the event so the notification module can mail a
	// receipt without reaching back into the store. A failed lookup only costs
	// the mail, never the settlement.
	if rec, err := s.records.Get(ctx, tx.RecordID); err == nil {
		event.Reference = rec.Reference
		event.ClientName = rec.ClientName
		event.ClientEmail = rec.ClientEmail
	} else {
		s.log.Warn("record lookup for payment receipt failed", "record_id", tx.RecordID, "error", err)
	}
	s.publish(ctx, event)

	// The stage catches up through the registered auto-condition. Failure
	// here leaves a retryable state, not a broken one.
	if _, _, err := s.AutoAdvance(ctx, tx.RecordID, actorID); err != nil {
		s.log.Warn("auto-advance after payment completion failed", "record_id", tx.RecordID, "error", err)
	}

	return tx, nil
}

func (s *Service) currencyFor(rec *repository.Record) string {
	if rec.Currency != "" {
		return rec.Currency
	}
	return s.cfg.GetDefaultCurrency()
}

// wrapProvisioning marks an error as a side-effect provisioning failure. The
// orchestrator guarantees no stage write happens after one of these.
func wrapProvisioning(err error) error {
	return apperr.Wrap(apperr.KindInternal, "side-effect provisioning failed", err)
}
