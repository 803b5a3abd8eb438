package service

import (
	"context"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/platform/apperr"

	"github.com/google/uuid"
)

// PortalView is what an unauthenticated client sees when opening their link.
// It deliberately excludes internal fields.
type PortalView struct {
	Reference   string          `json:"reference"`
	Kind        catalog.Kind    `json:"kind"`
	Stage       catalog.Stage   `json:"stage"`
	ClientName  string          `json:"clientName"`
	AmountCents int64           `json:"amountCents"`
	Currency    string          `json:"currency"`
	Decisions   []catalog.Stage `json:"decisions"`
}

// ResolvePortalLink validates a portal token and returns the client-facing
// view of the record behind it. Expired and consumed links are gone, not
// missing, so a client gets a distinct message from a mistyped token.
func (s *Service) ResolvePortalLink(ctx context.Context, token string) (*PortalView, error) {
	link, err := s.activeLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	rec, err := s.records.Get(ctx, link.RecordID)
	if err != nil {
		return nil, err
	}

	cat, err := s.catalogs.For(rec.Kind)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "unknown workflow kind", err)
	}

	return &PortalView{
		Reference:   rec.Reference,
		Kind:        rec.Kind,
		Stage:       rec.Stage,
		ClientName:  rec.ClientName,
		AmountCents: rec.AmountCents,
		Currency:    rec.Currency,
		Decisions:   cat.LegalNextStages(rec.Stage),
	}, nil
}

// SubmitPortalDecision advances the record to the client's chosen stage and
// consumes the portal link. The link is single-use, but only a decision that
// took effect burns it: a rejected or transiently failed advance leaves the
// link usable so the client can try again.
func (s *Service) SubmitPortalDecision(ctx context.Context, token string, decision catalog.Stage) (*repository.Record, error) {
	link, err := s.activeLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	rec, err := s.records.Get(ctx, link.RecordID)
	if err != nil {
		return nil, err
	}

	// The client acts on their own behalf; there is no staff actor id.
	updated, err := s.Advance(ctx, rec.ID, decision, uuid.Nil, AdvanceOptions{})
	if err != nil {
		return nil, err
	}

	// The decision is already applied; a lost consume race is logged, not
	// surfaced. A replay through the surviving link is a same-stage no-op.
	now := s.clk.Now()
	if _, err := s.effects.ConsumePortalLink(ctx, link.ID, now); err != nil {
		s.log.Warn("portal link consumption failed after decision", "record_id", rec.ID, "error", err)
		return updated, nil
	}

	s.appendAudit(ctx, repository.AuditEntry{
		ID:             uuid.New(),
		RecordID:       rec.ID,
		OrganizationID: rec.OrganizationID,
		Action:         repository.AuditActionPortalLinkConsumed,
		CreatedAt:      now,
	})

	return updated, nil
}

// ExpirePortalLinks supersedes a record's time-expired links. Invoked by the
// scheduled housekeeping task at the link's expiry instant; running it early,
// late, or repeatedly is harmless.
func (s *Service) ExpirePortalLinks(ctx context.Context, recordID uuid.UUID) (int64, error) {
	return s.effects.SupersedeExpiredLinks(ctx, recordID, s.clk.Now())
}

func (s *Service) activeLinkByToken(ctx context.Context, token string) (*repository.PortalLink, error) {
	link, err := s.effects.PortalLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if link.UsedAt != nil {
		return nil, apperr.Gone("this link has already been used")
	}
	if link.Superseded || !link.ExpiresAt.After(s.clk.Now()) {
		return nil, apperr.Gone("this link has expired")
	}
	return link, nil
}
