package service

import (
	"context"
	"testing"
	"time"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/platform/apperr"
)

func TestResolvePortalLinkReturnsClientView(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecord(t, catalog.KindQuote, catalog.StageClientSelection)
	ctx := context.Background()

	link, err := env.svc.EnsurePortalLink(ctx, rec)
	if err != nil {
		t.Fatalf("provision link: %v", err)
	}

	view, err := env.svc.ResolvePortalLink(ctx, link.Token)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if view.Reference != rec.Reference || view.ClientName != rec.ClientName {
		t.Fatalf("view = %+v", view)
	}
	if view.AmountCents != rec.AmountCents || view.Currency != rec.Currency {
		t.Fatalf("view amount = %d %s", view.AmountCents, view.Currency)
	}
	if len(view.Decisions) != 3 {
		t.Fatalf("decisions = %v, want the three client choices", view.Decisions)
	}
}

func TestResolvePortalLinkUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.ResolvePortalLink(context.Background(), "no-such-token")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSubmitPortalDecisionAdvancesAndConsumes(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecord(t, catalog.KindQuote, catalog.StageClientSelection)
	ctx := context.Background()

	link, err := env.svc.EnsurePortalLink(ctx, rec)
	if err != nil {
		t.Fatalf("provision link: %v", err)
	}

	updated, err := env.svc.SubmitPortalDecision(ctx, link.Token, catalog.StageClientApproved)
	if err != nil {
		t.Fatalf("decision failed: %v", err)
	}
	if updated.Stage != catalog.StageClientApproved {
		t.Fatalf("stage = %s, want client_approved", updated.Stage)
	}
	if updated.Status != catalog.StatusAccepted {
		t.Fatalf("status = %s, want accepted", updated.Status)
	}

	// The link is single-use.
	_, err = env.svc.SubmitPortalDecision(ctx, link.Token, catalog.StageQuoteRejected)
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone on second use, got %v", err)
	}
	_, err = env.svc.ResolvePortalLink(ctx, link.Token)
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone on resolve after use, got %v", err)
	}
}

func TestSubmitPortalDecisionRejectsIllegalChoice(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecord(t, catalog.KindQuote, catalog.StageClientSelection)
	ctx := context.Background()

	link, err := env.svc.EnsurePortalLink(ctx, rec)
	if err != nil {
		t.Fatalf("provision link: %v", err)
	}

	_, err = env.svc.SubmitPortalDecision(ctx, link.Token, catalog.StageQuoteCompleted)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation rejection, got %v", err)
	}

	// A rejected decision must not burn the link.
	if _, err := env.svc.ResolvePortalLink(ctx, link.Token); err != nil {
		t.Fatalf("link should still be usable: %v", err)
	}
}

func TestSubmitPortalDecisionKeepsLinkOnWriteConflict(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecord(t, catalog.KindQuote, catalog.StageClientSelection)
	ctx := context.Background()

	link, err := env.svc.EnsurePortalLink(ctx, rec)
	if err != nil {
		t.Fatalf("provision link: %v", err)
	}

	// A concurrent writer wins the stage write. The decision did not take
	// effect, so the single-use link must survive for a retry.
	env.records.conflictNext = true
	_, err = env.svc.SubmitPortalDecision(ctx, link.Token, catalog.StageClientApproved)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := env.svc.ResolvePortalLink(ctx, link.Token); err != nil {
		t.Fatalf("link should still be usable after a failed advance: %v", err)
	}

	updated, err := env.svc.SubmitPortalDecision(ctx, link.Token, catalog.StageClientApproved)
	if err != nil {
		t.Fatalf("retried decision failed: %v", err)
	}
	if updated.Stage != catalog.StageClientApproved {
		t.Fatalf("stage = %s, want client_approved", updated.Stage)
	}
}

func TestPortalLinkExpiresWithTime(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecord(t, catalog.KindQuote, catalog.StageClientSelection)
	ctx := context.Background()

	link, err := env.svc.EnsurePortalLink(ctx, rec)
	if err != nil {
		t.Fatalf("provision link: %v", err)
	}

	env.clk.Advance(73 * time.Hour)

	_, err = env.svc.ResolvePortalLink(ctx, link.Token)
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone for expired link, got %v", err)
	}
	_, err = env.svc.SubmitPortalDecision(ctx, link.Token, catalog.StageClientApproved)
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("expected gone for expired decision, got %v", err)
	}
}

func TestExpirePortalLinksSupersedesStaleRows(t *testing.T) {
	env := newTestEnv(t)
	rec := env.seedRecord(t, catalog.KindQuote, catalog.StageClientSelection)
	ctx := context.Background()

	if _, err := env.svc.EnsurePortalLink(ctx, rec); err != nil {
		t.Fatalf("provision link: %v", err)
	}

	// Running before expiry touches nothing.
	n, err := env.svc.ExpirePortalLinks(ctx, rec.ID)
	if err != nil || n != 0 {
		t.Fatalf("early expiry run: n=%d err=%v", n, err)
	}

	env.clk.Advance(73 * time.Hour)

	n, err = env.svc.ExpirePortalLinks(ctx, rec.ID)
	if err != nil || n != 1 {
		t.Fatalf("expiry run: n=%d err=%v", n, err)
	}

	// Repeat runs are harmless.
	n, err = env.svc.ExpirePortalLinks(ctx, rec.ID)
	if err != nil || n != 0 {
		t.Fatalf("repeat expiry run: n=%d err=%v", n, err)
	}
}
