package catalog

import (
	"strings"
	"testing"
	"time"
)

func TestLoadBuildsBothCatalogs(t *testing.T) {
	set, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	quotes, err := set.For(KindQuote)
	if err != nil {
		t.Fatalf("quote catalog lookup failed: %v", err)
	}
	if quotes.Entry() != StageQuoteDrafting {
		t.Fatalf("quote entry stage = %s, want %s", quotes.Entry(), StageQuoteDrafting)
	}

	claims, err := set.For(KindClaim)
	if err != nil {
		t.Fatalf("claim catalog lookup failed: %v", err)
	}
	if claims.Entry() != StageClaimRegistered {
		t.Fatalf("claim entry stage = %s, want %s", claims.Entry(), StageClaimRegistered)
	}

	if _, err := set.For(Kind("invoice")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestEveryStageHasImpliedStatus(t *testing.T) {
	set, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	for _, cat := range []*Catalog{set.Quotes(), set.Claims()} {
		for _, stage := range cat.Stages() {
			status, ok := cat.ImpliedStatus(stage)
			if !ok || status == "" {
				t.Errorf("catalog %s: stage %s has no implied status", cat.Kind(), stage)
			}
		}
	}
}

func TestEverySuccessorIsDefined(t *testing.T) {
	set, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	for _, cat := range []*Catalog{set.Quotes(), set.Claims()} {
		for _, stage := range cat.Stages() {
			for _, next := range cat.LegalNextStages(stage) {
				if !cat.Contains(next) {
					t.Errorf("catalog %s: stage %s references undefined successor %s", cat.Kind(), stage, next)
				}
			}
		}
	}
}

func TestQuoteTransitionTable(t *testing.T) {
	set, _ := Load()
	quotes := set.Quotes()

	next := quotes.LegalNextStages(StageClientSelection)
	if len(next) != 3 {
		t.Fatalf("client-selection successors = %v, want 3", next)
	}

	if !quotes.IsTerminal(StageQuoteCompleted) {
		t.Error("completed should be terminal")
	}
	if !quotes.IsTerminal(StageQuoteRejected) {
		t.Error("rejected should be terminal")
	}
	if quotes.IsTerminal(StageClientApproved) {
		t.Error("client_approved should not be terminal")
	}

	effects := quotes.RequiredSideEffects(StageClientSelection)
	if len(effects) != 1 || effects[0] != SideEffectClientPortalLink {
		t.Fatalf("client-selection side effects = %v, want portal link", effects)
	}
	effects = quotes.RequiredSideEffects(StageClientApproved)
	if len(effects) != 1 || effects[0] != SideEffectPaymentTransaction {
		t.Fatalf("client_approved side effects = %v, want payment transaction", effects)
	}

	if ps := quotes.ImpliedPaymentStatus(StageClientApproved); ps == nil || *ps != PaymentPending {
		t.Fatalf("client_approved implied payment status = %v, want pending", ps)
	}
	if ps := quotes.ImpliedPaymentStatus(StageQuoteCompleted); ps == nil || *ps != PaymentCompleted {
		t.Fatalf("completed implied payment status = %v, want completed", ps)
	}
	if ps := quotes.ImpliedPaymentStatus(StageQuoteDrafting); ps != nil {
		t.Fatalf("quote-drafting implied payment status = %v, want nil", ps)
	}
}

func TestClaimTransitionTable(t *testing.T) {
	set, _ := Load()
	claims := set.Claims()

	next := claims.LegalNextStages(StageClaimApprovalPending)
	if len(next) != 2 {
		t.Fatalf("approval-pending successors = %v, want settled and denied", next)
	}

	def, ok := claims.Definition(StageClaimApprovalPending)
	if !ok || !def.ApprovalGate {
		t.Fatal("approval-pending should be an approval gate")
	}

	def, _ = claims.Definition(StageClaimRegistered)
	if def.SLAMaxAge != 2*24*time.Hour {
		t.Fatalf("registered SLA = %v, want 48h", def.SLAMaxAge)
	}

	effects := claims.RequiredSideEffects(StageClaimSettled)
	if len(effects) != 1 || effects[0] != SideEffectPaymentTransaction {
		t.Fatalf("settled side effects = %v, want payment transaction", effects)
	}
}

func TestNewRejectsUndefinedSuccessor(t *testing.T) {
	_, err := New(KindQuote, "a", []StageDefinition{
		{Stage: "a", Next: []Stage{"ghost"}, ImpliedStatus: "open"},
	})
	if err == nil || !strings.Contains(err.Error(), "undefined successor") {
		t.Fatalf("expected undefined successor error, got %v", err)
	}
}

func TestNewRejectsCycle(t *testing.T) {
	_, err := New(KindQuote, "a", []StageDefinition{
		{Stage: "a", Next: []Stage{"b"}, ImpliedStatus: "open"},
		{Stage: "b", Next: []Stage{"c"}, ImpliedStatus: "open"},
		{Stage: "c", Next: []Stage{"a"}, ImpliedStatus: "open"},
	})
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestNewRejectsDuplicateStage(t *testing.T) {
	_, err := New(KindQuote, "a", []StageDefinition{
		{Stage: "a", ImpliedStatus: "open"},
		{Stage: "a", ImpliedStatus: "open"},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate stage error, got %v", err)
	}
}

func TestNewRejectsUndefinedEntry(t *testing.T) {
	_, err := New(KindQuote, "ghost", []StageDefinition{
		{Stage: "a", ImpliedStatus: "open"},
	})
	if err == nil || !strings.Contains(err.Error(), "entry stage") {
		t.Fatalf("expected entry stage error, got %v", err)
	}
}

func TestNewRejectsMissingImpliedStatus(t *testing.T) {
	_, err := New(KindQuote, "a", []StageDefinition{
		{Stage: "a"},
	})
	if err == nil || !strings.Contains(err.Error(), "implied status") {
		t.Fatalf("expected implied status error, got %v", err)
	}
}

func TestLegalNextStagesReturnsCopy(t *testing.T) {
	set, _ := Load()
	quotes := set.Quotes()

	first := quotes.LegalNextStages(StageClientSelection)
	first[0] = "mutated"

	second := quotes.LegalNextStages(StageClientSelection)
	if second[0] == "mutated" {
		t.Fatal("LegalNextStages must not expose internal state")
	}
}
