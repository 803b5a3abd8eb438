package service

import (
	"context"
	"testing"
	"time"

	"brokerage_backend/internal/workflow/catalog"

	"github.com/google/uuid"
)

func defaultThresholds(t *testing.T) *Thresholds {
	t.Helper()
	th, err := LoadThresholds("", 72*time.Hour)
	if err != nil {
		t.Fatalf("load thresholds: %v", err)
	}
	return th
}

// seedForOrg pins a seeded record to the given organization and backdates its
// last update by age.
func (e *testEnv) seedForOrg(t *testing.T, org uuid.UUID, kind catalog.Kind, stage catalog.Stage, age time.Duration) uuid.UUID {
	t.Helper()
	rec := e.seedRecord(t, kind, stage)
	stored := e.records.byID[rec.ID]
	stored.OrganizationID = org
	stored.UpdatedAt = e.clk.Now().Add(-age)
	return rec.ID
}

func TestScanBucketsIdleRecords(t *testing.T) {
	env := newTestEnv(t)
	org := uuid.New()
	ctx := context.Background()

	idle := env.seedForOrg(t, org, catalog.KindQuote, catalog.StageQuoteDrafting, 80*time.Hour)
	env.seedForOrg(t, org, catalog.KindQuote, catalog.StageQuoteDrafting, time.Hour)

	report, err := env.svc.Scan(ctx, org, defaultThresholds(t))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(report.Idle) != 1 || report.Idle[0].RecordID != idle {
		t.Fatalf("idle bucket = %v, want only the stale record", report.Idle)
	}
	if len(report.SLABreaches) != 0 {
		t.Fatalf("sla bucket = %v, want empty", report.SLABreaches)
	}
}

func TestScanFlagsSLABreaches(t *testing.T) {
	env := newTestEnv(t)
	org := uuid.New()
	ctx := context.Background()

	// registered carries a 48h catalog SLA; 50h in stage breaches it while
	// staying under the 72h idle threshold.
	breached := env.seedForOrg(t, org, catalog.KindClaim, catalog.StageClaimRegistered, 50*time.Hour)
	env.seedForOrg(t, org, catalog.KindClaim, catalog.StageClaimRegistered, 10*time.Hour)

	report, err := env.svc.Scan(ctx, org, defaultThresholds(t))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(report.SLABreaches) != 1 || report.SLABreaches[0].RecordID != breached {
		t.Fatalf("sla bucket = %v, want only the breached record", report.SLABreaches)
	}
	if len(report.Idle) != 0 {
		t.Fatalf("idle bucket = %v, want empty", report.Idle)
	}
}

func TestScanFlagsApprovalGates(t *testing.T) {
	env := newTestEnv(t)
	org := uuid.New()
	ctx := context.Background()

	gated := env.seedForOrg(t, org, catalog.KindClaim, catalog.StageClaimApprovalPending, time.Hour)
	env.seedForOrg(t, org, catalog.KindClaim, catalog.StageClaimInvestigating, time.Hour)

	report, err := env.svc.Scan(ctx, org, defaultThresholds(t))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(report.PendingApproval) != 1 || report.PendingApproval[0].RecordID != gated {
		t.Fatalf("approval bucket = %v, want only the gated record", report.PendingApproval)
	}
}

func TestScanRecordCanAppearInMultipleBuckets(t *testing.T) {
	env := newTestEnv(t)
	org := uuid.New()
	ctx := context.Background()

	// 100h in an approval gate: idle, past any SLA, and awaiting approval.
	id := env.seedForOrg(t, org, catalog.KindClaim, catalog.StageClaimApprovalPending, 100*time.Hour)

	report, err := env.svc.Scan(ctx, org, defaultThresholds(t))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	for name, bucket := range map[string][]InsightItem{
		"idle":            report.Idle,
		"pendingApproval": report.PendingApproval,
	} {
		if len(bucket) != 1 || bucket[0].RecordID != id {
			t.Fatalf("bucket %s = %v, want the record", name, bucket)
		}
	}
}

func TestScanSkipsTerminalStages(t *testing.T) {
	env := newTestEnv(t)
	org := uuid.New()
	ctx := context.Background()

	// Long-settled records are done, however old they are.
	env.seedForOrg(t, org, catalog.KindQuote, catalog.StageQuoteCompleted, 500*time.Hour)
	env.seedForOrg(t, org, catalog.KindClaim, catalog.StageClaimDenied, 500*time.Hour)

	report, err := env.svc.Scan(ctx, org, defaultThresholds(t))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(report.Idle)+len(report.SLABreaches)+len(report.PendingApproval) != 0 {
		t.Fatalf("terminal records flagged: %+v", report)
	}
}

func TestScanIsScopedToOrganization(t *testing.T) {
	env := newTestEnv(t)
	org := uuid.New()
	other := uuid.New()
	ctx := context.Background()

	mine := env.seedForOrg(t, org, catalog.KindQuote, catalog.StageQuoteDrafting, 80*time.Hour)
	env.seedForOrg(t, other, catalog.KindQuote, catalog.StageQuoteDrafting, 80*time.Hour)

	report, err := env.svc.Scan(ctx, org, defaultThresholds(t))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(report.Idle) != 1 || report.Idle[0].RecordID != mine {
		t.Fatalf("idle bucket = %v, want only this organization's record", report.Idle)
	}
}

func TestScanBucketsAreOrderedOldestFirst(t *testing.T) {
	env := newTestEnv(t)
	org := uuid.New()
	ctx := context.Background()

	younger := env.seedForOrg(t, org, catalog.KindQuote, catalog.StageQuoteDrafting, 80*time.Hour)
	older := env.seedForOrg(t, org, catalog.KindQuote, catalog.StageQuoteDrafting, 200*time.Hour)

	report, err := env.svc.Scan(ctx, org, defaultThresholds(t))
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(report.Idle) != 2 {
		t.Fatalf("idle bucket size = %d, want 2", len(report.Idle))
	}
	if report.Idle[0].RecordID != older || report.Idle[1].RecordID != younger {
		t.Fatal("idle bucket should list the most neglected record first")
	}
}

func TestScanDoesNotMutateRecords(t *testing.T) {
	env := newTestEnv(t)
	org := uuid.New()
	ctx := context.Background()

	id := env.seedForOrg(t, org, catalog.KindClaim, catalog.StageClaimApprovalPending, 100*time.Hour)
	before := *env.records.byID[id]

	if _, err := env.svc.Scan(ctx, org, defaultThresholds(t)); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	after := *env.records.byID[id]
	if before != after {
		t.Fatal("scan must be read-only")
	}
	if len(env.audit.actions()) != 0 {
		t.Fatal("scan must not write audit entries")
	}
}
