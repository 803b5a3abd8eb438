package service

import (
	"context"
	"time"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/platform/apperr"

	"github.com/google/uuid"
)

// InsightItem is one record flagged by the scanner.
type InsightItem struct {
	RecordID  uuid.UUID      `json:"recordId"`
	Kind      catalog.Kind   `json:"kind"`
	Reference string         `json:"reference"`
	Stage     catalog.Stage  `json:"stage"`
	Status    catalog.Status `json:"status"`
	// Age is how long the record has sat in its current stage.
	Age time.Duration `json:"ageSeconds"`
}

// InsightReport groups flagged records into attention buckets. A record can
// appear in more than one bucket. Each bucket is ordered oldest first so the
// most neglected work surfaces at the top.
type InsightReport struct {
	GeneratedAt     time.Time     `json:"generatedAt"`
	Idle            []InsightItem `json:"idle"`
	SLABreaches     []InsightItem `json:"slaBreaches"`
	PendingApproval []InsightItem `json:"pendingApproval"`
}

// Scan walks an organization's non-terminal records and buckets the ones that
// need attention. The scan is read-only: it never mutates records.
func (s *Service) Scan(ctx context.Context, orgID uuid.UUID, thresholds *Thresholds) (*InsightReport, error) {
	recs, err := s.records.Query(ctx, repository.Filter{OrganizationID: &orgID})
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	report := &InsightReport{
		GeneratedAt:     now,
		Idle:            make([]InsightItem, 0),
		SLABreaches:     make([]InsightItem, 0),
		PendingApproval: make([]InsightItem, 0),
	}

	for i := range recs {
		rec := &recs[i]

		cat, err := s.catalogs.For(rec.Kind)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "unknown workflow kind", err)
		}
		def, ok := cat.Definition(rec.Stage)
		if !ok {
			s.log.Warn("insight scan: record stage missing from catalog", "record_id", rec.ID, "stage", rec.Stage)
			continue
		}
		if cat.IsTerminal(rec.Stage) {
			continue
		}

		item := InsightItem{
			RecordID:  rec.ID,
			Kind:      rec.Kind,
			Reference: rec.Reference,
			Stage:     rec.Stage,
			Status:    rec.Status,
			Age:       now.Sub(rec.UpdatedAt),
		}

		if item.Age >= thresholds.Idle {
			report.Idle = append(report.Idle, item)
		}
		if sla := thresholds.SLAFor(rec.Kind, def); sla > 0 && item.Age > sla {
			report.SLABreaches = append(report.SLABreaches, item)
		}
		if def.ApprovalGate {
			report.PendingApproval = append(report.PendingApproval, item)
		}
	}

	// Query returns records oldest-updated first, so each bucket already is.
	return report, nil
}
