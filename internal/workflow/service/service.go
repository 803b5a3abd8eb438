// Package service implements the quote/claim workflow engine: transition
// validation, side-effect provisioning, the orchestrated advance, status
// resynchronization, and the insight scanner.
package service

import (
	"context"
	"time"

	"brokerage_backend/internal/events"
	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/platform/clock"
	"brokerage_backend/platform/config"
	"brokerage_backend/platform/logger"
	"brokerage_backend/platform/securetoken"

	"github.com/google/uuid"
)

// RecordStore is the durable storage contract for workflow records. Updates
// are conditional on the record's version token; a lost write surfaces as a
// conflict the caller can react to.
type RecordStore interface {
	Get(ctx context.Context, id uuid.UUID) (*repository.Record, error)
	Insert(ctx context.Context, rec *repository.Record) error
	UpdateStage(ctx context.Context, id uuid.UUID, fields repository.StageFields, expectedVersion int64) (*repository.Record, error)
	Query(ctx context.Context, filter repository.Filter) ([]repository.Record, error)
}

// SideEffectStore persists stage-scoped resources. Uniqueness of active
// resources is enforced by the store, not by in-process locking, because
// multiple process instances may provision concurrently.
type SideEffectStore interface {
	ActivePaymentTransaction(ctx context.Context, recordID uuid.UUID) (*repository.PaymentTransaction, error)
	GetPaymentTransaction(ctx context.Context, id uuid.UUID) (*repository.PaymentTransaction, error)
	CreatePaymentTransaction(ctx context.Context, tx *repository.PaymentTransaction) error
	CompletePaymentTransaction(ctx context.Context, id uuid.UUID, paidAt time.Time) (*repository.PaymentTransaction, error)
	ActivePortalLink(ctx context.Context, recordID uuid.UUID, now time.Time) (*repository.PortalLink, error)
	CreatePortalLink(ctx context.Context, link *repository.PortalLink) error
	SupersedeExpiredLinks(ctx context.Context, recordID uuid.UUID, now time.Time) (int64, error)
	PortalLinkByToken(ctx context.Context, token string) (*repository.PortalLink, error)
	ConsumePortalLink(ctx context.Context, id uuid.UUID, usedAt time.Time) (*repository.PortalLink, error)
}

// AuditSink records the audit trail. Appends are best-effort from the
// orchestrator's point of view: a failed append is logged, never propagated.
type AuditSink interface {
	Append(ctx context.Context, entry repository.AuditEntry) error
	ListByRecord(ctx context.Context, recordID uuid.UUID) ([]repository.AuditEntry, error)
}

// LinkExpiryScheduler schedules the housekeeping task that supersedes a
// portal link once its validity window has passed.
type LinkExpiryScheduler interface {
	SchedulePortalLinkExpiry(ctx context.Context, recordID uuid.UUID, expiresAt time.Time) error
}

// AutoCondition inspects a record and proposes a target stage for an
// auto-transition. Conditions are evaluated in registration order; the first
// one to fire wins. Conditions may consult external state (e.g., whether the
// record's payment transaction has completed).
type AutoCondition func(ctx context.Context, rec *repository.Record) (catalog.Stage, bool, error)

// Service provides the workflow engine's business logic.
type Service struct {
	records  RecordStore
	effects  SideEffectStore
	audit    AuditSink
	catalogs *catalog.Set
	clk      clock.Clock
	tokens   securetoken.Generator
	cfg      config.WorkflowConfig
	log      *logger.Logger

	bus       events.Bus          // optional — nil means no event publication
	expiry    LinkExpiryScheduler // optional — nil means no expiry scheduling
	autoConds map[catalog.Kind][]AutoCondition
}

// New creates a new workflow service with all collaborators injected.
func New(
	records RecordStore,
	effects SideEffectStore,
	audit AuditSink,
	catalogs *catalog.Set,
	clk clock.Clock,
	tokens securetoken.Generator,
	cfg config.WorkflowConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		records:   records,
		effects:   effects,
		audit:     audit,
		catalogs:  catalogs,
		clk:       clk,
		tokens:    tokens,
		cfg:       cfg,
		log:       log,
		autoConds: make(map[catalog.Kind][]AutoCondition),
	}
}

// SetEventBus injects the event bus (set after construction to keep the
// engine usable as a plain library core).
func (s *Service) SetEventBus(bus events.Bus) {
	s.bus = bus
}

// SetLinkExpiryScheduler injects the scheduler used to supersede portal links
// at their expiry instant.
func (s *Service) SetLinkExpiryScheduler(scheduler LinkExpiryScheduler) {
	s.expiry = scheduler
}

// RegisterAutoCondition adds a pluggable auto-transition condition for a
// workflow kind. Auto-transitions only run when a caller invokes AutoAdvance;
// there is no background poller.
func (s *Service) RegisterAutoCondition(kind catalog.Kind, cond AutoCondition) {
	s.autoConds[kind] = append(s.autoConds[kind], cond)
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

// appendAudit writes an audit entry, logging failures as warnings. Durability
// of the business record always outranks durability of its trail.
func (s *Service) appendAudit(ctx context.Context, entry repository.AuditEntry) {
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.AuditWriteFailed(entry.RecordID.String(), entry.Action, err)
	}
}

func stagePtr(s catalog.Stage) *string   { v := string(s); return &v }
func statusPtr(s catalog.Status) *string { v := string(s); return &v }
