package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/internal/workflow/repository"
	"brokerage_backend/platform/apperr"
	"brokerage_backend/platform/clock"
	"brokerage_backend/platform/logger"

	"github.com/google/uuid"
)

// ── Fakes ─────────────────────────────────────────────────────────────────────

type fakeRecords struct {
	mu           sync.Mutex
	byID         map[uuid.UUID]*repository.Record
	conflictNext bool
	updateErr    error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{byID: make(map[uuid.UUID]*repository.Record)}
}

func (f *fakeRecords) Get(_ context.Context, id uuid.UUID) (*repository.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("workflow record not found")
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) Insert(_ context.Context, rec *repository.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	cp.Version = 1
	f.byID[rec.ID] = &cp
	rec.Version = 1
	return nil
}

func (f *fakeRecords) UpdateStage(_ context.Context, id uuid.UUID, fields repository.StageFields, expectedVersion int64) (*repository.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.conflictNext {
		f.conflictNext = false
		return nil, apperr.Conflict("workflow record was modified concurrently")
	}
	rec, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("workflow record not found")
	}
	if rec.Version != expectedVersion {
		return nil, apperr.Conflict("workflow record was modified concurrently")
	}
	rec.Stage = fields.Stage
	rec.Status = fields.Status
	rec.PaymentStatus = fields.PaymentStatus
	rec.UpdatedAt = fields.UpdatedAt
	rec.Version++
	cp := *rec
	return &cp, nil
}

func (f *fakeRecords) Query(_ context.Context, filter repository.Filter) ([]repository.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]repository.Record, 0)
	for _, rec := range f.byID {
		if filter.OrganizationID != nil && rec.OrganizationID != *filter.OrganizationID {
			continue
		}
		if filter.Kind != nil && rec.Kind != *filter.Kind {
			continue
		}
		if len(filter.Stages) > 0 {
			match := false
			for _, stage := range filter.Stages {
				if rec.Stage == stage {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, *rec)
	}
	// Oldest update first, matching the repository's ORDER BY.
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j].UpdatedAt.Before(result[j-1].UpdatedAt); j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

type fakeEffects struct {
	mu               sync.Mutex
	payments         map[uuid.UUID]*repository.PaymentTransaction
	links            []*repository.PortalLink
	createPaymentErr error
	createLinkErr    error

	// hide*Once makes the first Active* lookup miss, simulating a concurrent
	// creator that commits between the caller's read and write.
	hidePaymentOnce bool
	hideLinkOnce    bool
}

func newFakeEffects() *fakeEffects {
	return &fakeEffects{payments: make(map[uuid.UUID]*repository.PaymentTransaction)}
}

func (f *fakeEffects) ActivePaymentTransaction(_ context.Context, recordID uuid.UUID) (*repository.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hidePaymentOnce {
		f.hidePaymentOnce = false
		return nil, nil
	}
	for _, tx := range f.payments {
		if tx.RecordID == recordID {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeEffects) GetPaymentTransaction(_ context.Context, id uuid.UUID) (*repository.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.payments[id]
	if !ok {
		return nil, apperr.NotFound("payment transaction not found")
	}
	cp := *tx
	return &cp, nil
}

func (f *fakeEffects) CreatePaymentTransaction(_ context.Context, tx *repository.PaymentTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createPaymentErr != nil {
		return f.createPaymentErr
	}
	for _, existing := range f.payments {
		if existing.RecordID == tx.RecordID {
			return apperr.Conflict("payment transaction already exists for record")
		}
	}
	cp := *tx
	f.payments[tx.ID] = &cp
	return nil
}

func (f *fakeEffects) CompletePaymentTransaction(_ context.Context, id uuid.UUID, paidAt time.Time) (*repository.PaymentTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.payments[id]
	if !ok {
		return nil, apperr.NotFound("payment transaction not found")
	}
	if tx.Status != catalog.PaymentPending {
		return nil, apperr.Conflict("payment transaction is not pending").
			WithDetails(map[string]any{"status": tx.Status})
	}
	tx.Status = catalog.PaymentCompleted
	tx.PaidAt = &paidAt
	cp := *tx
	return &cp, nil
}

func (f *fakeEffects) ActivePortalLink(_ context.Context, recordID uuid.UUID, now time.Time) (*repository.PortalLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hideLinkOnce {
		f.hideLinkOnce = false
		return nil, nil
	}
	for _, link := range f.links {
		if link.RecordID == recordID && link.UsedAt == nil && !link.Superseded && link.ExpiresAt.After(now) {
			cp := *link
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeEffects) CreatePortalLink(_ context.Context, link *repository.PortalLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createLinkErr != nil {
		return f.createLinkErr
	}
	// Mirrors the partial unique index: time-expired rows still hold the slot.
	for _, existing := range f.links {
		if existing.RecordID == link.RecordID && existing.UsedAt == nil && !existing.Superseded {
			return apperr.Conflict("active portal link already exists for record")
		}
	}
	cp := *link
	f.links = append(f.links, &cp)
	return nil
}

func (f *fakeEffects) SupersedeExpiredLinks(_ context.Context, recordID uuid.UUID, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var flipped int64
	for _, link := range f.links {
		if link.RecordID == recordID && link.UsedAt == nil && !link.Superseded && !link.ExpiresAt.After(now) {
			link.Superseded = true
			flipped++
		}
	}
	return flipped, nil
}

func (f *fakeEffects) PortalLinkByToken(_ context.Context, token string) (*repository.PortalLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if link.Token == token {
			cp := *link
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("portal link not found")
}

func (f *fakeEffects) ConsumePortalLink(_ context.Context, id uuid.UUID, usedAt time.Time) (*repository.PortalLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, link := range f.links {
		if link.ID == id {
			if link.UsedAt != nil {
				return nil, apperr.Gone("portal link already consumed")
			}
			link.UsedAt = &usedAt
			cp := *link
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("portal link not found")
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []repository.AuditEntry
	err     error
}

func (f *fakeAudit) Append(_ context.Context, entry repository.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) ListByRecord(_ context.Context, recordID uuid.UUID) ([]repository.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]repository.AuditEntry, 0)
	for _, e := range f.entries {
		if e.RecordID == recordID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type seqTokens struct {
	mu sync.Mutex
	n  int
}

func (g *seqTokens) NewToken() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("token-%d", g.n), nil
}

type testConfig struct {
	ttl      time.Duration
	currency string
	idle     time.Duration
}

func (c testConfig) GetPortalLinkTTL() time.Duration {
	if c.ttl == 0 {
		return 72 * time.Hour
	}
	return c.ttl
}
func (c testConfig) GetDefaultCurrency() string {
	if c.currency == "" {
		return "EUR"
	}
	return c.currency
}
func (c testConfig) GetInsightThresholdsPath() string { return "" }
func (c testConfig) GetIdleThreshold() time.Duration {
	if c.idle == 0 {
		return 72 * time.Hour
	}
	return c.idle
}

// ── Harness ───────────────────────────────────────────────────────────────────

type testEnv struct {
	svc     *Service
	records *fakeRecords
	effects *fakeEffects
	audit   *fakeAudit
	clk     *clock.Fixed
	cat     *catalog.Set
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalogs, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}

	records := newFakeRecords()
	effects := newFakeEffects()
	audit := &fakeAudit{}
	clk := &clock.Fixed{Time: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	svc := New(records, effects, audit, catalogs, clk, &seqTokens{}, testConfig{}, logger.New("development"))

	return &testEnv{svc: svc, records: records, effects: effects, audit: audit, clk: clk, cat: catalogs}
}

func (e *testEnv) seedRecord(t *testing.T, kind catalog.Kind, stage catalog.Stage) *repository.Record {
	t.Helper()

	cat, err := e.cat.For(kind)
	if err != nil {
		t.Fatalf("catalog for %s: %v", kind, err)
	}
	status, ok := cat.ImpliedStatus(stage)
	if !ok {
		t.Fatalf("stage %s not in %s catalog", stage, kind)
	}

	email := "client@example.com"
	rec := &repository.Record{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Kind:           kind,
		Stage:          stage,
		Status:         status,
		PaymentStatus:  cat.ImpliedPaymentStatus(stage),
		ClientName:     "A. Jansen",
		ClientEmail:    &email,
		Reference:      "Q-TEST01",
		AmountCents:    125000,
		Currency:       "EUR",
		CreatedAt:      e.clk.Time,
		UpdatedAt:      e.clk.Time,
	}
	if err := e.records.Insert(context.Background(), rec); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return rec
}
