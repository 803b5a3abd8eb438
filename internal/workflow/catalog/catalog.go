// Package catalog defines the static stage catalog for quote and claim
// workflows: the legal progression between stages, the status and payment
// status each stage implies, and the side-effect resources a stage requires.
// Catalogs are immutable after construction and safe for concurrent reads.
package catalog

import (
	"fmt"
	"time"
)

// Kind identifies which workflow a record belongs to.
type Kind string

const (
	KindQuote Kind = "quote"
	KindClaim Kind = "claim"
)

// Stage is the authoritative step of a workflow.
type Stage string

// Quote stages.
const (
	StageQuoteDrafting   Stage = "quote-drafting"
	StageClientSelection Stage = "client-selection"
	StageClientApproved  Stage = "client_approved"
	StageQuoteCompleted  Stage = "completed"
	StageQuoteRejected   Stage = "rejected"
	StageQuoteExpired    Stage = "expired"
)

// Claim stages.
const (
	StageClaimRegistered      Stage = "registered"
	StageClaimInvestigating   Stage = "investigating"
	StageClaimApprovalPending Stage = "approval-pending"
	StageClaimSettled         Stage = "settled"
	StageClaimDenied          Stage = "denied"
)

// Status is the denormalized, coarser-grained field derived from stage.
type Status string

// Quote statuses.
const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Claim statuses.
const (
	StatusOpen            Status = "open"
	StatusInvestigating   Status = "investigating"
	StatusPendingApproval Status = "pending_approval"
	StatusSettled         Status = "settled"
	StatusDenied          Status = "denied"
)

// PaymentStatus is the lifecycle of a provisioned payment transaction.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// SideEffect is a stage-scoped resource kind that must exist once a record
// reaches a stage requiring it.
type SideEffect string

const (
	SideEffectPaymentTransaction SideEffect = "payment_transaction"
	SideEffectClientPortalLink   SideEffect = "client_portal_link"
)

// StageDefinition describes one stage of a workflow.
type StageDefinition struct {
	Stage                Stage
	Next                 []Stage
	ImpliedStatus        Status
	ImpliedPaymentStatus *PaymentStatus
	// SideEffects lists required resources in provisioning order.
	SideEffects []SideEffect
	// SLAMaxAge is the maximum dwell time before a record in this stage counts
	// as an SLA breach. Zero means no stage-specific threshold.
	SLAMaxAge time.Duration
	// ApprovalGate marks the stage whose records belong in the
	// pending-approval insight bucket.
	ApprovalGate bool
}

// Catalog is the immutable transition table for one workflow kind.
type Catalog struct {
	kind   Kind
	entry  Stage
	defs   map[Stage]StageDefinition
	stages []Stage
}

// New builds and validates a catalog. Construction fails if the entry stage is
// undefined, any successor references an undefined stage, a stage is defined
// twice, or the transition graph contains a cycle. A stage missing from the
// table is therefore a startup error, never a request-time one.
func New(kind Kind, entry Stage, defs []StageDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog %s: no stage definitions", kind)
	}

	byStage := make(map[Stage]StageDefinition, len(defs))
	stages := make([]Stage, 0, len(defs))
	for _, def := range defs {
		if def.Stage == "" {
			return nil, fmt.Errorf("catalog %s: empty stage id", kind)
		}
		if def.ImpliedStatus == "" {
			return nil, fmt.Errorf("catalog %s: stage %s has no implied status", kind, def.Stage)
		}
		if _, dup := byStage[def.Stage]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate stage %s", kind, def.Stage)
		}
		byStage[def.Stage] = def
		stages = append(stages, def.Stage)
	}

	if _, ok := byStage[entry]; !ok {
		return nil, fmt.Errorf("catalog %s: entry stage %s is not defined", kind, entry)
	}

	for _, def := range byStage {
		for _, next := range def.Next {
			if _, ok := byStage[next]; !ok {
				return nil, fmt.Errorf("catalog %s: stage %s references undefined successor %s", kind, def.Stage, next)
			}
		}
	}

	if cycle := findCycle(byStage); cycle != "" {
		return nil, fmt.Errorf("catalog %s: transition cycle through stage %s", kind, cycle)
	}

	return &Catalog{kind: kind, entry: entry, defs: byStage, stages: stages}, nil
}

// findCycle runs a three-color DFS over the transition graph and returns a
// stage on a cycle, or "" if the graph is acyclic.
func findCycle(defs map[Stage]StageDefinition) Stage {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[Stage]int, len(defs))

	var visit func(s Stage) Stage
	visit = func(s Stage) Stage {
		color[s] = gray
		for _, next := range defs[s].Next {
			switch color[next] {
			case gray:
				return next
			case white:
				if hit := visit(next); hit != "" {
					return hit
				}
			}
		}
		color[s] = black
		return ""
	}

	for s := range defs {
		if color[s] == white {
			if hit := visit(s); hit != "" {
				return hit
			}
		}
	}
	return ""
}

// Kind returns the workflow kind this catalog describes.
func (c *Catalog) Kind() Kind { return c.kind }

// Entry returns the designated entry stage for new records.
func (c *Catalog) Entry() Stage { return c.entry }

// Stages returns all stages in declaration order.
func (c *Catalog) Stages() []Stage {
	out := make([]Stage, len(c.stages))
	copy(out, c.stages)
	return out
}

// Contains reports whether the stage is defined in this catalog.
func (c *Catalog) Contains(s Stage) bool {
	_, ok := c.defs[s]
	return ok
}

// Definition returns the full definition for a stage.
func (c *Catalog) Definition(s Stage) (StageDefinition, bool) {
	def, ok := c.defs[s]
	return def, ok
}

// LegalNextStages returns the legal successors of a stage. An empty slice
// means the stage is terminal.
func (c *Catalog) LegalNextStages(s Stage) []Stage {
	def, ok := c.defs[s]
	if !ok {
		return []Stage{}
	}
	out := make([]Stage, len(def.Next))
	copy(out, def.Next)
	return out
}

// ImpliedStatus returns the status a stage implies.
func (c *Catalog) ImpliedStatus(s Stage) (Status, bool) {
	def, ok := c.defs[s]
	if !ok {
		return "", false
	}
	return def.ImpliedStatus, true
}

// ImpliedPaymentStatus returns the payment status a stage implies, or nil.
func (c *Catalog) ImpliedPaymentStatus(s Stage) *PaymentStatus {
	def, ok := c.defs[s]
	if !ok || def.ImpliedPaymentStatus == nil {
		return nil
	}
	ps := *def.ImpliedPaymentStatus
	return &ps
}

// RequiredSideEffects returns the side-effect kinds a stage requires, in
// provisioning order.
func (c *Catalog) RequiredSideEffects(s Stage) []SideEffect {
	def, ok := c.defs[s]
	if !ok {
		return nil
	}
	out := make([]SideEffect, len(def.SideEffects))
	copy(out, def.SideEffects)
	return out
}

// IsTerminal reports whether the stage has no legal successors.
func (c *Catalog) IsTerminal(s Stage) bool {
	def, ok := c.defs[s]
	return ok && len(def.Next) == 0
}

// Set bundles the quote and claim catalogs.
type Set struct {
	quotes *Catalog
	claims *Catalog
}

// For returns the catalog for a record kind.
func (s *Set) For(kind Kind) (*Catalog, error) {
	switch kind {
	case KindQuote:
		return s.quotes, nil
	case KindClaim:
		return s.claims, nil
	default:
		return nil, fmt.Errorf("unknown workflow kind %q", kind)
	}
}

// Quotes returns the quote catalog.
func (s *Set) Quotes() *Catalog { return s.quotes }

// Claims returns the claim catalog.
func (s *Set) Claims() *Catalog { return s.claims }

func paymentStatus(ps PaymentStatus) *PaymentStatus { return &ps }

// Load constructs the built-in quote and claim catalogs. Any inconsistency in
// the tables below surfaces here, at startup.
func Load() (*Set, error) {
	quotes, err := New(KindQuote, StageQuoteDrafting, []StageDefinition{
		{
			Stage:         StageQuoteDrafting,
			Next:          []Stage{StageClientSelection},
			ImpliedStatus: StatusDraft,
			SLAMaxAge:     7 * 24 * time.Hour,
		},
		{
			Stage:         StageClientSelection,
			Next:          []Stage{StageClientApproved, StageQuoteRejected, StageQuoteExpired},
			ImpliedStatus: StatusSent,
			SideEffects:   []SideEffect{SideEffectClientPortalLink},
			SLAMaxAge:     14 * 24 * time.Hour,
			ApprovalGate:  true,
		},
		{
			Stage:                StageClientApproved,
			Next:                 []Stage{StageQuoteCompleted},
			ImpliedStatus:        StatusAccepted,
			ImpliedPaymentStatus: paymentStatus(PaymentPending),
			SideEffects:          []SideEffect{SideEffectPaymentTransaction},
			SLAMaxAge:            30 * 24 * time.Hour,
		},
		{
			Stage:                StageQuoteCompleted,
			ImpliedStatus:        StatusAccepted,
			ImpliedPaymentStatus: paymentStatus(PaymentCompleted),
		},
		{
			Stage:         StageQuoteRejected,
			ImpliedStatus: StatusRejected,
		},
		{
			Stage:         StageQuoteExpired,
			ImpliedStatus: StatusExpired,
		},
	})
	if err != nil {
		return nil, err
	}

	claims, err := New(KindClaim, StageClaimRegistered, []StageDefinition{
		{
			Stage:         StageClaimRegistered,
			Next:          []Stage{StageClaimInvestigating},
			ImpliedStatus: StatusOpen,
			SLAMaxAge:     2 * 24 * time.Hour,
		},
		{
			Stage:         StageClaimInvestigating,
			Next:          []Stage{StageClaimApprovalPending},
			ImpliedStatus: StatusInvestigating,
			SLAMaxAge:     5 * 24 * time.Hour,
		},
		{
			Stage:         StageClaimApprovalPending,
			Next:          []Stage{StageClaimSettled, StageClaimDenied},
			ImpliedStatus: StatusPendingApproval,
			SLAMaxAge:     3 * 24 * time.Hour,
			ApprovalGate:  true,
		},
		{
			Stage:                StageClaimSettled,
			ImpliedStatus:        StatusSettled,
			ImpliedPaymentStatus: paymentStatus(PaymentPending),
			SideEffects:          []SideEffect{SideEffectPaymentTransaction},
		},
		{
			Stage:         StageClaimDenied,
			ImpliedStatus: StatusDenied,
		},
	})
	if err != nil {
		return nil, err
	}

	return &Set{quotes: quotes, claims: claims}, nil
}
