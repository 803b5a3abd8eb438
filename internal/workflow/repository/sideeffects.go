package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"brokerage_backend/internal/workflow/catalog"
	"brokerage_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ── Payment transactions ──────────────────────────────────────────────────────

const paymentColumns = `
	id, record_id, organization_id, amount_cents, currency, status, paid_at, created_at`

func scanPayment(row pgx.Row) (*PaymentTransaction, error) {
	var tx PaymentTransaction
	err := row.Scan(
		&tx.ID,
		&tx.RecordID,
		&tx.OrganizationID,
		&tx.AmountCents,
		&tx.Currency,
		&tx.Status,
		&tx.PaidAt,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ActivePaymentTransaction returns the record's payment transaction, or nil
// when none exists. A record has at most one.
func (r *Repository) ActivePaymentTransaction(ctx context.Context, recordID uuid.UUID) (*PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM workflow_payment_transactions WHERE record_id = $1`

	tx, err := scanPayment(r.pool.QueryRow(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment transaction: %w", err)
	}
	return tx, nil
}

// GetPaymentTransaction fetches a payment transaction by ID.
func (r *Repository) GetPaymentTransaction(ctx context.Context, id uuid.UUID) (*PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM workflow_payment_transactions WHERE id = $1`

	tx, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("payment transaction not found")
		}
		return nil, fmt.Errorf("get payment transaction: %w", err)
	}
	return tx, nil
}

// CreatePaymentTransaction inserts a new payment transaction. The unique
// constraint on record_id is the arbiter between concurrent creators; losers
// get a conflict and should re-fetch the winner's row.
func (r *Repository) CreatePaymentTransaction(ctx context.Context, tx *PaymentTransaction) error {
	query := `
		INSERT INTO workflow_payment_transactions (
			id, record_id, organization_id, amount_cents, currency, status, paid_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if _, err := r.pool.Exec(ctx, query,
		tx.ID, tx.RecordID, tx.OrganizationID, tx.AmountCents, tx.Currency, tx.Status, tx.PaidAt, tx.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("payment transaction already exists for record")
		}
		return fmt.Errorf("insert payment transaction: %w", err)
	}
	return nil
}

// CompletePaymentTransaction flips a pending transaction to completed exactly
// once. The status guard in the WHERE clause makes a second completion a
// conflict rather than a silent overwrite of paid_at.
func (r *Repository) CompletePaymentTransaction(ctx context.Context, id uuid.UUID, paidAt time.Time) (*PaymentTransaction, error) {
	query := `
		UPDATE workflow_payment_transactions
		SET status = $2, paid_at = $3
		WHERE id = $1 AND status = $4
		RETURNING ` + paymentColumns

	tx, err := scanPayment(r.pool.QueryRow(ctx, query, id, catalog.PaymentCompleted, paidAt, catalog.PaymentPending))
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("complete payment transaction: %w", err)
	}

	existing, getErr := r.GetPaymentTransaction(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperr.Conflict("payment transaction is not pending").
		WithDetails(map[string]any{"status": existing.Status})
}

// ── Portal links ──────────────────────────────────────────────────────────────

const portalLinkColumns = `
	id, record_id, organization_id, token, expires_at, used_at, superseded, created_at`

func scanPortalLink(row pgx.Row) (*PortalLink, error) {
	var link PortalLink
	err := row.Scan(
		&link.ID,
		&link.RecordID,
		&link.OrganizationID,
		&link.Token,
		&link.ExpiresAt,
		&link.UsedAt,
		&link.Superseded,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ActivePortalLink returns the record's unconsumed, unexpired link, or nil.
func (r *Repository) ActivePortalLink(ctx context.Context, recordID uuid.UUID, now time.Time) (*PortalLink, error) {
	query := `
		SELECT ` + portalLinkColumns + `
		FROM workflow_portal_links
		WHERE record_id = $1 AND used_at IS NULL AND NOT superseded AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`

	link, err := scanPortalLink(r.pool.QueryRow(ctx, query, recordID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get portal link: %w", err)
	}
	return link, nil
}

// CreatePortalLink inserts a new link. The partial unique index over active
// rows (used_at IS NULL AND NOT superseded) rejects a second concurrent
// creation with a conflict.
func (r *Repository) CreatePortalLink(ctx context.Context, link *PortalLink) error {
	query := `
		INSERT INTO workflow_portal_links (
			id, record_id, organization_id, token, expires_at, used_at, superseded, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`

	if _, err := r.pool.Exec(ctx, query,
		link.ID, link.RecordID, link.OrganizationID, link.Token, link.ExpiresAt, link.UsedAt, link.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("active portal link already exists for record")
		}
		return fmt.Errorf("insert portal link: %w", err)
	}
	return nil
}

// SupersedeExpiredLinks marks time-expired links as superseded so they release
// the active-row unique index slot. Returns the number of links flipped.
func (r *Repository) SupersedeExpiredLinks(ctx context.Context, recordID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE workflow_portal_links
		SET superseded = TRUE
		WHERE record_id = $1 AND used_at IS NULL AND NOT superseded AND expires_at <= $2`

	tag, err := r.pool.Exec(ctx, query, recordID, now)
	if err != nil {
		return 0, fmt.Errorf("supersede portal links: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PortalLinkByToken resolves a link by its opaque token.
func (r *Repository) PortalLinkByToken(ctx context.Context, token string) (*PortalLink, error) {
	query := `SELECT ` + portalLinkColumns + ` FROM workflow_portal_links WHERE token = $1`

	link, err := scanPortalLink(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("portal link not found")
		}
		return nil, fmt.Errorf("get portal link by token: %w", err)
	}
	return link, nil
}

// ConsumePortalLink marks a link used exactly once.
func (r *Repository) ConsumePortalLink(ctx context.Context, id uuid.UUID, usedAt time.Time) (*PortalLink, error) {
	query := `
		UPDATE workflow_portal_links
		SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
		RETURNING ` + portalLinkColumns

	link, err := scanPortalLink(r.pool.QueryRow(ctx, query, id, usedAt))
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("consume portal link: %w", err)
	}
	return nil, apperr.Gone("portal link already consumed")
}
