package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"brokerage_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordNotFoundMsg = "workflow record not found"

// Repository provides database operations for workflow records, their
// side-effect resources, and the audit trail.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new workflow repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `
	id, organization_id, kind, stage, status, payment_status,
	client_name, client_email, client_phone, reference,
	amount_cents, currency, version, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.OrganizationID,
		&rec.Kind,
		&rec.Stage,
		&rec.Status,
		&rec.PaymentStatus,
		&rec.ClientName,
		&rec.ClientEmail,
		&rec.ClientPhone,
		&rec.Reference,
		&rec.AmountCents,
		&rec.Currency,
		&rec.Version,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get fetches a record by ID, including its current version token.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM workflow_records WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(recordNotFoundMsg)
		}
		return nil, fmt.Errorf("get workflow record: %w", err)
	}
	return rec, nil
}

// Insert creates a new record with version 1.
func (r *Repository) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO workflow_records (
			id, organization_id, kind, stage, status, payment_status,
			client_name, client_email, client_phone, reference,
			amount_cents, currency, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $14)`

	if _, err := r.pool.Exec(ctx, query,
		rec.ID, rec.OrganizationID, rec.Kind, rec.Stage, rec.Status, rec.PaymentStatus,
		rec.ClientName, rec.ClientEmail, rec.ClientPhone, rec.Reference,
		rec.AmountCents, rec.Currency, rec.CreatedAt, rec.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert workflow record: %w", err)
	}
	rec.Version = 1
	return nil
}

// UpdateStage conditionally writes the stage and its denormalized fields. The
// expectedVersion acts as the write precondition: when the row has moved on,
// the update matches nothing and the caller gets a conflict so it can re-read
// and decide whether to retry.
func (r *Repository) UpdateStage(ctx context.Context, id uuid.UUID, fields StageFields, expectedVersion int64) (*Record, error) {
	query := `
		UPDATE workflow_records
		SET stage = $2, status = $3, payment_status = $4, updated_at = $5, version = version + 1
		WHERE id = $1 AND version = $6
		RETURNING ` + recordColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, query,
		id, fields.Stage, fields.Status, fields.PaymentStatus, fields.UpdatedAt, expectedVersion,
	))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update workflow record: %w", err)
	}

	// No row matched: distinguish a missing record from a lost write.
	var exists bool
	if checkErr := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM workflow_records WHERE id = $1)`, id,
	).Scan(&exists); checkErr != nil {
		return nil, fmt.Errorf("update workflow record: %w", checkErr)
	}
	if !exists {
		return nil, apperr.NotFound(recordNotFoundMsg)
	}
	return nil, apperr.Conflict("workflow record was modified concurrently")
}

// OrganizationIDs returns the distinct organizations with workflow records.
// Used by the scheduled insight scan to fan out per organization.
func (r *Repository) OrganizationIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT organization_id FROM workflow_records`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	result := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan organization id: %w", err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}

	return result, nil
}

// Query returns records matching the filter, oldest update first.
func (r *Repository) Query(ctx context.Context, filter Filter) ([]Record, error) {
	var (
		conditions []string
		args       []any
	)

	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OrganizationID != nil {
		conditions = append(conditions, "organization_id = "+arg(*filter.OrganizationID))
	}
	if filter.Kind != nil {
		conditions = append(conditions, "kind = "+arg(*filter.Kind))
	}
	if len(filter.Stages) > 0 {
		conditions = append(conditions, "stage = ANY("+arg(filter.Stages)+")")
	}

	query := `SELECT ` + recordColumns + ` FROM workflow_records`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY updated_at ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query workflow records: %w", err)
	}
	defer rows.Close()

	result := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow record: %w", err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query workflow records: %w", err)
	}

	return result, nil
}
