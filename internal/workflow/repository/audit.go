package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Append inserts an audit entry. Entries are append-only: there is no update
// or delete path anywhere in the repository.
func (r *Repository) Append(ctx context.Context, entry AuditEntry) error {
	query := `
		INSERT INTO workflow_audit_entries (
			id, record_id, organization_id, action,
			from_stage, to_stage, from_status, to_status, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := r.pool.Exec(ctx, query,
		entry.ID, entry.RecordID, entry.OrganizationID, entry.Action,
		entry.FromStage, entry.ToStage, entry.FromStatus, entry.ToStatus, entry.ActorID, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByRecord returns a record's audit trail, oldest first.
func (r *Repository) ListByRecord(ctx context.Context, recordID uuid.UUID) ([]AuditEntry, error) {
	query := `
		SELECT id, record_id, organization_id, action,
		       from_stage, to_stage, from_status, to_status, actor_id, created_at
		FROM workflow_audit_entries
		WHERE record_id = $1
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	result := make([]AuditEntry, 0)
	for rows.Next() {
		var entry AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.RecordID,
			&entry.OrganizationID,
			&entry.Action,
			&entry.FromStage,
			&entry.ToStage,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.ActorID,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	return result, nil
}
