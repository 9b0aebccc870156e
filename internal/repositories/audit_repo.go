package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adpilot/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepo persists the append-only mutation history. No update or delete
// is exposed: rollback appends a new entry with source=rollback instead of
// touching the original.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Record(ctx context.Context, e *models.AuditEntry) error {
	before, err := json.Marshal(e.BeforeValue)
	if err != nil {
		return err
	}
	after, err := json.Marshal(e.AfterValue)
	if err != nil {
		return err
	}

	return r.pool.QueryRow(ctx, `
		INSERT INTO audit_log (
			account_id, actor_user_id, action_type, entity_type, entity_id,
			entity_name, before_value, after_value, status, error_message, source
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, e.AccountID, e.ActorUserID, e.ActionType, e.EntityType, e.EntityID,
		e.EntityName, before, after, e.Status, e.ErrorMessage, e.Source,
	).Scan(&e.ID, &e.CreatedAt)
}

func (r *AuditRepo) Find(ctx context.Context, id uuid.UUID) (*models.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, actor_user_id, action_type, entity_type, entity_id,
		       entity_name, before_value, after_value, status, error_message, source, created_at
		FROM audit_log WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("audit entry %s not found", id)
	}
	return scanAuditEntry(rows)
}

// Query returns entries matching the filter, newest first, paginated.
func (r *AuditRepo) Query(ctx context.Context, f models.AuditFilter) ([]*models.AuditEntry, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, account_id, actor_user_id, action_type, entity_type, entity_id,
		       entity_name, before_value, after_value, status, error_message, source, created_at
		FROM audit_log WHERE 1=1`
	args := []any{}
	argn := 0

	addArg := func(clause string, v any) {
		argn++
		query += fmt.Sprintf(" AND %s = $%d", clause, argn)
		args = append(args, v)
	}

	if f.AccountID != "" {
		addArg("account_id", f.AccountID)
	}
	if f.EntityType != "" {
		addArg("entity_type", f.EntityType)
	}
	if f.EntityID != "" {
		addArg("entity_id", f.EntityID)
	}
	if f.Status != "" {
		addArg("status", f.Status)
	}
	if f.Source != "" {
		addArg("source", f.Source)
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argn+1, argn+2)
	args = append(args, limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditEntry(row rowScanner) (*models.AuditEntry, error) {
	var e models.AuditEntry
	var before, after []byte
	if err := row.Scan(
		&e.ID, &e.AccountID, &e.ActorUserID, &e.ActionType, &e.EntityType, &e.EntityID,
		&e.EntityName, &before, &after, &e.Status, &e.ErrorMessage, &e.Source, &e.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(before, &e.BeforeValue); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(after, &e.AfterValue); err != nil {
		return nil, err
	}
	return &e, nil
}
