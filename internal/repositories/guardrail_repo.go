package repositories

import (
	"context"
	"errors"

	"github.com/adpilot/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GuardrailRepo stores per-account guardrail configuration.
type GuardrailRepo struct {
	pool *pgxpool.Pool
}

func NewGuardrailRepo(pool *pgxpool.Pool) *GuardrailRepo {
	return &GuardrailRepo{pool: pool}
}

// ErrConfigNotFound signals the account has no stored config yet; callers
// fall back to configured defaults.
var ErrConfigNotFound = errors.New("guardrail config not found")

func (r *GuardrailRepo) Get(ctx context.Context, accountID string) (*models.GuardrailConfig, error) {
	var c models.GuardrailConfig
	err := r.pool.QueryRow(ctx, `
		SELECT account_id, enabled, max_bulk_actions, max_budget_delta_pct,
		       warn_budget_delta_pct, max_spend_at_risk_micros, blocked_action_types, updated_at
		FROM guardrail_configs WHERE account_id = $1
	`, accountID).Scan(
		&c.AccountID, &c.Enabled, &c.MaxBulkActions, &c.MaxBudgetDeltaPct,
		&c.WarnBudgetDeltaPct, &c.MaxSpendAtRiskMicros, &c.BlockedActionTypes, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GuardrailRepo) Upsert(ctx context.Context, c *models.GuardrailConfig) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO guardrail_configs (
			account_id, enabled, max_bulk_actions, max_budget_delta_pct,
			warn_budget_delta_pct, max_spend_at_risk_micros, blocked_action_types
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			max_bulk_actions = EXCLUDED.max_bulk_actions,
			max_budget_delta_pct = EXCLUDED.max_budget_delta_pct,
			warn_budget_delta_pct = EXCLUDED.warn_budget_delta_pct,
			max_spend_at_risk_micros = EXCLUDED.max_spend_at_risk_micros,
			blocked_action_types = EXCLUDED.blocked_action_types,
			updated_at = now()
		RETURNING updated_at
	`, c.AccountID, c.Enabled, c.MaxBulkActions, c.MaxBudgetDeltaPct,
		c.WarnBudgetDeltaPct, c.MaxSpendAtRiskMicros, c.BlockedActionTypes,
	).Scan(&c.UpdatedAt)
}
