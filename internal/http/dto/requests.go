package dto

import "github.com/adpilot/backend/internal/models"

type SessionRequest struct {
	APIKey string `json:"api_key"`
}

// ActionRequest describes one proposed mutation from the dashboard.
type ActionRequest struct {
	ActionType   string             `json:"action_type"`
	EntityType   string             `json:"entity_type"`
	EntityID     string             `json:"entity_id"`
	EntityName   string             `json:"entity_name"`
	CurrentValue models.ActionValue `json:"current_value"`
	NewValue     models.ActionValue `json:"new_value"`
	Reason       *string            `json:"reason,omitempty"`
	Source       string             `json:"source,omitempty"` // user (default) / ai / rule
}

type BulkActionRequest struct {
	Actions []ActionRequest `json:"actions"`
}

type UpdateGuardrailsRequest struct {
	Enabled              bool     `json:"enabled"`
	MaxBulkActions       int      `json:"max_bulk_actions"`
	MaxBudgetDeltaPct    float64  `json:"max_budget_delta_pct"`
	WarnBudgetDeltaPct   float64  `json:"warn_budget_delta_pct"`
	MaxSpendAtRiskMicros int64    `json:"max_spend_at_risk_micros"`
	BlockedActionTypes   []string `json:"blocked_action_types"`
}
