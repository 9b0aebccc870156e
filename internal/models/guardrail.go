package models

import "time"

// Warning severities
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityBlock   = "block"
)

// Guardrail rule codes
const (
	RuleBlockedActionType     = "blocked_action_type"
	RuleBudgetDeltaExceeded   = "budget_delta_exceeded"
	RuleBudgetDeltaWarning    = "budget_delta_warning"
	RuleRedundantStatusChange = "redundant_status_change"
	RuleHighPerformerPause    = "high_performer_pause"
	RuleBulkSizeExceeded      = "bulk_size_exceeded"
	RuleSpendAtRiskExceeded   = "spend_at_risk_exceeded"
	RuleBulkPauseWarning      = "bulk_pause_warning"
)

// GuardrailConfig is account-scoped guardrail settings, loaded at session
// start and mutable only through an explicit settings update.
type GuardrailConfig struct {
	AccountID            string    `json:"account_id"`
	Enabled              bool      `json:"enabled"`
	MaxBulkActions       int       `json:"max_bulk_actions"`
	MaxBudgetDeltaPct    float64   `json:"max_budget_delta_pct"`
	WarnBudgetDeltaPct   float64   `json:"warn_budget_delta_pct"`
	MaxSpendAtRiskMicros int64     `json:"max_spend_at_risk_micros"`
	BlockedActionTypes   []string  `json:"blocked_action_types"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (c *GuardrailConfig) IsActionTypeBlocked(actionType string) bool {
	for _, t := range c.BlockedActionTypes {
		if t == actionType {
			return true
		}
	}
	return false
}

// Warning is one guardrail finding, warning or blocking.
type Warning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// GuardrailResult is the outcome of evaluating a proposed action (or batch)
// against the rule set. Never persisted; recomputed per evaluation.
type GuardrailResult struct {
	Allowed      bool      `json:"allowed"`
	Warnings     []Warning `json:"warnings"`
	BlockReasons []Warning `json:"block_reasons"`
}

// Merge unions another result into r. Any block on either side blocks the
// merged result.
func (r *GuardrailResult) Merge(other GuardrailResult) {
	r.Allowed = r.Allowed && other.Allowed
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.BlockReasons = append(r.BlockReasons, other.BlockReasons...)
}

// EntitySnapshot is the read-only current state of one entity, as reported
// by the snapshot provider. Eventually consistent with the platform.
type EntitySnapshot struct {
	EntityType       string  `json:"entity_type"`
	EntityID         string  `json:"entity_id"`
	Status           string  `json:"status"`
	DailySpendMicros int64   `json:"daily_spend_micros"`
	Score            float64 `json:"score"` // 0..100 performance score
}

// Snapshot indexes entity snapshots by entity key for rule evaluation.
type Snapshot struct {
	Entities map[string]EntitySnapshot `json:"entities"`
}

func (s *Snapshot) Lookup(entityType, entityID string) (EntitySnapshot, bool) {
	if s == nil || s.Entities == nil {
		return EntitySnapshot{}, false
	}
	e, ok := s.Entities[entityType+":"+entityID]
	return e, ok
}
