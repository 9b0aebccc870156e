// Package guardrails evaluates proposed actions against account-scoped
// business rules. Evaluation is pure: no I/O, no clock, no randomness, so
// identical inputs always produce identical results.
package guardrails

import (
	"fmt"

	"github.com/adpilot/backend/internal/models"
)

// ruleFunc inspects one action and appends findings to the result. Rules
// never short-circuit each other: the UI must be able to show every
// applicable warning and block reason, not just the first.
type ruleFunc func(action *models.Action, snap *models.Snapshot, cfg *models.GuardrailConfig, res *models.GuardrailResult)

var singleRules = []ruleFunc{
	ruleBlockedActionType,
	ruleBudgetDelta,
	ruleRedundantStatusChange,
	ruleHighPerformerPause,
}

// Evaluate runs the single-action rule set. Disabled guardrails
// short-circuit to allowed with no warnings; callers must still go through
// this function rather than special-casing the disabled state themselves.
func Evaluate(action *models.Action, snap *models.Snapshot, cfg *models.GuardrailConfig) models.GuardrailResult {
	res := models.GuardrailResult{Allowed: true}
	if !cfg.Enabled {
		return res
	}

	for _, rule := range singleRules {
		rule(action, snap, cfg, &res)
	}
	if len(res.BlockReasons) > 0 {
		res.Allowed = false
	}
	return res
}

// EvaluateBulk evaluates a batch: aggregate rules over the whole batch
// unioned with every per-item result. The batch is expected to be
// de-duplicated per entity before aggregate counts are taken.
func EvaluateBulk(actions []*models.Action, snap *models.Snapshot, cfg *models.GuardrailConfig) models.GuardrailResult {
	res := models.GuardrailResult{Allowed: true}
	if !cfg.Enabled {
		return res
	}

	for _, a := range actions {
		item := Evaluate(a, snap, cfg)
		res.Merge(item)
	}

	ruleBulkSize(actions, cfg, &res)
	ruleSpendAtRisk(actions, snap, cfg, &res)
	ruleBulkPauseShare(actions, cfg, &res)

	if len(res.BlockReasons) > 0 {
		res.Allowed = false
	}
	return res
}

func ruleBlockedActionType(action *models.Action, _ *models.Snapshot, cfg *models.GuardrailConfig, res *models.GuardrailResult) {
	if cfg.IsActionTypeBlocked(action.Type) {
		res.BlockReasons = append(res.BlockReasons, models.Warning{
			Code:     models.RuleBlockedActionType,
			Message:  fmt.Sprintf("action type %s is blocked for this account", action.Type),
			Severity: models.SeverityBlock,
		})
	}
}

func ruleBudgetDelta(action *models.Action, _ *models.Snapshot, cfg *models.GuardrailConfig, res *models.GuardrailResult) {
	if action.Type != models.ActionUpdateBudget {
		return
	}
	if action.CurrentValue.BudgetMicros == nil || action.NewValue.BudgetMicros == nil {
		return
	}
	cur := *action.CurrentValue.BudgetMicros
	if cur == 0 {
		return
	}

	delta := *action.NewValue.BudgetMicros - cur
	if delta < 0 {
		delta = -delta
	}
	deltaPct := float64(delta) / float64(cur) * 100

	if cfg.MaxBudgetDeltaPct > 0 && deltaPct > cfg.MaxBudgetDeltaPct {
		res.BlockReasons = append(res.BlockReasons, models.Warning{
			Code:     models.RuleBudgetDeltaExceeded,
			Message:  fmt.Sprintf("budget change of %.1f%% exceeds the %.1f%% limit", deltaPct, cfg.MaxBudgetDeltaPct),
			Severity: models.SeverityBlock,
		})
		return
	}
	if cfg.WarnBudgetDeltaPct > 0 && deltaPct > cfg.WarnBudgetDeltaPct {
		res.Warnings = append(res.Warnings, models.Warning{
			Code:     models.RuleBudgetDeltaWarning,
			Message:  fmt.Sprintf("budget change of %.1f%% is above the %.1f%% warning threshold", deltaPct, cfg.WarnBudgetDeltaPct),
			Severity: models.SeverityWarning,
		})
	}
}

func ruleRedundantStatusChange(action *models.Action, snap *models.Snapshot, _ *models.GuardrailConfig, res *models.GuardrailResult) {
	var target string
	switch action.Type {
	case models.ActionPauseEntity:
		target = models.EntityStatusPaused
	case models.ActionEnableEntity:
		target = models.EntityStatusEnabled
	default:
		return
	}

	ent, ok := snap.Lookup(action.EntityType, action.EntityID)
	if !ok {
		return
	}
	if ent.Status == target {
		res.Warnings = append(res.Warnings, models.Warning{
			Code:     models.RuleRedundantStatusChange,
			Message:  fmt.Sprintf("%s %s is already %s", action.EntityType, action.EntityID, target),
			Severity: models.SeverityInfo,
		})
	}
}

// highPerformerScore is the score at or above which pausing an entity
// deserves a second look.
const highPerformerScore = 80

func ruleHighPerformerPause(action *models.Action, snap *models.Snapshot, _ *models.GuardrailConfig, res *models.GuardrailResult) {
	if action.Type != models.ActionPauseEntity {
		return
	}
	ent, ok := snap.Lookup(action.EntityType, action.EntityID)
	if !ok {
		return
	}
	if ent.Score >= highPerformerScore {
		res.Warnings = append(res.Warnings, models.Warning{
			Code:     models.RuleHighPerformerPause,
			Message:  fmt.Sprintf("%s %q scores %.0f/100; pausing it may hurt performance", action.EntityType, action.EntityName, ent.Score),
			Severity: models.SeverityWarning,
		})
	}
}

func ruleBulkSize(actions []*models.Action, cfg *models.GuardrailConfig, res *models.GuardrailResult) {
	if cfg.MaxBulkActions > 0 && len(actions) > cfg.MaxBulkActions {
		res.BlockReasons = append(res.BlockReasons, models.Warning{
			Code:     models.RuleBulkSizeExceeded,
			Message:  fmt.Sprintf("batch of %d actions exceeds the limit of %d", len(actions), cfg.MaxBulkActions),
			Severity: models.SeverityBlock,
		})
	}
}

func ruleSpendAtRisk(actions []*models.Action, snap *models.Snapshot, cfg *models.GuardrailConfig, res *models.GuardrailResult) {
	if cfg.MaxSpendAtRiskMicros <= 0 {
		return
	}
	var atRisk int64
	for _, a := range actions {
		if a.Type != models.ActionPauseEntity {
			continue
		}
		if ent, ok := snap.Lookup(a.EntityType, a.EntityID); ok {
			atRisk += ent.DailySpendMicros
		}
	}
	if atRisk > cfg.MaxSpendAtRiskMicros {
		res.BlockReasons = append(res.BlockReasons, models.Warning{
			Code:     models.RuleSpendAtRiskExceeded,
			Message:  fmt.Sprintf("pausing these entities puts %d micros of daily spend at risk (limit %d)", atRisk, cfg.MaxSpendAtRiskMicros),
			Severity: models.SeverityBlock,
		})
	}
}

func ruleBulkPauseShare(actions []*models.Action, _ *models.GuardrailConfig, res *models.GuardrailResult) {
	if len(actions) < 2 {
		return
	}
	var pauses int
	for _, a := range actions {
		if a.Type == models.ActionPauseEntity {
			pauses++
		}
	}
	if pauses*2 > len(actions) {
		res.Warnings = append(res.Warnings, models.Warning{
			Code:     models.RuleBulkPauseWarning,
			Message:  fmt.Sprintf("%d of %d actions in this batch are pauses", pauses, len(actions)),
			Severity: models.SeverityWarning,
		})
	}
}
